// internal/llmclient/anthropic_client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultAnthropicEndpoint is the Messages API URL.
	DefaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	// AnthropicVersion is sent in the anthropic-version header.
	AnthropicVersion = "2023-06-01"
)

// AnthropicClient implements schemas.LLMClient over the Anthropic Messages API.
type AnthropicClient struct {
	transport
	config config.APIConfig
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient initializes the client.
func NewAnthropicClient(cfg config.APIConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic client: %w", ErrMissingAPIKey)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultAnthropicEndpoint
	}

	header := http.Header{}
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", AnthropicVersion)

	return &AnthropicClient{
		transport: newTransport("anthropic", endpoint, header, cfg, logger),
		config:    cfg,
	}, nil
}

// Generate sends the prompts to the Messages API and returns the text of the
// reply, retrying transient failures.
func (c *AnthropicClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return c.post(ctx, body, decodeAnthropic, describeAnthropicError)
}

func (c *AnthropicClient) buildRequestPayload(req schemas.GenerationRequest) anthropicRequest {
	return anthropicRequest{
		Model:       c.config.Model,
		MaxTokens:   maxTokens(c.config.MaxTokens, req.Options.MaxTokens),
		System:      req.SystemPrompt,
		Temperature: req.Options.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
	}
}

func decodeAnthropic(body []byte) (string, tokenUsage, error) {
	var payload anthropicResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", tokenUsage{}, backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
	}

	var sb strings.Builder
	for _, block := range payload.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", tokenUsage{}, backoff.Permanent(fmt.Errorf("anthropic API returned no text content (stop reason: %s)", payload.StopReason))
	}
	return sb.String(), tokenUsage{prompt: payload.Usage.InputTokens, completion: payload.Usage.OutputTokens}, nil
}

// describeAnthropicError prefers the structured "type: message" form of an
// error body.
func describeAnthropicError(body []byte) string {
	var apiErr anthropicError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Type + ": " + apiErr.Error.Message
	}
	return strings.TrimSpace(string(body))
}
