// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/config"
)

// geminiEndpointFormat is filled with the model name.
const geminiEndpointFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiClient implements schemas.LLMClient over the Gemini generateContent
// REST API.
type GeminiClient struct {
	transport
	config config.APIConfig
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

type geminiError struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGeminiClient initializes the client.
func NewGeminiClient(cfg config.APIConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini client: %w", ErrMissingAPIKey)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(geminiEndpointFormat, cfg.Model)
	}

	header := http.Header{}
	header.Set("x-goog-api-key", cfg.APIKey)

	return &GeminiClient{
		transport: newTransport("gemini", endpoint, header, cfg, logger),
		config:    cfg,
	}, nil
}

// Generate sends the prompts to Gemini and returns the first candidate's
// text, retrying transient failures.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return c.post(ctx, body, decodeGemini, describeGeminiError)
}

func (c *GeminiClient) buildRequestPayload(req schemas.GenerationRequest) geminiRequest {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Options.Temperature,
			MaxOutputTokens: maxTokens(c.config.MaxTokens, req.Options.MaxTokens),
		},
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	return payload
}

func decodeGemini(body []byte) (string, tokenUsage, error) {
	var payload geminiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", tokenUsage{}, backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
	}
	if len(payload.Candidates) == 0 {
		return "", tokenUsage{}, backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
	}

	candidate := payload.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
			return "", tokenUsage{}, backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
		}
		// Empty parts without a block reason are usually a hiccup.
		return "", tokenUsage{}, fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}

	usage := tokenUsage{prompt: payload.UsageMetadata.PromptTokenCount, completion: payload.UsageMetadata.CandidatesTokenCount}
	return candidate.Content.Parts[0].Text, usage, nil
}

func describeGeminiError(body []byte) string {
	var apiErr geminiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Status + ": " + apiErr.Error.Message
	}
	return strings.TrimSpace(string(body))
}
