// internal/llmclient/policy.go
package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/hindsight/internal/config"
)

// ErrMissingAPIKey is returned by constructors when no credential is configured.
var ErrMissingAPIKey = errors.New("API key is required")

// StatusOverloaded is the non-standard status Anthropic returns when the API
// is temporarily overloaded.
const StatusOverloaded = 529

// initialRetryInterval is the first wait between attempts; each following
// wait doubles.
const initialRetryInterval = 2 * time.Second

// defaultBackOff waits 2s, 4s, 8s, ... between attempts.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialRetryInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	// Attempts are bounded by the retry count, not elapsed time.
	b.MaxElapsedTime = 0
	return b
}

// boundedBackOff caps a policy at maxRetries retries after the first attempt.
func boundedBackOff(b backoff.BackOff, maxRetries int) backoff.BackOff {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithMaxRetries(b, uint64(maxRetries))
}

// isTransientStatus reports whether a failed request is worth retrying.
func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == StatusOverloaded ||
		status >= http.StatusInternalServerError
}

// newLimiter spaces requests to honor a per-minute budget. A non-positive
// budget disables limiting.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// tokenUsage is the accounting a provider reports for one completion.
type tokenUsage struct {
	prompt     int
	completion int
}

// decodeFunc turns a successful response body into the completion text.
// Errors it returns are retried unless wrapped with backoff.Permanent.
type decodeFunc func(body []byte) (string, tokenUsage, error)

// describeFunc extracts a readable message from an error response body.
type describeFunc func(body []byte) string

// transport posts JSON to a provider endpoint under a rate limit and a
// bounded retry policy. The provider clients embed it.
type transport struct {
	provider   string
	model      string
	endpoint   string
	header     http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	maxRetries int
	// backoffFactory produces the wait policy for each call. Retries are
	// always capped at maxRetries.
	backoffFactory func() backoff.BackOff
}

func newTransport(provider, endpoint string, header http.Header, cfg config.APIConfig, logger *zap.Logger) transport {
	header.Set("Content-Type", "application/json")
	return transport{
		provider:       provider,
		model:          cfg.Model,
		endpoint:       endpoint,
		header:         header,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        newLimiter(cfg.RequestsPerMinute),
		logger:         logger.Named("llm_client." + provider),
		maxRetries:     cfg.MaxRetries,
		backoffFactory: defaultBackOff,
	}
}

// post sends body until decode accepts a reply, a permanent failure occurs
// or the retry budget runs out.
func (t *transport) post(ctx context.Context, body []byte, decode decodeFunc, describe describeFunc) (string, error) {
	var (
		reply   string
		attempt int
	)

	operation := func() error {
		attempt++
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		req.Header = t.header.Clone()

		start := time.Now()
		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			t.logger.Warn("Network error during LLM request, retrying.", zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return t.statusError(resp.StatusCode, describe(respBody), attempt)
		}

		text, usage, err := decode(respBody)
		if err != nil {
			return err
		}

		t.logger.Info("LLM generation complete.",
			zap.String("model", t.model),
			zap.Int("attempt", attempt),
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", usage.prompt),
			zap.Int("completion_tokens", usage.completion),
		)
		reply = text
		return nil
	}

	policy := backoff.WithContext(boundedBackOff(t.backoffFactory(), t.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		t.logger.Error("All LLM attempts failed.", zap.Int("attempts", attempt), zap.Error(err))
		return "", err
	}
	return reply, nil
}

// statusError classifies a non-200 reply. Transient statuses are retried.
func (t *transport) statusError(status int, message string, attempt int) error {
	err := fmt.Errorf("%s API error: status %d: %s", t.provider, status, message)
	if isTransientStatus(status) {
		t.logger.Warn("LLM API returned a transient error status.",
			zap.Int("status", status), zap.Int("attempt", attempt), zap.String("response", message))
		return err
	}
	t.logger.Error("LLM API returned error status.", zap.Int("status", status), zap.String("response", message))
	return backoff.Permanent(err)
}

// Close releases idle connections.
func (t *transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// maxTokens prefers the per-request limit over the configured one.
func maxTokens(configured, requested int) int {
	if requested > 0 {
		return requested
	}
	return configured
}
