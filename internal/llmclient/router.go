// internal/llmclient/router.go
package llmclient

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// Router is an LLMClient that sends each request to the client serving its
// tier. An empty tier means powerful.
type Router struct {
	logger   *zap.Logger
	fast     schemas.LLMClient
	powerful schemas.LLMClient
}

var _ schemas.LLMClient = (*Router)(nil)

// NewRouter pairs a fast and a powerful client. Passing the same client
// twice is allowed.
func NewRouter(logger *zap.Logger, fast, powerful schemas.LLMClient) (*Router, error) {
	if fast == nil || powerful == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}
	return &Router{logger: logger.Named("llm_router"), fast: fast, powerful: powerful}, nil
}

// Generate forwards req unchanged to the client for its tier.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}

	var client schemas.LLMClient
	switch tier {
	case schemas.TierFast:
		client = r.fast
	case schemas.TierPowerful:
		client = r.powerful
	default:
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request.", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}

// Close closes each distinct client once.
func (r *Router) Close() error {
	var result *multierror.Error
	if err := r.fast.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close fast client: %w", err))
	}
	if r.powerful != r.fast {
		if err := r.powerful.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close powerful client: %w", err))
		}
	}
	return result.ErrorOrNil()
}
