// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/config"
)

// NewClient creates a tier-routing LLMClient for the configured provider.
// The fast tier uses cfg.FastModel when it names a different model.
func NewClient(cfg config.APIConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	powerful, err := newProviderClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	fast := powerful
	if fastModel := cfg.FastModelOrDefault(); fastModel != cfg.Model {
		fastCfg := cfg
		fastCfg.Model = fastModel
		if fast, err = newProviderClient(fastCfg, logger); err != nil {
			_ = powerful.Close()
			return nil, err
		}
	}

	router, err := NewRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	return router, nil
}

func newProviderClient(cfg config.APIConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return NewAnthropicClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderAnthropic, config.ProviderGemini)
	}
}
