package llm

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
)

// NewLLMService creates the configured script-writer provider, wrapped
// with a shared rate limiter and capped retry.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderClaude
	}

	logger.Info().Str("provider", string(provider)).Msg("Initializing script-writer")

	limiter, err := newLimiter(cfg.LLM.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid llm rate_limit: %w", err)
	}

	var inner interfaces.LLMService
	switch provider {
	case common.LLMProviderClaude:
		inner, err = NewClaudeService(&cfg.Claude, limiter, logger)
	case common.LLMProviderGemini:
		inner, err = NewGeminiService(&cfg.Gemini, limiter, logger)
	default:
		return nil, fmt.Errorf("invalid LLM provider '%s': must be 'claude' or 'gemini'", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s service: %w", provider, err)
	}

	return WithRetry(inner, NewDefaultRetryConfig(cfg.LLM.MaxAttempts), logger), nil
}

// newLimiter builds a rate limiter from a minimum-interval duration
// string. An empty interval disables limiting.
func newLimiter(interval string) (*rate.Limiter, error) {
	if interval == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, nil
	}
	return rate.NewLimiter(rate.Every(d), 1), nil
}
