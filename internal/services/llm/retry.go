package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/interfaces"
)

// RetryConfig defines capped exponential backoff for completion calls
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewDefaultRetryConfig returns retry settings suitable for per-section
// script generation: three attempts with a short initial backoff.
func NewDefaultRetryConfig(maxAttempts int) *RetryConfig {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// IsRateLimitError checks whether an error is a provider rate limit.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a provider
// error. Returns 0 if no delay is found in the error message.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the wait before the given retry attempt. An
// API-provided delay, when present, replaces the configured initial
// backoff as the base. The result is capped at MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

// retryingService wraps an LLMService with capped exponential backoff
type retryingService struct {
	inner  interfaces.LLMService
	config *RetryConfig
	logger arbor.ILogger
}

// WithRetry wraps a provider with capped retry. Cancellation is checked
// before every attempt and during backoff waits.
func WithRetry(inner interfaces.LLMService, config *RetryConfig, logger arbor.ILogger) interfaces.LLMService {
	return &retryingService{
		inner:  inner,
		config: config,
		logger: logger,
	}
}

func (s *retryingService) Complete(ctx context.Context, messages []interfaces.Message) (string, error) {
	var lastErr error

	for attempt := 0; attempt < s.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		response, err := s.inner.Complete(ctx, messages)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if attempt == s.config.MaxAttempts-1 {
			break
		}

		backoff := s.config.CalculateBackoff(attempt, ExtractRetryDelay(err))
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", s.config.MaxAttempts).
			Dur("backoff", backoff).
			Bool("rate_limited", IsRateLimitError(err)).
			Str("provider", s.inner.Provider()).
			Msg("Completion attempt failed, backing off")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", s.config.MaxAttempts, lastErr)
}

func (s *retryingService) HealthCheck(ctx context.Context) error {
	return s.inner.HealthCheck(ctx)
}

func (s *retryingService) Provider() string {
	return s.inner.Provider()
}

func (s *retryingService) Close() error {
	return s.inner.Close()
}
