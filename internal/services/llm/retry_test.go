package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/interfaces"
)

type flakyService struct {
	failures int
	calls    int
	err      error
}

func (f *flakyService) Complete(ctx context.Context, messages []interfaces.Message) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyService) HealthCheck(ctx context.Context) error { return nil }
func (f *flakyService) Provider() string                      { return "fake" }
func (f *flakyService) Close() error                          { return nil }

func fastRetryConfig(maxAttempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyService{failures: 2, err: errors.New("transient")}
	svc := WithRetry(inner, fastRetryConfig(3), arbor.NewLogger())

	response, err := svc.Complete(context.Background(), []interfaces.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", response)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyService{failures: 10, err: errors.New("down")}
	svc := WithRetry(inner, fastRetryConfig(3), arbor.NewLogger())

	_, err := svc.Complete(context.Background(), []interfaces.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	inner := &flakyService{failures: 10, err: errors.New("down")}
	svc := WithRetry(inner, fastRetryConfig(5), arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Complete(ctx, []interfaces.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.calls)
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"429 status", errors.New("Error 429, too many requests"), true},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED"), true},
		{"quota", errors.New("quota exceeded for model"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: rate limited. Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED")
	delay := ExtractRetryDelay(err)
	assert.InDelta(t, 45.387, delay.Seconds(), 0.001)

	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("no delay here")))
}

func TestCalculateBackoffCapped(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(1, 0))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(2, 0))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(3, 0))

	// API-provided delay replaces the base
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(0, 30*time.Second))
}
