// Package tts is the HTTP client for the external speech synthesis
// service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/services/audio"
)

// wordsPerSecond is the fallback speech rate used to estimate duration
// when the service reports none and the payload is not parseable WAV.
// Roughly 150 words per minute.
const wordsPerSecond = 2.5

// Client implements the SpeechService interface against an HTTP speech
// endpoint. Calls are rate limited, bounded by a timeout, and retried
// with capped backoff.
type Client struct {
	config      *common.TTSConfig
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      arbor.ILogger
	timeout     time.Duration
	maxAttempts int
}

// synthesizeRequest is the wire format of one synthesis call
type synthesizeRequest struct {
	Text     string  `json:"text"`
	VoiceID  string  `json:"voice_id"`
	Speed    float64 `json:"speed,omitempty"`
	Pitch    float64 `json:"pitch,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	Language string  `json:"language,omitempty"`
	Format   string  `json:"format"`
}

// NewClient creates a speech service client from configuration
func NewClient(cfg *common.TTSConfig, logger arbor.ILogger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tts endpoint is required (set tts.endpoint in config or FINCAST_TTS_ENDPOINT)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid tts timeout '%s': %w", cfg.Timeout, err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit != "" {
		interval, err := time.ParseDuration(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid tts rate_limit '%s': %w", cfg.RateLimit, err)
		}
		if interval > 0 {
			limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Client{
		config:      cfg,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
		logger:      logger,
		timeout:     timeout,
		maxAttempts: maxAttempts,
	}, nil
}

// Synthesize converts one section's text into audio using the given
// persona audio profile. Retries cover transient transport failures and
// 5xx/429 responses; client errors fail immediately.
func (c *Client) Synthesize(ctx context.Context, req interfaces.SpeechRequest) (*interfaces.AudioSegment, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("synthesis text cannot be empty")
	}

	format := req.Format
	if format == "" {
		format = c.config.Format
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
			}
		}

		segment, retryable, err := c.doSynthesize(ctx, req, format)
		if err == nil {
			return segment, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxAttempts-1 {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", c.maxAttempts).
			Dur("backoff", backoff).
			Str("voice_id", req.Profile.VoiceID).
			Msg("Synthesis attempt failed, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("synthesis failed after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) doSynthesize(ctx context.Context, req interfaces.SpeechRequest, format string) (*interfaces.AudioSegment, bool, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:     req.Text,
		VoiceID:  req.Profile.VoiceID,
		Speed:    req.Profile.Speed,
		Pitch:    req.Profile.Pitch,
		Volume:   req.Profile.Volume,
		Language: req.Profile.Language,
		Format:   format,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.Endpoint, "/")+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("speech service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("speech service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read audio payload: %w", err)
	}
	if len(data) == 0 {
		return nil, true, fmt.Errorf("speech service returned empty audio payload")
	}

	return &interfaces.AudioSegment{
		Data:            data,
		DurationSeconds: c.resolveDuration(resp, data, format, req.Text),
		Format:          format,
	}, false, nil
}

// resolveDuration prefers the service-reported duration header, then the
// WAV header, then a word-count estimate as last resort.
func (c *Client) resolveDuration(resp *http.Response, data []byte, format, text string) float64 {
	if header := resp.Header.Get("X-Duration-Seconds"); header != "" {
		if seconds, err := strconv.ParseFloat(header, 64); err == nil && seconds > 0 {
			return seconds
		}
	}

	if format == "wav" {
		if seconds, err := audio.WAVDuration(data); err == nil {
			return seconds
		}
	}

	return EstimateDuration(text)
}

// EstimateDuration approximates speech duration from word count. Only
// used before real audio exists, e.g. for progress display.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return float64(words) / wordsPerSecond
}
