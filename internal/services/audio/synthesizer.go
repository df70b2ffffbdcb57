// Package audio turns scripted sections into one concatenated episode
// audio asset.
package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// Part is one section's text paired with the audio profile of the
// persona that voices it
type Part struct {
	Index       int
	SectionName string
	Text        string
	Profile     models.AudioProfile
}

// EpisodeAudio is the concatenated, fully assembled episode asset
type EpisodeAudio struct {
	Data            []byte
	DurationSeconds float64
	FileSizeBytes   int64
	Format          string
}

// Synthesizer drives per-section speech synthesis. Sections synthesize
// concurrently up to the configured bound; concatenation is a
// deterministic post-processing step keyed by section index, so
// completion order never affects output order.
type Synthesizer struct {
	speech      interfaces.SpeechService
	concurrency int
	format      string
	logger      arbor.ILogger
}

// NewSynthesizer creates a new episode audio synthesizer
func NewSynthesizer(speech interfaces.SpeechService, concurrency int, format string, logger arbor.ILogger) *Synthesizer {
	if concurrency <= 0 {
		concurrency = 4
	}
	if format == "" {
		format = "wav"
	}
	return &Synthesizer{
		speech:      speech,
		concurrency: concurrency,
		format:      format,
		logger:      logger,
	}
}

// SynthesizeEpisode synthesizes every part and concatenates the segments
// in section order. Any single failure fails the whole call; audio is
// never partially assembled.
func (s *Synthesizer) SynthesizeEpisode(ctx context.Context, parts []Part) (*EpisodeAudio, error) {
	if len(parts) == 0 {
		return nil, &models.AudioError{Section: "", Err: fmt.Errorf("no sections to synthesize")}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	segments := make([]*interfaces.AudioSegment, len(parts))
	sem := make(chan struct{}, s.concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, part := range parts {
		wg.Add(1)
		go func(i int, part Part) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			segment, err := s.speech.Synthesize(ctx, interfaces.SpeechRequest{
				Text:    part.Text,
				Profile: part.Profile,
				Format:  s.format,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = &models.AudioError{Section: part.SectionName, Err: err}
					cancel()
				}
				mu.Unlock()
				return
			}

			segments[i] = segment
			s.logger.Debug().
				Str("section", part.SectionName).
				Int("index", part.Index).
				Float64("duration", segment.DurationSeconds).
				Int("bytes", len(segment.Data)).
				Msg("Section synthesized")
		}(i, part)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, &models.AudioError{Section: "", Err: err}
	}

	return s.concatenate(parts, segments)
}

// concatenate joins segments in slice (section) order. Duration is the
// sum of real segment durations, never a word-count estimate.
func (s *Synthesizer) concatenate(parts []Part, segments []*interfaces.AudioSegment) (*EpisodeAudio, error) {
	var totalDuration float64
	allWAV := true
	for i, segment := range segments {
		if segment == nil {
			return nil, &models.AudioError{Section: parts[i].SectionName, Err: fmt.Errorf("segment missing after synthesis")}
		}
		totalDuration += segment.DurationSeconds
		if segment.Format != "wav" {
			allWAV = false
		}
	}

	var data []byte
	if allWAV {
		raw := make([][]byte, len(segments))
		for i, segment := range segments {
			raw[i] = segment.Data
		}
		joined, err := concatWAV(raw)
		if err != nil {
			return nil, &models.AudioError{Section: "", Err: fmt.Errorf("wav concatenation failed: %w", err)}
		}
		data = joined
	} else {
		// Non-WAV containers are frame-joinable byte streams
		for _, segment := range segments {
			data = append(data, segment.Data...)
		}
	}

	return &EpisodeAudio{
		Data:            data,
		DurationSeconds: totalDuration,
		FileSizeBytes:   int64(len(data)),
		Format:          s.format,
	}, nil
}
