package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced directly to callers
var (
	// ErrTemplateNotFound means no template exists for the requested
	// episode type. Fatal; no episode row is created.
	ErrTemplateNotFound = errors.New("episode template not found")

	// ErrPersonaNotFound means a persona id did not resolve in the catalog
	ErrPersonaNotFound = errors.New("persona not found")

	// ErrEpisodeNotFound means the episode id did not resolve
	ErrEpisodeNotFound = errors.New("episode not found")

	// ErrGenerationInProgress means a generation for the same
	// (user, episode type) already holds the generation lock
	ErrGenerationInProgress = errors.New("generation already in progress for this user and episode type")

	// ErrGenerationCancelled means the job was cancelled between stages
	ErrGenerationCancelled = errors.New("generation cancelled")
)

// AggregationError is fatal to the generation attempt: a data source was
// unreachable. Sparse-but-reachable data is not an error.
type AggregationError struct {
	Source string
	Err    error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed for source %s: %v", e.Source, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// GenerationError fails the scripting stage. Insights produced before the
// failing section are retained for diagnostics, but the episode's script
// field stays unset.
type GenerationError struct {
	Section string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("script generation failed at section %s: %v", e.Section, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AudioError fails only the audio stage; the already-persisted script and
// insights remain retrievable.
type AudioError struct {
	Section string
	Err     error
}

func (e *AudioError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("audio synthesis failed: %v", e.Err)
	}
	return fmt.Sprintf("audio synthesis failed at section %s: %v", e.Section, e.Err)
}

func (e *AudioError) Unwrap() error { return e.Err }

// PersistenceError is any failure writing episode, insight, or audio
// reference rows. The episode remains at its last successfully-persisted
// state so retry and regenerate are safe.
type PersistenceError struct {
	Entity string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
