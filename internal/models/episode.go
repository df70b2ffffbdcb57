package models

import (
	"time"
)

// EpisodeStatus represents the lifecycle state of an episode
type EpisodeStatus string

const (
	EpisodeStatusPending    EpisodeStatus = "pending"
	EpisodeStatusGenerating EpisodeStatus = "generating"
	EpisodeStatusCompleted  EpisodeStatus = "completed"
	EpisodeStatusFailed     EpisodeStatus = "failed"
)

// GenerationStage is the coarse progress label reported to callers
type GenerationStage string

const (
	StageQueued      GenerationStage = "queued"
	StageAggregating GenerationStage = "aggregating data"
	StageScripting   GenerationStage = "writing script"
	StageAudio       GenerationStage = "generating audio"
	StageDone        GenerationStage = "done"
)

// Episode is one generated podcast output for a user, tracked end to end
// by the orchestrator. Status transitions are monotonic:
// pending -> generating -> {completed|failed}. The audio reference is set
// iff status is completed; script text, once persisted, is never cleared
// even when a later stage fails.
type Episode struct {
	ID            string          `json:"id" badgerhold:"key"`
	UserID        string          `json:"user_id" badgerholdIndex:"UserID"`
	EpisodeType   string          `json:"episode_type"`
	PersonaIDs    []string        `json:"persona_ids"`
	Script        string          `json:"script,omitempty"`
	AudioRef      string          `json:"audio_ref,omitempty"`
	DurationSec   float64         `json:"duration_seconds"`
	FileSizeBytes int64           `json:"file_size_bytes"`
	Status        EpisodeStatus   `json:"status"`
	Stage         GenerationStage `json:"stage"`
	EpisodeNumber int             `json:"episode_number"`
	Rating        *int            `json:"rating,omitempty"` // 1-5, nil until rated
	ListenCount   int             `json:"listen_count"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MarkGenerating moves a pending episode into the generating state
func (e *Episode) MarkGenerating(stage GenerationStage) {
	e.Status = EpisodeStatusGenerating
	e.Stage = stage
	e.UpdatedAt = time.Now()
}

// MarkCompleted marks the episode completed with its audio asset
func (e *Episode) MarkCompleted(audioRef string, durationSec float64, sizeBytes int64) {
	e.Status = EpisodeStatusCompleted
	e.Stage = StageDone
	e.AudioRef = audioRef
	e.DurationSec = durationSec
	e.FileSizeBytes = sizeBytes
	e.UpdatedAt = time.Now()
}

// MarkFailed marks the episode failed with an error message.
// Script and insights persisted before the failure are retained.
func (e *Episode) MarkFailed(errorMsg string) {
	e.Status = EpisodeStatusFailed
	e.Stage = StageDone
	e.Error = errorMsg
	e.UpdatedAt = time.Now()
}

// IsTerminal returns true if the episode is in a terminal state
func (e *Episode) IsTerminal() bool {
	return e.Status == EpisodeStatusCompleted || e.Status == EpisodeStatusFailed
}

// CanTransitionTo reports whether moving to the target status is a legal
// forward transition. Terminal states accept no transitions.
func (e *Episode) CanTransitionTo(target EpisodeStatus) bool {
	switch e.Status {
	case EpisodeStatusPending:
		return target == EpisodeStatusGenerating
	case EpisodeStatusGenerating:
		return target == EpisodeStatusCompleted || target == EpisodeStatusFailed
	default:
		return false
	}
}

// Insight is the persisted output of generating one section: text,
// persona, data source, and a confidence score in [0,1].
type Insight struct {
	ID          string    `json:"id" badgerhold:"key"`
	EpisodeID   string    `json:"episode_id" badgerholdIndex:"EpisodeID"`
	PersonaID   string    `json:"persona_id"`
	SectionName string    `json:"section_name"`
	InsightType string    `json:"insight_type"`
	Content     string    `json:"content"`
	DataSource  string    `json:"data_source"`
	Confidence  float64   `json:"confidence"`
	Position    int       `json:"position"` // template section index, preserves order
	CreatedAt   time.Time `json:"created_at"`
}

// ListeningSession records one playback of an episode by a user
type ListeningSession struct {
	ID                string     `json:"id" badgerhold:"key"`
	EpisodeID         string     `json:"episode_id" badgerholdIndex:"EpisodeID"`
	UserID            string     `json:"user_id" badgerholdIndex:"UserID"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ListenedSeconds   float64    `json:"listened_duration_seconds"`
	CompletionPercent float64    `json:"completion_percentage" validate:"gte=0,lte=100"`
}
