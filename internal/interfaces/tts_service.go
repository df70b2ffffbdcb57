package interfaces

import (
	"context"

	"github.com/audiofin/fincast/internal/models"
)

// SpeechRequest is one synthesis call to the external speech service
type SpeechRequest struct {
	Text    string
	Profile models.AudioProfile
	Format  string // "wav" or "mp3"
}

// AudioSegment is the synthesized audio for one section
type AudioSegment struct {
	Data            []byte
	DurationSeconds float64
	Format          string
}

// SpeechService converts text to audio using a persona's audio profile.
// Implementations must bound every call with a timeout and capped retry;
// failures propagate to the caller, which wraps them as AudioError.
type SpeechService interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*AudioSegment, error)
}

// BlobStore persists the concatenated episode audio asset and returns a
// durable reference recorded on the episode
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
