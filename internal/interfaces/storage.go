package interfaces

import (
	"context"
	"time"

	"github.com/audiofin/fincast/internal/models"
)

// EpisodeListOptions filters episode listings
type EpisodeListOptions struct {
	UserID      string
	EpisodeType string
	Status      models.EpisodeStatus
	Limit       int
	Offset      int
}

// EpisodeStorage persists episodes and owns episode-number allocation
type EpisodeStorage interface {
	SaveEpisode(ctx context.Context, episode *models.Episode) error
	GetEpisode(ctx context.Context, episodeID string) (*models.Episode, error)
	ListEpisodes(ctx context.Context, opts *EpisodeListOptions) ([]*models.Episode, error)

	// NextEpisodeNumber allocates the next monotonic episode number for a
	// (user, persona-set) pair. Callers must hold the generation lock for
	// the user and episode type before allocating.
	NextEpisodeNumber(ctx context.Context, userID, personaSetKey string) (int, error)

	// GetStaleEpisodes returns generating episodes whose last update is
	// older than the threshold
	GetStaleEpisodes(ctx context.Context, olderThan time.Duration) ([]*models.Episode, error)

	DeleteEpisode(ctx context.Context, episodeID string) error
}

// InsightStorage persists per-section generation output
type InsightStorage interface {
	SaveInsight(ctx context.Context, insight *models.Insight) error
	GetInsightsByEpisode(ctx context.Context, episodeID string) ([]*models.Insight, error)
	CountInsightsByPersona(ctx context.Context, userID string) (map[string]int, error)
}

// SessionStorage persists listening sessions
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.ListeningSession) error
	GetSessionsByUser(ctx context.Context, userID string) ([]*models.ListeningSession, error)
	GetSessionsByEpisode(ctx context.Context, episodeID string) ([]*models.ListeningSession, error)
}

// RecordStorage is the read side of the external record store:
// transactions, goals, activities, and profile, bounded by user and date
// range. Write methods exist for ingest and test seeding.
type RecordStorage interface {
	GetTransactions(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error)
	GetGoals(ctx context.Context, userID string) ([]*models.Goal, error)
	GetActivities(ctx context.Context, userID string, from, to time.Time) ([]*models.Activity, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)

	SaveTransaction(ctx context.Context, txn *models.Transaction) error
	SaveGoal(ctx context.Context, goal *models.Goal) error
	SaveActivity(ctx context.Context, activity *models.Activity) error
	SaveProfile(ctx context.Context, profile *models.Profile) error
}

// ConsumptionStorage is the persistent consume-at-most-once tracker.
// MarkConsumed returns true exactly once per key; correctness survives
// process restarts.
type ConsumptionStorage interface {
	MarkConsumed(ctx context.Context, key string) (bool, error)
	IsConsumed(ctx context.Context, key string) (bool, error)
}

// StorageManager aggregates all storage interfaces behind one connection
type StorageManager interface {
	EpisodeStorage() EpisodeStorage
	InsightStorage() InsightStorage
	SessionStorage() SessionStorage
	RecordStorage() RecordStorage
	ConsumptionStorage() ConsumptionStorage
	Close() error
}
