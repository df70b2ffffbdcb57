package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// EpisodeStorage implements the EpisodeStorage interface for Badger
type EpisodeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// episodeCounter allocates monotonic episode numbers per (user, persona set)
type episodeCounter struct {
	Key  string `badgerhold:"key"`
	Next int
}

// NewEpisodeStorage creates a new EpisodeStorage instance
func NewEpisodeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EpisodeStorage {
	return &EpisodeStorage{
		db:     db,
		logger: logger,
	}
}

func (s *EpisodeStorage) SaveEpisode(ctx context.Context, episode *models.Episode) error {
	if episode.ID == "" {
		return fmt.Errorf("episode ID is required")
	}
	episode.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(episode.ID, episode); err != nil {
		return &models.PersistenceError{Entity: "episode", Err: err}
	}
	return nil
}

func (s *EpisodeStorage) GetEpisode(ctx context.Context, episodeID string) (*models.Episode, error) {
	var episode models.Episode
	if err := s.db.Store().Get(episodeID, &episode); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrEpisodeNotFound, episodeID)
		}
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return &episode, nil
}

func (s *EpisodeStorage) ListEpisodes(ctx context.Context, opts *interfaces.EpisodeListOptions) ([]*models.Episode, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.UserID != "" {
			query = query.And("UserID").Eq(opts.UserID).Index("UserID")
		}
		if opts.EpisodeType != "" {
			query = query.And("EpisodeType").Eq(opts.EpisodeType)
		}
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var episodes []models.Episode
	if err := s.db.Store().Find(&episodes, query); err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	result := make([]*models.Episode, len(episodes))
	for i := range episodes {
		result[i] = &episodes[i]
	}
	return result, nil
}

// NextEpisodeNumber allocates the next episode number for a
// (user, persona-set) pair. Read-modify-write is safe here because the
// orchestrator serializes allocation behind the generation lock.
func (s *EpisodeStorage) NextEpisodeNumber(ctx context.Context, userID, personaSetKey string) (int, error) {
	key := userID + "|" + personaSetKey

	var counter episodeCounter
	err := s.db.Store().Get(key, &counter)
	if err == badgerhold.ErrNotFound {
		counter = episodeCounter{Key: key, Next: 1}
	} else if err != nil {
		return 0, fmt.Errorf("failed to read episode counter: %w", err)
	}

	allocated := counter.Next
	counter.Next++
	if err := s.db.Store().Upsert(key, &counter); err != nil {
		return 0, &models.PersistenceError{Entity: "episode counter", Err: err}
	}

	return allocated, nil
}

func (s *EpisodeStorage) GetStaleEpisodes(ctx context.Context, olderThan time.Duration) ([]*models.Episode, error) {
	threshold := time.Now().Add(-olderThan)

	var episodes []models.Episode
	err := s.db.Store().Find(&episodes,
		badgerhold.Where("Status").Eq(models.EpisodeStatusGenerating).And("UpdatedAt").Lt(threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale episodes: %w", err)
	}

	result := make([]*models.Episode, len(episodes))
	for i := range episodes {
		result[i] = &episodes[i]
	}
	return result, nil
}

func (s *EpisodeStorage) DeleteEpisode(ctx context.Context, episodeID string) error {
	if err := s.db.Store().Delete(episodeID, &models.Episode{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete episode: %w", err)
	}
	return nil
}
