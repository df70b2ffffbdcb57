package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.ListeningSession) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if session.EpisodeID == "" {
		return fmt.Errorf("session episode ID is required")
	}

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return &models.PersistenceError{Entity: "listening session", Err: err}
	}
	return nil
}

func (s *SessionStorage) GetSessionsByUser(ctx context.Context, userID string) ([]*models.ListeningSession, error) {
	var sessions []models.ListeningSession
	err := s.db.Store().Find(&sessions,
		badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	result := make([]*models.ListeningSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *SessionStorage) GetSessionsByEpisode(ctx context.Context, episodeID string) ([]*models.ListeningSession, error) {
	var sessions []models.ListeningSession
	err := s.db.Store().Find(&sessions,
		badgerhold.Where("EpisodeID").Eq(episodeID).Index("EpisodeID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	result := make([]*models.ListeningSession, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}
