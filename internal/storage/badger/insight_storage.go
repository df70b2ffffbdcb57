package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// InsightStorage implements the InsightStorage interface for Badger
type InsightStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewInsightStorage creates a new InsightStorage instance
func NewInsightStorage(db *BadgerDB, logger arbor.ILogger) interfaces.InsightStorage {
	return &InsightStorage{
		db:     db,
		logger: logger,
	}
}

func (s *InsightStorage) SaveInsight(ctx context.Context, insight *models.Insight) error {
	if insight.ID == "" {
		return fmt.Errorf("insight ID is required")
	}
	if insight.EpisodeID == "" {
		return fmt.Errorf("insight episode ID is required")
	}

	if err := s.db.Store().Upsert(insight.ID, insight); err != nil {
		return &models.PersistenceError{Entity: "insight", Err: err}
	}
	return nil
}

// GetInsightsByEpisode returns the episode's insights in template order
func (s *InsightStorage) GetInsightsByEpisode(ctx context.Context, episodeID string) ([]*models.Insight, error) {
	var insights []models.Insight
	err := s.db.Store().Find(&insights,
		badgerhold.Where("EpisodeID").Eq(episodeID).Index("EpisodeID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get insights: %w", err)
	}

	sort.Slice(insights, func(i, j int) bool {
		return insights[i].Position < insights[j].Position
	})

	result := make([]*models.Insight, len(insights))
	for i := range insights {
		result[i] = &insights[i]
	}
	return result, nil
}

// CountInsightsByPersona groups a user's insight counts by contributing
// persona. BadgerHold has no aggregation, so this walks the user's
// episodes and counts in memory.
func (s *InsightStorage) CountInsightsByPersona(ctx context.Context, userID string) (map[string]int, error) {
	var episodes []models.Episode
	err := s.db.Store().Find(&episodes,
		badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	counts := make(map[string]int)
	for _, ep := range episodes {
		var insights []models.Insight
		if err := s.db.Store().Find(&insights,
			badgerhold.Where("EpisodeID").Eq(ep.ID).Index("EpisodeID")); err != nil {
			return nil, fmt.Errorf("failed to get insights for episode %s: %w", ep.ID, err)
		}
		for _, ins := range insights {
			counts[ins.PersonaID]++
		}
	}
	return counts, nil
}
