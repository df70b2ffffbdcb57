// Package analytics derives read-side listening and rating statistics
// from persisted episode history.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// UserAnalytics is the aggregated view returned to clients. All fields
// default to zero values; missing data is never an error.
type UserAnalytics struct {
	UserID                string               `json:"user_id"`
	TotalEpisodes         int                  `json:"total_episodes"`
	TotalListeningSeconds float64              `json:"total_listening_seconds"`
	AverageCompletionRate float64              `json:"average_completion_rate"`
	FavoriteEpisodeTypes  []string             `json:"favorite_episode_types"`
	PerPersonaPerformance []PersonaPerformance `json:"per_persona_performance"`
}

// PersonaPerformance summarizes one persona's contribution history
type PersonaPerformance struct {
	PersonaID     string  `json:"persona_id"`
	InsightCount  int     `json:"insight_count"`
	AverageRating float64 `json:"average_rating"` // mean rating of episodes the persona contributed to, 0 when unrated
}

// Aggregator computes user analytics from episode, session, and insight
// history. Pure read side; it depends only on the orchestrator's
// persisted output.
type Aggregator struct {
	episodes interfaces.EpisodeStorage
	sessions interfaces.SessionStorage
	insights interfaces.InsightStorage
	logger   arbor.ILogger
}

// NewAggregator creates a new analytics aggregator
func NewAggregator(episodes interfaces.EpisodeStorage, sessions interfaces.SessionStorage, insights interfaces.InsightStorage, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		episodes: episodes,
		sessions: sessions,
		insights: insights,
		logger:   logger,
	}
}

// GetAnalytics aggregates a user's history. Storage failures degrade the
// affected section to empty rather than failing the whole response.
func (a *Aggregator) GetAnalytics(ctx context.Context, userID string) *UserAnalytics {
	result := &UserAnalytics{
		UserID:               userID,
		FavoriteEpisodeTypes: []string{},
	}

	episodes, err := a.episodes.ListEpisodes(ctx, &interfaces.EpisodeListOptions{UserID: userID})
	if err != nil {
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("Analytics episode lookup failed")
		episodes = nil
	}
	result.TotalEpisodes = len(episodes)
	result.FavoriteEpisodeTypes = favoriteTypes(episodes)

	sessions, err := a.sessions.GetSessionsByUser(ctx, userID)
	if err != nil {
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("Analytics session lookup failed")
		sessions = nil
	}
	var completionSum float64
	for _, session := range sessions {
		result.TotalListeningSeconds += session.ListenedSeconds
		completionSum += session.CompletionPercent
	}
	if len(sessions) > 0 {
		result.AverageCompletionRate = completionSum / float64(len(sessions))
	}

	result.PerPersonaPerformance = a.personaPerformance(ctx, userID, episodes)

	return result
}

// favoriteTypes returns the top-3 most frequent episode types, ties
// broken by most recent occurrence
func favoriteTypes(episodes []*models.Episode) []string {
	counts := make(map[string]int)
	latest := make(map[string]time.Time)
	for _, ep := range episodes {
		counts[ep.EpisodeType]++
		if ep.CreatedAt.After(latest[ep.EpisodeType]) {
			latest[ep.EpisodeType] = ep.CreatedAt
		}
	}

	types := make([]string, 0, len(counts))
	for episodeType := range counts {
		types = append(types, episodeType)
	}
	sort.SliceStable(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return latest[types[i]].After(latest[types[j]])
	})

	if len(types) > 3 {
		types = types[:3]
	}
	return types
}

// personaPerformance counts insights per persona and averages the
// ratings of the episodes each persona contributed to
func (a *Aggregator) personaPerformance(ctx context.Context, userID string, episodes []*models.Episode) []PersonaPerformance {
	type ratingAccum struct {
		sum   float64
		count int
	}

	insightCounts := make(map[string]int)
	ratings := make(map[string]*ratingAccum)

	for _, ep := range episodes {
		insights, err := a.insights.GetInsightsByEpisode(ctx, ep.ID)
		if err != nil {
			a.logger.Warn().Err(err).Str("episode_id", ep.ID).Msg("Analytics insight lookup failed")
			continue
		}

		contributed := make(map[string]bool)
		for _, insight := range insights {
			insightCounts[insight.PersonaID]++
			contributed[insight.PersonaID] = true
		}

		if ep.Rating == nil {
			continue
		}
		for personaID := range contributed {
			accum := ratings[personaID]
			if accum == nil {
				accum = &ratingAccum{}
				ratings[personaID] = accum
			}
			accum.sum += float64(*ep.Rating)
			accum.count++
		}
	}

	personaIDs := make([]string, 0, len(insightCounts))
	for personaID := range insightCounts {
		personaIDs = append(personaIDs, personaID)
	}
	sort.Strings(personaIDs)

	performance := make([]PersonaPerformance, 0, len(personaIDs))
	for _, personaID := range personaIDs {
		entry := PersonaPerformance{
			PersonaID:    personaID,
			InsightCount: insightCounts[personaID],
		}
		if accum := ratings[personaID]; accum != nil && accum.count > 0 {
			entry.AverageRating = accum.sum / float64(accum.count)
		}
		performance = append(performance, entry)
	}
	return performance
}
