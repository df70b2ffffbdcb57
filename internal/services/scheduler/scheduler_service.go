// Package scheduler generates recurring episodes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
	"github.com/audiofin/fincast/internal/orchestrator"
)

// Service runs scheduled episode generation. Each fired slot is marked
// in ConsumptionStorage before generation starts, so a restart mid-slot
// never produces a duplicate episode for the same period.
type Service struct {
	config      *common.SchedulerConfig
	orch        *orchestrator.Orchestrator
	episodes    interfaces.EpisodeStorage
	consumption interfaces.ConsumptionStorage
	cron        *cron.Cron
	logger      arbor.ILogger

	mu      sync.Mutex
	running bool
}

// NewService creates a new scheduler service
func NewService(cfg *common.SchedulerConfig, orch *orchestrator.Orchestrator, episodes interfaces.EpisodeStorage, consumption interfaces.ConsumptionStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:      cfg,
		orch:        orch,
		episodes:    episodes,
		consumption: consumption,
		cron:        cron.New(),
		logger:      logger,
	}
}

// Start begins the cron loop. Disabled schedulers return immediately.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 8 * * 1"
	}

	if _, err := s.cron.AddFunc(schedule, s.runScheduledGeneration); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Str("episode_type", s.config.EpisodeType).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running fire to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// runScheduledGeneration fires one generation per known user for the
// current period
func (s *Service) runScheduledGeneration() {
	episodeType := s.config.EpisodeType
	if episodeType == "" {
		episodeType = "weekly"
	}

	userIDs, err := s.knownUsers()
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled generation could not enumerate users")
		return
	}

	period := periodKey(episodeType, time.Now())
	for _, userID := range userIDs {
		s.generateForUser(userID, episodeType, period)
	}
}

func (s *Service) generateForUser(userID, episodeType, period string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	slot := userID + "|" + episodeType + "|" + period
	first, err := s.consumption.MarkConsumed(ctx, slot)
	if err != nil {
		s.logger.Error().Err(err).Str("slot", slot).Msg("Failed to mark scheduled slot")
		return
	}
	if !first {
		s.logger.Debug().Str("slot", slot).Msg("Slot already consumed, skipping")
		return
	}

	episode, err := s.orch.Start(ctx, userID, episodeType)
	if err != nil {
		if errors.Is(err, models.ErrGenerationInProgress) {
			s.logger.Debug().Str("user_id", userID).Msg("Generation already in flight, skipping scheduled run")
			return
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Scheduled generation failed")
		return
	}

	s.logger.Info().
		Str("episode_id", episode.ID).
		Str("user_id", userID).
		Str("episode_type", episodeType).
		Msg("Scheduled episode started")
}

// knownUsers derives the audience from episode history: every user with
// at least one prior episode gets the next scheduled one
func (s *Service) knownUsers() ([]string, error) {
	episodes, err := s.episodes.ListEpisodes(context.Background(), nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var userIDs []string
	for _, episode := range episodes {
		if !seen[episode.UserID] {
			seen[episode.UserID] = true
			userIDs = append(userIDs, episode.UserID)
		}
	}
	return userIDs, nil
}

// periodKey identifies the schedule slot: ISO week for weekly episodes,
// calendar month for monthly ones
func periodKey(episodeType string, now time.Time) string {
	switch episodeType {
	case "monthly":
		return now.Format("2006-01")
	default:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
}
