package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/audiofin/fincast/internal/common"
)

// staleCheckInterval is how often the detector sweeps for generating
// episodes that stopped making progress
const staleCheckInterval = time.Minute

// RecoverOrphans fails any episode left in generating by a previous
// process. Runs once at startup, before new generations begin. Scripts
// and insights those episodes persisted remain retrievable.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) error {
	orphans, err := o.storage.EpisodeStorage().GetStaleEpisodes(ctx, 0)
	if err != nil {
		return err
	}

	for _, episode := range orphans {
		o.logger.Warn().
			Str("episode_id", episode.ID).
			Str("stage", string(episode.Stage)).
			Msg("Recovering episode orphaned by restart")
		o.markFailed(episode, fmt.Errorf("generation interrupted by restart"))
	}

	if len(orphans) > 0 {
		o.logger.Info().Int("count", len(orphans)).Msg("Orphaned episodes recovered")
	}
	return nil
}

// StartStaleDetector periodically fails generating episodes whose last
// update is older than the configured threshold. Returns immediately;
// the sweep runs until the context is cancelled.
func (o *Orchestrator) StartStaleDetector(ctx context.Context) {
	common.SafeGo(o.logger, "stale-detector", func() {
		ticker := time.NewTicker(staleCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.sweepStale(ctx)
			}
		}
	})
}

func (o *Orchestrator) sweepStale(ctx context.Context) {
	stale, err := o.storage.EpisodeStorage().GetStaleEpisodes(ctx, o.staleAge)
	if err != nil {
		o.logger.Error().Err(err).Msg("Stale episode sweep failed")
		return
	}

	for _, episode := range stale {
		// Skip episodes with a live job still making progress; SaveEpisode
		// refreshes UpdatedAt on every stage transition, so a live job only
		// looks stale when it is genuinely stuck.
		o.mu.Lock()
		job := o.byEpisode[episode.ID]
		o.mu.Unlock()

		if job != nil {
			job.cancel()
		}

		o.logger.Warn().
			Str("episode_id", episode.ID).
			Str("stage", string(episode.Stage)).
			Dur("stale_after", o.staleAge).
			Msg("Failing stale episode")
		o.markFailed(episode, fmt.Errorf("generation stalled past %s", o.staleAge))

		if job != nil {
			o.release(lockKey{userID: episode.UserID, episodeType: episode.EpisodeType}, episode.ID)
		}
	}
}
