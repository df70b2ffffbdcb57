// Package orchestrator owns the episode lifecycle state machine:
// aggregation, scripting, audio, and the progress/cancel/regenerate
// surface exposed to callers.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/catalog"
	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
	"github.com/audiofin/fincast/internal/services/audio"
	"github.com/audiofin/fincast/internal/services/script"
	"github.com/audiofin/fincast/internal/services/story"
)

// generation tracks one in-flight episode job. Cancellation is
// cooperative: the job checks its context between stages and before
// external calls; in-flight call results are discarded on cancel.
type generation struct {
	episodeID string
	cancel    context.CancelFunc
}

// lockKey scopes the generation lock: one in-flight generation per
// (user, episode type)
type lockKey struct {
	userID      string
	episodeType string
}

// Orchestrator sequences the generation pipeline and persists episode
// state after every stage, so a crash never loses completed work.
type Orchestrator struct {
	config   *common.PipelineConfig
	catalog  *catalog.Catalog
	story    *story.Aggregator
	script   *script.Generator
	audio    *audio.Synthesizer
	blobs    interfaces.BlobStore
	storage  interfaces.StorageManager
	events   interfaces.EventService
	logger   arbor.ILogger
	staleAge time.Duration

	mu        sync.Mutex
	locks     map[lockKey]*generation
	byEpisode map[string]*generation
}

// New creates the orchestrator
func New(
	cfg *common.PipelineConfig,
	cat *catalog.Catalog,
	storyAgg *story.Aggregator,
	scriptGen *script.Generator,
	audioSynth *audio.Synthesizer,
	blobs interfaces.BlobStore,
	storage interfaces.StorageManager,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:    cfg,
		catalog:   cat,
		story:     storyAgg,
		script:    scriptGen,
		audio:     audioSynth,
		blobs:     blobs,
		storage:   storage,
		events:    events,
		logger:    logger,
		staleAge:  common.ParseDurationOr(cfg.StaleAfter, 15*time.Minute),
		locks:     make(map[lockKey]*generation),
		byEpisode: make(map[string]*generation),
	}
}

// Start creates an episode and runs the pipeline. Aggregation and
// scripting run before Start returns, so the script is available
// quickly; the audio stage continues in the background and the caller
// polls progress or subscribes for push updates.
//
// A second Start for the same (user, episode type) while one is in
// flight fails with ErrGenerationInProgress rather than racing for the
// same episode number.
func (o *Orchestrator) Start(ctx context.Context, userID, episodeType string) (*models.Episode, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	// No template, no episode row
	template, err := o.catalog.GetTemplate(episodeType)
	if err != nil {
		return nil, err
	}

	personaIDs, personaSetKey, err := o.resolvePersonaSet(template)
	if err != nil {
		return nil, err
	}

	key := lockKey{userID: userID, episodeType: episodeType}
	genCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	if _, held := o.locks[key]; held {
		o.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: user %s already generating a %s episode", models.ErrGenerationInProgress, userID, episodeType)
	}

	// Episode-number allocation happens under the lock so concurrent
	// starts can never claim the same number
	number, err := o.storage.EpisodeStorage().NextEpisodeNumber(genCtx, userID, personaSetKey)
	if err != nil {
		o.mu.Unlock()
		cancel()
		return nil, err
	}

	episode := &models.Episode{
		ID:            common.NewEpisodeID(),
		UserID:        userID,
		EpisodeType:   episodeType,
		PersonaIDs:    personaIDs,
		Status:        models.EpisodeStatusPending,
		Stage:         models.StageQueued,
		EpisodeNumber: number,
		CreatedAt:     time.Now(),
	}

	job := &generation{episodeID: episode.ID, cancel: cancel}
	o.locks[key] = job
	o.byEpisode[episode.ID] = job
	o.mu.Unlock()

	if err := o.storage.EpisodeStorage().SaveEpisode(genCtx, episode); err != nil {
		o.release(key, episode.ID)
		cancel()
		return nil, err
	}

	o.publish(interfaces.EventEpisodeCreated, episode)

	// Aggregation and scripting run inline; a failure here is reported
	// directly to the caller with the episode already marked failed.
	if err := o.runScriptStages(genCtx, episode, template); err != nil {
		o.failEpisode(episode, key, err)
		return episode, err
	}

	// Audio continues without blocking the caller
	common.SafeGo(o.logger, "audio-stage-"+episode.ID, func() {
		o.runAudioStage(genCtx, episode, template, key)
	})

	return episode, nil
}

// runScriptStages performs aggregation and script generation, persisting
// the episode after each stage
func (o *Orchestrator) runScriptStages(ctx context.Context, episode *models.Episode, template *models.EpisodeTemplate) error {
	episode.MarkGenerating(models.StageAggregating)
	if err := o.storage.EpisodeStorage().SaveEpisode(ctx, episode); err != nil {
		return err
	}
	o.publishStage(episode)

	storySnapshot, err := o.story.Aggregate(ctx, episode.UserID, o.config.TimeWindowDays)
	if err != nil {
		return err
	}

	if err := o.checkCancelled(ctx); err != nil {
		return err
	}

	episode.Stage = models.StageScripting
	if err := o.storage.EpisodeStorage().SaveEpisode(ctx, episode); err != nil {
		return err
	}
	o.publishStage(episode)

	profile, err := o.storage.RecordStorage().GetProfile(ctx, episode.UserID)
	if err != nil {
		return err
	}

	scriptText, _, err := o.script.GenerateScript(ctx, episode, template, storySnapshot, profile)
	if err != nil {
		return err
	}

	// Script persists before the audio stage starts; a later audio
	// failure never clears it
	episode.Script = scriptText
	return o.storage.EpisodeStorage().SaveEpisode(ctx, episode)
}

// runAudioStage synthesizes, concatenates, stores the asset, and drives
// the episode to its terminal state
func (o *Orchestrator) runAudioStage(ctx context.Context, episode *models.Episode, template *models.EpisodeTemplate, key lockKey) {
	defer o.release(key, episode.ID)

	if err := o.checkCancelled(ctx); err != nil {
		o.markFailed(episode, err)
		return
	}

	episode.Stage = models.StageAudio
	if err := o.storage.EpisodeStorage().SaveEpisode(ctx, episode); err != nil {
		o.markFailed(episode, err)
		return
	}
	o.publishStage(episode)

	parts, err := o.buildAudioParts(ctx, episode, template)
	if err != nil {
		o.markFailed(episode, err)
		return
	}

	asset, err := o.audio.SynthesizeEpisode(ctx, parts)
	if err != nil {
		o.markFailed(episode, err)
		return
	}

	if err := o.checkCancelled(ctx); err != nil {
		// Synthesis finished after cancel; discard the result
		o.markFailed(episode, err)
		return
	}

	audioRef, err := o.blobs.Put(ctx, episode.ID+"."+asset.Format, asset.Data)
	if err != nil {
		o.markFailed(episode, err)
		return
	}

	episode.MarkCompleted(audioRef, asset.DurationSeconds, asset.FileSizeBytes)
	if err := o.storage.EpisodeStorage().SaveEpisode(context.Background(), episode); err != nil {
		o.logger.Error().Err(err).Str("episode_id", episode.ID).Msg("Failed to persist completed episode")
		return
	}

	o.logger.Info().
		Str("episode_id", episode.ID).
		Str("user_id", episode.UserID).
		Float64("duration", asset.DurationSeconds).
		Int64("bytes", asset.FileSizeBytes).
		Msg("Episode completed")

	o.publish(interfaces.EventEpisodeCompleted, episode)
}

// buildAudioParts pairs each insight with its section persona's audio
// profile, so multi-persona episodes change voice mid-episode
func (o *Orchestrator) buildAudioParts(ctx context.Context, episode *models.Episode, template *models.EpisodeTemplate) ([]audio.Part, error) {
	insights, err := o.storage.InsightStorage().GetInsightsByEpisode(ctx, episode.ID)
	if err != nil {
		return nil, err
	}
	if len(insights) != len(template.Sections) {
		return nil, fmt.Errorf("expected %d insights, found %d", len(template.Sections), len(insights))
	}

	parts := make([]audio.Part, len(insights))
	for i, insight := range insights {
		persona, err := o.catalog.GetPersona(insight.PersonaID)
		if err != nil {
			return nil, err
		}
		parts[i] = audio.Part{
			Index:       insight.Position,
			SectionName: insight.SectionName,
			Text:        insight.Content,
			Profile:     persona.Audio,
		}
	}
	return parts, nil
}

// GetProgress returns the episode's status and coarse stage label
func (o *Orchestrator) GetProgress(ctx context.Context, episodeID string) (*models.Episode, error) {
	return o.storage.EpisodeStorage().GetEpisode(ctx, episodeID)
}

// Cancel requests cooperative cancellation of a generating episode.
// Cancelling a terminal episode is a no-op, not an error.
func (o *Orchestrator) Cancel(ctx context.Context, episodeID string) error {
	episode, err := o.storage.EpisodeStorage().GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}

	if episode.IsTerminal() {
		return nil
	}

	o.mu.Lock()
	job := o.byEpisode[episodeID]
	o.mu.Unlock()

	if job != nil {
		job.cancel()
		o.logger.Info().Str("episode_id", episodeID).Msg("Cancellation requested")
		return nil
	}

	// No in-flight job (e.g. orphaned by a restart): fail it directly
	o.markFailed(episode, models.ErrGenerationCancelled)
	return nil
}

// Regenerate starts a fresh generation with the original episode's user
// and type. The original row is never mutated; the new episode gets a
// strictly greater episode number.
func (o *Orchestrator) Regenerate(ctx context.Context, episodeID string) (*models.Episode, error) {
	original, err := o.storage.EpisodeStorage().GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return o.Start(ctx, original.UserID, original.EpisodeType)
}

// resolvePersonaSet resolves every section's persona up front, including
// defaults, and returns the ordered distinct ids plus the stable key used
// for episode numbering
func (o *Orchestrator) resolvePersonaSet(template *models.EpisodeTemplate) ([]string, string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, section := range template.Sections {
		persona, err := o.script.ResolvePersona(section)
		if err != nil {
			return nil, "", err
		}
		if !seen[persona.ID] {
			seen[persona.ID] = true
			ids = append(ids, persona.ID)
		}
	}
	return ids, strings.Join(ids, ","), nil
}

func (o *Orchestrator) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.ErrGenerationCancelled
	}
	return nil
}

// failEpisode marks the episode failed and releases the generation lock
func (o *Orchestrator) failEpisode(episode *models.Episode, key lockKey, cause error) {
	o.markFailed(episode, cause)
	o.release(key, episode.ID)
}

// markFailed drives the episode to failed, keeping any script and
// insights persisted before the failure
func (o *Orchestrator) markFailed(episode *models.Episode, cause error) {
	if episode.IsTerminal() {
		return
	}

	episode.MarkFailed(cause.Error())
	if err := o.storage.EpisodeStorage().SaveEpisode(context.Background(), episode); err != nil {
		o.logger.Error().Err(err).Str("episode_id", episode.ID).Msg("Failed to persist failed episode")
	}

	o.logger.Warn().
		Str("episode_id", episode.ID).
		Str("user_id", episode.UserID).
		Str("stage", string(episode.Stage)).
		Err(cause).
		Msg("Episode failed")

	o.publish(interfaces.EventEpisodeFailed, episode)
}

// release frees the generation lock once the episode reaches a terminal
// state
func (o *Orchestrator) release(key lockKey, episodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if job, ok := o.locks[key]; ok && job.episodeID == episodeID {
		delete(o.locks, key)
	}
	delete(o.byEpisode, episodeID)
}

func (o *Orchestrator) publishStage(episode *models.Episode) {
	o.publish(interfaces.EventEpisodeStage, episode)
}

func (o *Orchestrator) publish(eventType interfaces.EventType, episode *models.Episode) {
	if o.events == nil {
		return
	}
	_ = o.events.Publish(context.Background(), interfaces.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"episode_id": episode.ID,
			"user_id":    episode.UserID,
			"status":     string(episode.Status),
			"stage":      string(episode.Stage),
		},
	})
}
