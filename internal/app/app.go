package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/catalog"
	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/handlers"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/orchestrator"
	"github.com/audiofin/fincast/internal/services/analytics"
	"github.com/audiofin/fincast/internal/services/audio"
	"github.com/audiofin/fincast/internal/services/blob"
	"github.com/audiofin/fincast/internal/services/events"
	"github.com/audiofin/fincast/internal/services/llm"
	"github.com/audiofin/fincast/internal/services/scheduler"
	"github.com/audiofin/fincast/internal/services/script"
	"github.com/audiofin/fincast/internal/services/story"
	"github.com/audiofin/fincast/internal/services/tts"
	badgerstorage "github.com/audiofin/fincast/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager interfaces.StorageManager
	Catalog        *catalog.Catalog
	EventService   interfaces.EventService
	LLMService     interfaces.LLMService
	SpeechService  interfaces.SpeechService
	BlobStore      *blob.FilesystemStore

	StoryAggregator  *story.Aggregator
	ScriptGenerator  *script.Generator
	AudioSynthesizer *audio.Synthesizer
	Orchestrator     *orchestrator.Orchestrator
	SchedulerService *scheduler.Service
	AnalyticsService *analytics.Aggregator

	// HTTP handlers
	EpisodeHandler   *handlers.EpisodeHandler
	AnalyticsHandler *handlers.AnalyticsHandler
	CatalogHandler   *handlers.CatalogHandler
	StatusHandler    *handlers.StatusHandler
	WSHandler        *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	app.ctx, app.cancelCtx = context.WithCancel(context.Background())

	storageManager, err := badgerstorage.NewManager(&cfg.Storage.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	cat, err := catalog.Load(&cfg.Catalog, logger)
	if err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to load persona catalog: %w", err)
	}
	app.Catalog = cat

	app.EventService = events.NewService(logger)

	llmService, err := llm.NewLLMService(cfg, logger)
	if err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	app.LLMService = llmService

	speechService, err := tts.NewClient(&cfg.TTS, logger)
	if err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize TTS client: %w", err)
	}
	app.SpeechService = speechService

	blobStore, err := blob.NewFilesystemStore(&cfg.Blob, logger)
	if err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	app.BlobStore = blobStore

	app.StoryAggregator = story.NewAggregator(storageManager.RecordStorage(), logger)
	app.ScriptGenerator = script.NewGenerator(llmService, cat, storageManager.InsightStorage(), logger)
	app.AudioSynthesizer = audio.NewSynthesizer(speechService, cfg.Pipeline.AudioConcurrency, cfg.TTS.Format, logger)

	app.Orchestrator = orchestrator.New(
		&cfg.Pipeline,
		cat,
		app.StoryAggregator,
		app.ScriptGenerator,
		app.AudioSynthesizer,
		blobStore,
		storageManager,
		app.EventService,
		logger,
	)

	// Fail episodes the previous process left generating, then watch
	// for stalled ones
	if err := app.Orchestrator.RecoverOrphans(app.ctx); err != nil {
		logger.Warn().Err(err).Msg("Orphaned episode recovery failed")
	}
	app.Orchestrator.StartStaleDetector(app.ctx)

	app.SchedulerService = scheduler.NewService(
		&cfg.Scheduler,
		app.Orchestrator,
		storageManager.EpisodeStorage(),
		storageManager.ConsumptionStorage(),
		logger,
	)

	if err := app.SchedulerService.Start(); err != nil {
		logger.Warn().Err(err).Msg("Scheduler start failed")
	}

	app.AnalyticsService = analytics.NewAggregator(
		storageManager.EpisodeStorage(),
		storageManager.SessionStorage(),
		storageManager.InsightStorage(),
		logger,
	)

	app.EpisodeHandler = handlers.NewEpisodeHandler(app.Orchestrator, storageManager, logger)
	app.AnalyticsHandler = handlers.NewAnalyticsHandler(app.AnalyticsService, logger)
	app.CatalogHandler = handlers.NewCatalogHandler(cat, logger)
	app.StatusHandler = handlers.NewStatusHandler(storageManager, llmService, logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)

	logger.Info().
		Int("personas", len(cat.Personas())).
		Int("episode_types", len(cat.EpisodeTypes())).
		Msg("Application initialized")

	return app, nil
}

// Close releases application resources in reverse initialization order
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service close failed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Storage close failed")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
