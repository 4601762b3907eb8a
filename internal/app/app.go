package app

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
	"github.com/ternarybob/stockgrader/internal/handlers"
	"github.com/ternarybob/stockgrader/internal/interfaces"
	"github.com/ternarybob/stockgrader/internal/services/analysis"
	"github.com/ternarybob/stockgrader/internal/services/chat"
	"github.com/ternarybob/stockgrader/internal/services/llm"
	"github.com/ternarybob/stockgrader/internal/services/report"
	"github.com/ternarybob/stockgrader/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Model access
	Provider interfaces.AnalysisProvider

	// Domain services
	Sessions        *chat.Manager
	AnalysisService *analysis.Service
	ReportService   *report.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	SessionHandler  *handlers.SessionHandler
	AnalysisHandler *handlers.AnalysisHandler
	ChatHandler     *handlers.ChatHandler
	WSHandler       *handlers.WebSocketHandler
	PageHandler     *handlers.PageHandler
	KVHandler       *handlers.KVHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", app.Provider.Name()).
		Str("model", app.Provider.Model()).
		Bool("chat_context", cfg.Chat.IncludeAnalysisContext).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	ttl := common.ParseDuration(a.Config.Chat.TranscriptTTL, 24*time.Hour)
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger, ttl)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Dur("transcript_ttl", ttl).
		Msg("Storage layer initialized")

	return nil
}

// initServices wires the provider, session registry and domain services
func (a *App) initServices() error {
	provider, err := llm.NewProvider(a.Config, a.StorageManager.KeyValueStorage(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create analysis provider: %w", err)
	}
	a.Provider = provider

	a.Sessions = chat.NewManager(&a.Config.Chat, a.StorageManager.TranscriptStorage(), a.Logger)
	if err := a.Sessions.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}

	a.AnalysisService = analysis.NewService(
		a.Provider,
		a.StorageManager.AnalysisStorage(),
		a.Sessions,
		&a.Config.Analysis,
		a.Logger,
	)
	a.ReportService = report.NewService(&a.Config.Report, a.Logger)

	a.Logger.Debug().
		Str("provider", provider.Name()).
		Str("sweep_schedule", a.Config.Chat.SweepSchedule).
		Msg("Services initialized")

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.AnalysisService, a.Sessions, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.Sessions, a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.AnalysisService, a.ReportService, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.Sessions, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Sessions, &a.Config.Chat, a.Logger)
	a.PageHandler = handlers.NewPageHandler(a.Provider.Name(), a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KeyValueStorage(), a.Logger)
}

// Close stops background work and closes storage
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
