// -----------------------------------------------------------------------
// App - component wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/handlers"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/events"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/metrics"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/registry"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runner"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/runstate"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/scheduler"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/services/status"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/storage/badger"
)

// resumableCases is the fixed allow-list of cases whose interrupted runs may
// be resumed
var resumableCases = []string{
	models.CaseFullPipeline,
	models.CaseSyncOnly,
	models.CaseExtractOnly,
}

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService interfaces.SchedulerService

	// Run orchestration
	Registry      *registry.Registry
	Tracker       *runstate.Tracker
	RunnerService *runner.Service
	StatusService *status.Service
	MetricsEngine *metrics.Engine

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	RunHandler      *handlers.RunHandler
	StatusHandler   *handlers.StatusHandler
	ScheduleHandler *handlers.ScheduleHandler
	MetricsHandler  *handlers.MetricsHandler
	WSHandler       *handlers.WebSocketHandler
}

// New creates the application, wiring storage, services and handlers
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initServices(); err != nil {
		return nil, err
	}
	a.initHandlers()

	return a, nil
}

func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = manager

	// seed schedules from deployment files; idempotent across restarts
	if err := badger.LoadSchedulesFromFiles(context.Background(), manager.ScheduleStorage(),
		a.Config.Pipeline.SchedulesDir, a.Config.Scheduler.Timezones, a.Logger); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load schedule seed files")
	}

	return nil
}

func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)
	a.Registry = registry.New(a.Logger)

	checkpoints := a.StorageManager.CheckpointStorage()
	a.Tracker = runstate.NewTracker(a.Config.Pipeline.RunStatePath, resumableCases, checkpoints, a.Logger)

	runnerService, err := runner.NewService(a.Config, a.Registry, a.Tracker, checkpoints, a.EventService, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize runner service: %w", err)
	}
	a.RunnerService = runnerService

	a.SchedulerService = scheduler.NewService(a.Config, a.StorageManager.ScheduleStorage(),
		a.StorageManager.AuditStorage(), runnerService, a.Registry, a.EventService, a.Logger)

	a.StatusService = status.NewService(checkpoints, a.StorageManager.ManifestStorage(), a.Registry, a.Tracker, a.Logger)
	a.MetricsEngine = metrics.NewEngine(checkpoints, a.Logger)

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.RunHandler = handlers.NewRunHandler(a.Config, a.RunnerService)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService)
	a.ScheduleHandler = handlers.NewScheduleHandler(a.SchedulerService, a.StorageManager.AuditStorage())
	a.MetricsHandler = handlers.NewMetricsHandler(a.MetricsEngine)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
}

// Close shuts the application down: scheduler first so no new runs start,
// then active runs, then storage.
func (a *App) Close() error {
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}

	for _, active := range a.Registry.List() {
		if active.Handle == nil {
			continue
		}
		a.Logger.Info().Str("run_id", active.RunID).Str("case_id", active.CaseID).Msg("Stopping active run for shutdown")
		if err := active.Handle.Stop(); err != nil {
			a.Logger.Warn().Err(err).Str("run_id", active.RunID).Msg("Failed to stop active run")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
