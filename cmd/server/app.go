package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/labelforge/labelqueue/internal/config"
	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/gemini"
	"github.com/labelforge/labelqueue/internal/platform/postgres"
	"github.com/labelforge/labelqueue/internal/worker"
)

// Worker names served by POST /internal/workers/{worker}/run. The pipeline
// worker owns the labeling job types; maintenance owns retention and lease
// reclaim, so a slow pipeline never starves housekeeping.
const (
	workerPipeline    = "pipeline"
	workerMaintenance = "maintenance"
)

// application holds the shared application dependencies so wiring and
// cleanup live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jobStore job.Store
	datasets *postgres.DatasetStore
	llm      *gemini.GeminiService

	loops     map[string]*worker.Loop
	scheduler *devScheduler
}

// newApplication creates an application instance with all dependencies
// initialized.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.jobStore = postgres.NewPostgresJobStore(db, cfg.Worker.LeaseDuration)
	app.datasets = postgres.NewDatasetStore(db)

	var err error
	app.llm, err = gemini.NewGeminiService(ctx, logger.With("component", "llm"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	logger.Info("LLM service initialized",
		"model", cfg.LLM.ModelName,
		"embedding_model", cfg.LLM.EmbeddingModel)

	app.loops = map[string]*worker.Loop{
		workerPipeline:    app.buildPipelineLoop(),
		workerMaintenance: app.buildMaintenanceLoop(),
	}

	if cfg.Scheduler.Enabled {
		app.scheduler, err = newDevScheduler(cfg.Scheduler, app.loops, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up scheduler: %w", err)
		}
		logger.Info("embedded scheduler enabled",
			"pipeline_spec", cfg.Scheduler.PipelineSpec,
			"maintenance_spec", cfg.Scheduler.MaintenanceSpec)
	}

	logger.Info("application initialized")
	return app, nil
}

// buildPipelineLoop assembles the loop for the labeling job types.
func (app *application) buildPipelineLoop() *worker.Loop {
	cfg := app.config.Worker
	loopCfg := worker.Config{
		MaxJobs:       cfg.MaxJobsPerRun,
		HardTimeLimit: cfg.HardTimeLimit,
	}

	loop := worker.NewLoop(workerPipeline, app.jobStore, loopCfg,
		app.logger.With("worker", workerPipeline))

	loop.Register(worker.NewIngestHandler(app.jobStore, app.datasets, app.datasets))
	loop.Register(worker.NewVectorizeHandler(
		app.jobStore, app.datasets, app.llm, cfg.BatchSize, cfg.MaxItemsPerRun))
	loop.Register(worker.NewEvaluateHandler(
		app.jobStore, app.datasets.Submissions(), app.llm,
		app.pipelineRetrigger(), cfg.BatchSize))

	return loop
}

// buildMaintenanceLoop assembles the housekeeping loop.
func (app *application) buildMaintenanceLoop() *worker.Loop {
	loop := worker.NewLoop(workerMaintenance, app.jobStore, worker.Config{
		MaxJobs:       app.config.Worker.MaxJobsPerRun,
		HardTimeLimit: app.config.Worker.HardTimeLimit,
	}, app.logger.With("worker", workerMaintenance))

	loop.Register(worker.NewCleanupHandler(app.jobStore, app.config.Worker.RetentionDays))
	return loop
}

// pipelineRetrigger returns the self-trigger used by continuation chains.
// Without a configured self URL the chains advance on the scheduler cadence
// alone.
func (app *application) pipelineRetrigger() worker.Retrigger {
	selfURL := app.config.Trigger.SelfURL
	if selfURL == "" {
		return worker.NopRetrigger{}
	}
	triggerURL := strings.TrimSuffix(selfURL, "/") +
		"/internal/workers/" + workerPipeline + "/run"
	return worker.NewHTTPRetrigger(triggerURL, app.config.Trigger.Secret)
}

// Run starts the scheduler, if enabled, and the HTTP server. It blocks until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	if app.scheduler != nil {
		app.scheduler.Start()
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
