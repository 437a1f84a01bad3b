package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/labelforge/labelqueue/internal/config"
	"github.com/labelforge/labelqueue/internal/worker"
)

// devScheduler drives the worker loops from an in-process cron. Deployments
// use an external scheduler hitting the trigger endpoints instead; this
// exists so local development processes jobs without extra infrastructure.
type devScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// newDevScheduler registers one cron entry per worker loop using the
// configured specs.
func newDevScheduler(
	cfg config.SchedulerConfig,
	loops map[string]*worker.Loop,
	logger *slog.Logger,
) (*devScheduler, error) {
	c := cron.New()
	log := logger.With("component", "scheduler")

	specs := map[string]string{
		workerPipeline:    cfg.PipelineSpec,
		workerMaintenance: cfg.MaintenanceSpec,
	}

	for name, spec := range specs {
		loop, ok := loops[name]
		if !ok {
			return nil, fmt.Errorf("no loop registered for worker %q", name)
		}

		name := name
		_, err := c.AddFunc(spec, func() {
			report, err := loop.Run(context.Background())
			if err != nil {
				log.Error("scheduled worker run failed", "worker", name, "error", err)
				return
			}
			if report.Processed > 0 || report.Failed > 0 {
				log.Info("scheduled worker run finished",
					"worker", name,
					"processed", report.Processed,
					"failed", report.Failed,
					"elapsed", report.Elapsed)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid cron spec %q for worker %q: %w", spec, name, err)
		}
	}

	return &devScheduler{cron: c, logger: log}, nil
}

// Start begins firing the cron entries.
func (s *devScheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts the cron and waits for running entries to return.
func (s *devScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
