package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// budgetFraction is the share of the host's hard execution limit the loop
// may spend claiming jobs. The remainder is margin for bookkeeping and the
// HTTP response, so the host never kills an invocation mid-write.
const budgetFraction = 0.8

// Config bounds a single invocation of the loop.
type Config struct {
	// MaxJobs caps how many jobs one invocation may process.
	MaxJobs int

	// HardTimeLimit is the host's execution limit for the invocation.
	HardTimeLimit time.Duration
}

// Report summarizes one invocation for the trigger response.
type Report struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"-"`
}

// Loop is the claim-process cycle run by one invocation. Handlers are
// registered per job type; the loop claims only types it has handlers for.
type Loop struct {
	name     string
	store    job.Store
	handlers map[job.Type]Handler
	cfg      Config
	logger   *slog.Logger
}

// NewLoop creates a worker loop. name identifies the loop in logs and on
// the trigger surface (e.g. "pipeline", "maintenance").
func NewLoop(name string, store job.Store, cfg Config, log *slog.Logger) *Loop {
	return &Loop{
		name:     name,
		store:    store,
		handlers: make(map[job.Type]Handler),
		cfg:      cfg,
		logger:   log.With("worker", name),
	}
}

// Register adds a handler for its job type. Registering two handlers for
// the same type is a wiring bug and panics at startup.
func (l *Loop) Register(h Handler) {
	if _, dup := l.handlers[h.Type()]; dup {
		panic(fmt.Sprintf("worker %s: duplicate handler for job type %q", l.name, h.Type()))
	}
	l.handlers[h.Type()] = h
}

// Types returns the job types this loop claims.
func (l *Loop) Types() []job.Type {
	types := make([]job.Type, 0, len(l.handlers))
	for t := range l.handlers {
		types = append(types, t)
	}
	return types
}

// Run claims and processes jobs until no eligible job remains, the job cap
// is hit, or the time budget is spent. A claim-layer error aborts the
// invocation; nothing was claimed, so the next scheduled trigger simply
// retries.
func (l *Loop) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	budget := time.Duration(float64(l.cfg.HardTimeLimit) * budgetFraction)
	types := l.Types()

	var report Report

	for report.Processed+report.Failed < l.cfg.MaxJobs {
		if elapsed := time.Since(start); elapsed > budget {
			l.logger.Info("time budget spent, leaving remaining work for next invocation",
				"elapsed", elapsed,
				"budget", budget)
			break
		}

		claimed, err := l.store.Claim(ctx, types)
		if err != nil {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("claim failed: %w", err)
		}
		if claimed == nil {
			break
		}

		if l.process(ctx, claimed) {
			report.Processed++
		} else {
			report.Failed++
		}
	}

	report.Elapsed = time.Since(start)
	l.logger.Info("worker invocation finished",
		"processed", report.Processed,
		"failed", report.Failed,
		"elapsed", report.Elapsed)

	return report, nil
}

// process executes one claimed job and records its terminal status.
// Returns true on completion, false on failure.
func (l *Loop) process(ctx context.Context, j *job.Job) bool {
	log := l.logger.With(
		"job_id", j.ID,
		"job_type", j.Type,
		"attempt", j.Attempts)
	ctx = logger.WithLogger(ctx, log)

	handler, ok := l.handlers[j.Type]
	if !ok {
		// Claim was restricted to registered types, so this means the
		// registration set changed under us. Fail loudly rather than
		// leaving the job processing until its lease expires.
		l.fail(ctx, j, fmt.Sprintf("no handler registered for job type %q", j.Type))
		return false
	}

	payload, err := job.DecodePayload(j.Type, j.Payload)
	if err != nil {
		log.Error("job payload is undecodable", "error", err)
		l.fail(ctx, j, err.Error())
		return false
	}

	log.Info("processing job")

	result, err := handler.Execute(ctx, j, payload)
	if err != nil {
		log.Error("job execution failed", "error", err)
		l.fail(ctx, j, err.Error())
		return false
	}

	if err := l.store.Complete(ctx, j.ID, result); err != nil {
		log.Error("failed to mark job completed", "error", err)
		return false
	}

	log.Info("job completed",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"remaining", result.Remaining)
	return true
}

func (l *Loop) fail(ctx context.Context, j *job.Job, msg string) {
	if err := l.store.Fail(ctx, j.ID, msg); err != nil {
		logger.FromContext(ctx).Error("failed to mark job failed", "error", err)
	}
}
