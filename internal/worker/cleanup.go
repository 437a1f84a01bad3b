package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// CleanupHandler is the retention housekeeping job: it deletes terminal
// jobs older than the retention window and reclaims processing jobs whose
// lease expired. It has no ordering dependency on the pipeline job types
// and never touches non-terminal jobs through cleanup.
type CleanupHandler struct {
	store         job.Store
	retentionDays int
}

// NewCleanupHandler creates a CleanupHandler with the default retention in
// days; a job payload may override it per run.
func NewCleanupHandler(store job.Store, retentionDays int) *CleanupHandler {
	return &CleanupHandler{
		store:         store,
		retentionDays: retentionDays,
	}
}

// Type implements Handler.
func (h *CleanupHandler) Type() job.Type { return job.TypeCleanup }

// Execute implements Handler.
func (h *CleanupHandler) Execute(
	ctx context.Context,
	j *job.Job,
	payload job.Payload,
) (job.Result, error) {
	p, ok := payload.(job.CleanupPayload)
	if !ok {
		return job.Result{}, fmt.Errorf("%w: expected cleanup payload, got %T",
			job.ErrInvalidPayload, payload)
	}
	log := logger.FromContext(ctx)

	days := h.retentionDays
	if p.RetentionDays > 0 {
		days = p.RetentionDays
	}
	retention := time.Duration(days) * 24 * time.Hour

	deleted, err := h.store.Cleanup(ctx, retention)
	if err != nil {
		return job.Result{}, fmt.Errorf("cleanup failed: %w", err)
	}

	reclaimed, err := h.store.ReclaimStale(ctx)
	if err != nil {
		return job.Result{}, fmt.Errorf("stale reclaim failed: %w", err)
	}

	log.Info("cleanup finished",
		"retention_days", days,
		"deleted", deleted,
		"reclaimed", reclaimed)

	return job.Result{
		Processed: int(deleted),
		Reclaimed: int(reclaimed),
	}, nil
}
