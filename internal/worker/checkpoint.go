package worker

import (
	"context"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// cancelled is the cooperative cancellation checkpoint handlers call at
// batch boundaries. Cancellation is advisory: an in-flight batch always
// finishes before the handler observes it here. Read failures are treated
// as "not cancelled" so a flaky status read cannot abort real work.
func cancelled(ctx context.Context, s job.Store, id uuid.UUID) bool {
	j, err := s.Get(ctx, id)
	if err != nil {
		logger.FromContext(ctx).Debug("cancellation check failed, continuing",
			"job_id", id,
			"error", err)
		return false
	}
	return j.Status == job.StatusCancelled
}

// reportProgress updates job progress, logging and swallowing errors per
// the best-effort contract.
func reportProgress(ctx context.Context, s job.Store, id uuid.UUID, current, total int, message string) {
	if err := s.UpdateProgress(ctx, id, current, total, message); err != nil {
		logger.FromContext(ctx).Warn("failed to update job progress",
			"job_id", id,
			"error", err)
	}
}
