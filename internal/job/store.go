package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the persistence contract for jobs. The store is the only
// shared mutable state between worker invocations, so every operation that
// two invocations could race on (Claim above all) must be atomic inside the
// implementation, not in the caller.
// Version: 1.0
type Store interface {
	// Enqueue persists a new pending job. It never blocks on other jobs.
	Enqueue(ctx context.Context, j *Job) error

	// Claim atomically selects the highest-priority, oldest pending job
	// whose type is in jobTypes, transitions it to processing, stamps
	// StartedAt and the lease expiry, increments Attempts, and returns it.
	// Returns (nil, nil) when no eligible job exists. Two concurrent calls
	// must never return the same job.
	Claim(ctx context.Context, jobTypes []Type) (*Job, error)

	// UpdateProgress records progress for observability. Best-effort:
	// callers must treat a returned error as loggable, not fatal.
	UpdateProgress(ctx context.Context, id uuid.UUID, current, total int, message string) error

	// Complete transitions processing -> completed and stamps CompletedAt.
	// Idempotent: completing a job that is no longer processing is a no-op.
	Complete(ctx context.Context, id uuid.UUID, result Result) error

	// Fail transitions processing -> failed, records the error in the
	// result, and stamps CompletedAt.
	Fail(ctx context.Context, id uuid.UUID, jobErr string) error

	// Cancel marks a non-terminal job cancelled. Workers observe it
	// cooperatively at their own checkpoints.
	Cancel(ctx context.Context, id uuid.UUID) error

	// Retry resets a failed or processing job to pending without touching
	// Attempts. Refused with ErrRetryExhausted once Attempts >= MaxAttempts.
	Retry(ctx context.Context, id uuid.UUID) error

	// Get returns a single job by id.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// List returns recent jobs, newest first, optionally filtered by status
	// (empty status means all).
	List(ctx context.Context, status Status, limit int) ([]*Job, error)

	// CountByStatus returns aggregate job counts keyed by status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// Cleanup deletes terminal jobs whose CompletedAt is older than the
	// retention window and returns the count deleted. Pending and
	// processing jobs are never touched regardless of age.
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)

	// ReclaimStale resets processing jobs whose lease has expired back to
	// pending, preserving Attempts, and returns the count reclaimed. This
	// is the recovery path for invocations killed mid-work.
	ReclaimStale(ctx context.Context) (int64, error)
}
