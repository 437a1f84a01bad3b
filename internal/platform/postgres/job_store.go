package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
	"github.com/labelforge/labelqueue/internal/store"
)

// jobColumns is the column list shared by every query that scans a full job
// row.
const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts,
	progress_current, progress_total, progress_message, result,
	created_at, started_at, completed_at, lease_expires_at`

// PostgresJobStore implements the job.Store interface using PostgreSQL.
// All cross-invocation coordination happens through this table; the claim
// path is the only place where correctness depends on row locking rather
// than application logic.
type PostgresJobStore struct {
	db    *sql.DB
	q     store.DBTX
	lease time.Duration
}

// NewPostgresJobStore creates a new PostgresJobStore. lease is how long a
// claim owns a job before ReclaimStale may hand it back out.
func NewPostgresJobStore(db *sql.DB, lease time.Duration) *PostgresJobStore {
	return &PostgresJobStore{
		db:    db,
		q:     db,
		lease: lease,
	}
}

// WithTx returns a copy of the store whose queries run on the given
// transaction. Claim uses it internally; callers composing multi-store
// transactions can use it the same way.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{
		db:    s.db,
		q:     tx,
		lease: s.lease,
	}
}

// Enqueue persists a new pending job.
func (s *PostgresJobStore) Enqueue(ctx context.Context, j *job.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, job_type, payload, status, priority, attempts, max_attempts,
			progress_current, progress_total, progress_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, '', $8)
	`

	_, err := s.q.ExecContext(ctx, query,
		j.ID,
		string(j.Type),
		[]byte(j.Payload),
		string(j.Status),
		j.Priority,
		j.Attempts,
		j.MaxAttempts,
		j.CreatedAt,
	)
	if err != nil {
		log.Error("failed to enqueue job",
			"job_id", j.ID,
			"job_type", j.Type,
			"error", err)
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// Claim atomically hands out the highest-priority, oldest eligible pending
// job. The SELECT and the status flip run in one transaction; SKIP LOCKED
// makes competing claimants pass over rows another transaction already
// holds, so no two callers can ever receive the same job.
func (s *PostgresJobStore) Claim(ctx context.Context, jobTypes []job.Type) (*job.Job, error) {
	if len(jobTypes) == 0 {
		return nil, nil
	}

	types := make([]string, len(jobTypes))
	for i, t := range jobTypes {
		types[i] = string(t)
	}

	var claimed *job.Job

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.WithTx(tx)
		selectQuery := `
			SELECT id FROM jobs
			WHERE status = $1 AND job_type = ANY($2)
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`

		var id uuid.UUID
		err := txStore.q.QueryRowContext(ctx, selectQuery, string(job.StatusPending), types).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to select claimable job: %w", err)
		}

		now := time.Now().UTC()
		updateQuery := `
			UPDATE jobs
			SET status = $2, attempts = attempts + 1, started_at = $3,
				lease_expires_at = $4,
				progress_current = 0, progress_total = 0, progress_message = '',
				completed_at = NULL, result = NULL
			WHERE id = $1
			RETURNING ` + jobColumns

		j, err := scanJob(txStore.q.QueryRowContext(ctx, updateQuery,
			id, string(job.StatusProcessing), now, now.Add(s.lease)))
		if err != nil {
			return fmt.Errorf("failed to mark job as processing: %w", err)
		}

		claimed = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// UpdateProgress records progress for a processing job. Best-effort by
// contract: callers log failures and keep working. Current is clamped to
// total so a miscounting handler cannot publish progress past 100%.
func (s *PostgresJobStore) UpdateProgress(
	ctx context.Context,
	id uuid.UUID,
	current, total int,
	message string,
) error {
	if total > 0 && current > total {
		current = total
	}

	query := `
		UPDATE jobs
		SET progress_current = $2, progress_total = $3, progress_message = $4
		WHERE id = $1 AND status = $5
	`

	_, err := s.q.ExecContext(ctx, query,
		id, current, total, message, string(job.StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	return nil
}

// Complete transitions a processing job to completed. The status guard makes
// it idempotent: a second call, or a call racing a cancellation, affects
// zero rows and is a no-op rather than an error that aborts the worker.
func (s *PostgresJobStore) Complete(ctx context.Context, id uuid.UUID, result job.Result) error {
	return s.finish(ctx, id, job.StatusCompleted, result)
}

// Fail transitions a processing job to failed and records the error text in
// the result.
func (s *PostgresJobStore) Fail(ctx context.Context, id uuid.UUID, jobErr string) error {
	return s.finish(ctx, id, job.StatusFailed, job.Result{Error: jobErr})
}

func (s *PostgresJobStore) finish(
	ctx context.Context,
	id uuid.UUID,
	status job.Status,
	result job.Result,
) error {
	log := logger.FromContext(ctx)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $2, result = $3, completed_at = $4, lease_expires_at = NULL
		WHERE id = $1 AND status = $5
	`

	res, err := s.q.ExecContext(ctx, query,
		id, string(status), resultJSON, time.Now().UTC(), string(job.StatusProcessing))
	if err != nil {
		log.Error("failed to finish job",
			"job_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to mark job %s: %w", status, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		log.Warn("job not in processing state, finish is a no-op",
			"job_id", id,
			"target_status", status)
	}

	return nil
}

// Cancel marks a non-terminal job cancelled. Workers honor it cooperatively
// at their next checkpoint; an in-flight batch always completes first.
func (s *PostgresJobStore) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = $2, completed_at = $3, lease_expires_at = NULL
		WHERE id = $1 AND status IN ($4, $5)
	`

	res, err := s.q.ExecContext(ctx, query,
		id, string(job.StatusCancelled), time.Now().UTC(),
		string(job.StatusPending), string(job.StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.explainRefusal(ctx, id)
	}

	return nil
}

// Retry resets a failed or processing job back to pending for another
// attempt. Attempts are deliberately preserved so max_attempts permanently
// gates a job once exhausted.
func (s *PostgresJobStore) Retry(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = $2, started_at = NULL, completed_at = NULL,
			lease_expires_at = NULL, result = NULL
		WHERE id = $1 AND status IN ($3, $4) AND attempts < max_attempts
	`

	res, err := s.q.ExecContext(ctx, query,
		id, string(job.StatusPending),
		string(job.StatusFailed), string(job.StatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		j, getErr := s.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		switch {
		case !j.Retryable():
			return job.ErrRetryExhausted
		case j.Status == job.StatusPending:
			// Already queued; nothing to do.
			return nil
		default:
			return job.ErrAlreadyTerminal
		}
	}

	return nil
}

// explainRefusal turns a zero-row administrative update into the precise
// domain error: missing job vs. job already terminal.
func (s *PostgresJobStore) explainRefusal(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return job.ErrAlreadyTerminal
}

// Get returns a single job by id.
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	j, err := scanJob(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return j, nil
}

// List returns recent jobs, newest first, optionally filtered by status.
func (s *PostgresJobStore) List(
	ctx context.Context,
	status job.Status,
	limit int,
) ([]*job.Job, error) {
	log := logger.FromContext(ctx)

	var (
		rows *sql.Rows
		err  error
	)

	if status != "" {
		query := `
			SELECT ` + jobColumns + `
			FROM jobs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		rows, err = s.q.QueryContext(ctx, query, string(status), limit)
	} else {
		query := `
			SELECT ` + jobColumns + `
			FROM jobs
			ORDER BY created_at DESC
			LIMIT $1
		`
		rows, err = s.q.QueryContext(ctx, query, limit)
	}
	if err != nil {
		log.Error("failed to list jobs", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// CountByStatus returns aggregate job counts keyed by status.
func (s *PostgresJobStore) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM jobs GROUP BY status`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[job.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[job.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

// Cleanup deletes terminal jobs older than the retention window. The status
// filter is what keeps pending and processing jobs safe regardless of age.
func (s *PostgresJobStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status IN ($1, $2, $3) AND completed_at < $4
	`

	cutoff := time.Now().UTC().Add(-retention)
	res, err := s.q.ExecContext(ctx, query,
		string(job.StatusCompleted), string(job.StatusFailed), string(job.StatusCancelled),
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old jobs: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// ReclaimStale resets processing jobs with an expired lease back to pending.
// Attempts stay as claimed, so a job that keeps dying eventually trips the
// max_attempts gate instead of cycling forever.
func (s *PostgresJobStore) ReclaimStale(ctx context.Context) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1, started_at = NULL, lease_expires_at = NULL,
			progress_message = 'reclaimed after lease expiry'
		WHERE status = $2 AND lease_expires_at < $3
	`

	res, err := s.q.ExecContext(ctx, query,
		string(job.StatusPending), string(job.StatusProcessing), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	reclaimed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return reclaimed, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j              job.Job
		jobType        string
		status         string
		payload        []byte
		progressMsg    sql.NullString
		result         []byte
		startedAt      sql.NullTime
		completedAt    sql.NullTime
		leaseExpiresAt sql.NullTime
	)

	err := row.Scan(
		&j.ID,
		&jobType,
		&payload,
		&status,
		&j.Priority,
		&j.Attempts,
		&j.MaxAttempts,
		&j.Progress.Current,
		&j.Progress.Total,
		&progressMsg,
		&result,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
		&leaseExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	j.Type = job.Type(jobType)
	j.Status = job.Status(status)
	j.Payload = json.RawMessage(payload)
	j.Progress.Message = progressMsg.String

	if len(result) > 0 {
		var r job.Result
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
		j.Result = &r
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	if leaseExpiresAt.Valid {
		t := leaseExpiresAt.Time
		j.LeaseExpiresAt = &t
	}

	return &j, nil
}
