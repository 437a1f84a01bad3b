package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/store"
)

// MockJobStore implements the job.Store interface in memory for testing.
// It mirrors the Postgres store's semantics closely enough that loop and
// handler tests exercise real claim ordering, idempotent completion, and
// retention behavior without a database. Individual operations can be
// overridden through the *Fn fields to inject failures.
type MockJobStore struct {
	mutex sync.Mutex
	jobs  map[uuid.UUID]*job.Job
	lease time.Duration

	ClaimFn   func(ctx context.Context, jobTypes []job.Type) (*job.Job, error)
	EnqueueFn func(ctx context.Context, j *job.Job) error
}

// NewMockJobStore creates an empty MockJobStore with a 10 minute lease.
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		jobs:  make(map[uuid.UUID]*job.Job),
		lease: 10 * time.Minute,
	}
}

func (s *MockJobStore) Enqueue(ctx context.Context, j *job.Job) error {
	if s.EnqueueFn != nil {
		return s.EnqueueFn(ctx, j)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	clone := *j
	s.jobs[j.ID] = &clone
	return nil
}

func (s *MockJobStore) Claim(ctx context.Context, jobTypes []job.Type) (*job.Job, error) {
	if s.ClaimFn != nil {
		return s.ClaimFn(ctx, jobTypes)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	eligible := make(map[job.Type]bool, len(jobTypes))
	for _, t := range jobTypes {
		eligible[t] = true
	}

	var candidates []*job.Job
	for _, j := range s.jobs {
		if j.Status == job.StatusPending && eligible[j.Type] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	j := candidates[0]
	now := time.Now().UTC()
	expiry := now.Add(s.lease)
	j.Status = job.StatusProcessing
	j.Attempts++
	j.StartedAt = &now
	j.LeaseExpiresAt = &expiry
	j.Progress = job.Progress{}
	j.Result = nil
	j.CompletedAt = nil

	clone := *j
	return &clone, nil
}

func (s *MockJobStore) UpdateProgress(
	ctx context.Context,
	id uuid.UUID,
	current, total int,
	message string,
) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != job.StatusProcessing {
		return nil
	}
	if total > 0 && current > total {
		current = total
	}
	j.Progress = job.Progress{Current: current, Total: total, Message: message}
	return nil
}

func (s *MockJobStore) Complete(ctx context.Context, id uuid.UUID, result job.Result) error {
	return s.finish(id, job.StatusCompleted, result)
}

func (s *MockJobStore) Fail(ctx context.Context, id uuid.UUID, jobErr string) error {
	return s.finish(id, job.StatusFailed, job.Result{Error: jobErr})
}

func (s *MockJobStore) finish(id uuid.UUID, status job.Status, result job.Result) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status != job.StatusProcessing {
		// Idempotent no-op, matching the Postgres status guard.
		return nil
	}
	now := time.Now().UTC()
	j.Status = status
	j.Result = &result
	j.CompletedAt = &now
	j.LeaseExpiresAt = nil
	return nil
}

func (s *MockJobStore) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if j.Status.Terminal() {
		return job.ErrAlreadyTerminal
	}
	now := time.Now().UTC()
	j.Status = job.StatusCancelled
	j.CompletedAt = &now
	j.LeaseExpiresAt = nil
	return nil
}

func (s *MockJobStore) Retry(ctx context.Context, id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	switch {
	case j.Status == job.StatusPending:
		return nil
	case j.Status != job.StatusFailed && j.Status != job.StatusProcessing:
		return job.ErrAlreadyTerminal
	case !j.Retryable():
		return job.ErrRetryExhausted
	}
	j.Status = job.StatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.LeaseExpiresAt = nil
	j.Result = nil
	return nil
}

func (s *MockJobStore) Get(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	clone := *j
	return &clone, nil
}

func (s *MockJobStore) List(ctx context.Context, status job.Status, limit int) ([]*job.Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var jobs []*job.Job
	for _, j := range s.jobs {
		if status == "" || j.Status == status {
			clone := *j
			jobs = append(jobs, &clone)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MockJobStore) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	counts := make(map[job.Status]int)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

func (s *MockJobStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	var deleted int64
	for id, j := range s.jobs {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MockJobStore) ReclaimStale(ctx context.Context) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now().UTC()
	var reclaimed int64
	for _, j := range s.jobs {
		if j.Status == job.StatusProcessing &&
			j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now) {
			j.Status = job.StatusPending
			j.StartedAt = nil
			j.LeaseExpiresAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

// SetLease overrides the lease applied on claims, for reclaim tests.
func (s *MockJobStore) SetLease(d time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lease = d
}

// Compile-time interface check.
var _ job.Store = (*MockJobStore)(nil)
