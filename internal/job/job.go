package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a job
type Status string

// Possible job status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Type discriminates which handler logic applies to a job
type Type string

// Job type constants
const (
	// TypeIngest imports staged CSV upload rows into labeled records
	TypeIngest Type = "ingest"

	// TypeVectorize generates embeddings for unvectorized records
	TypeVectorize Type = "vectorize"

	// TypeEvaluateBatch runs LLM evaluation over a batch of submissions
	TypeEvaluateBatch Type = "evaluate_batch"

	// TypeCleanup deletes old terminal jobs and reclaims stale leases
	TypeCleanup Type = "cleanup"
)

// DefaultMaxAttempts is applied at enqueue time when the producer does not
// specify a limit.
const DefaultMaxAttempts = 3

// Progress tracks how far a single processing attempt has advanced.
// It is observability data only; no scheduling decision reads it.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Result is the structured outcome written when a job reaches a terminal
// status.
type Result struct {
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
	Reclaimed int    `json:"reclaimed,omitempty"`
}

// Job is one durable unit of schedulable work.
type Job struct {
	ID             uuid.UUID
	Type           Type
	Payload        json.RawMessage
	Status         Status
	Priority       int
	Attempts       int
	MaxAttempts    int
	Progress       Progress
	Result         *Result
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	LeaseExpiresAt *time.Time
}

// New creates a pending job ready to be enqueued. The payload must already
// be encoded; use EncodePayload for typed payloads.
func New(jobType Type, payload json.RawMessage, priority int) *Job {
	return &Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payload,
		Status:      StatusPending,
		Priority:    priority,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
}

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the status state machine permits moving
// from one status to another. Claims are the only way out of pending, and
// a manual retry is the only way back into it.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed ||
			to == StatusPending || to == StatusCancelled
	case StatusFailed:
		// Manual retry only.
		return to == StatusPending
	default:
		return false
	}
}

// Retryable reports whether the job may be manually re-queued: it must not
// have exhausted its attempt budget. Attempts are preserved across retries,
// so this gate is permanent once reached.
func (j *Job) Retryable() bool {
	return j.Attempts < j.MaxAttempts
}
