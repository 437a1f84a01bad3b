package api

import (
	"encoding/json"
	"time"

	"github.com/labelforge/labelqueue/internal/job"
)

// EnqueueJobRequest represents the request body for enqueueing a job
type EnqueueJobRequest struct {
	JobType     string          `json:"job_type"     validate:"required"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"     validate:"gte=0,lte=100"`
	MaxAttempts int             `json:"max_attempts" validate:"gte=0,lte=10"`
}

// JobResponse represents the response data for a job
type JobResponse struct {
	ID          string          `json:"id"`
	JobType     string          `json:"job_type"`
	Status      string          `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Progress    *ProgressDTO    `json:"progress,omitempty"`
	Result      *ResultDTO      `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ProgressDTO mirrors job.Progress on the wire.
type ProgressDTO struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// ResultDTO mirrors job.Result on the wire.
type ResultDTO struct {
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Remaining int    `json:"remaining"`
	Reclaimed int    `json:"reclaimed,omitempty"`
}

// JobStatsResponse reports queue depth per status.
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// RunReportResponse summarizes one worker invocation.
type RunReportResponse struct {
	Worker    string `json:"worker"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// jobToResponse converts a job.Job to a JobResponse
func jobToResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:          j.ID.String(),
		JobType:     string(j.Type),
		Status:      string(j.Status),
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Payload:     j.Payload,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Progress != (job.Progress{}) {
		resp.Progress = &ProgressDTO{
			Current: j.Progress.Current,
			Total:   j.Progress.Total,
			Message: j.Progress.Message,
		}
	}
	if j.Result != nil {
		resp.Result = &ResultDTO{
			Error:     j.Result.Error,
			Processed: j.Result.Processed,
			Skipped:   j.Result.Skipped,
			Remaining: j.Result.Remaining,
			Reclaimed: j.Result.Reclaimed,
		}
	}
	return resp
}
