package worker

import (
	"context"

	"github.com/labelforge/labelqueue/internal/job"
)

// Handler executes the type-specific logic for one claimed job. The loop
// decodes the payload before calling Execute, so handlers always receive
// their concrete payload type.
//
// Error contract: a returned error is handler-fatal and fails the job.
// Transient per-item problems inside a batch are the handler's business;
// it logs them, skips the item, and keeps going so one bad record does not
// strand the rest.
type Handler interface {
	// Type returns the job type this handler serves.
	Type() job.Type

	// Execute runs the job and returns the result recorded on completion.
	Execute(ctx context.Context, j *job.Job, payload job.Payload) (job.Result, error)
}
