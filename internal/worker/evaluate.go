package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/generation"
	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// Submission is one worker answer awaiting LLM evaluation. Prompt is the
// fully rendered evaluation prompt; prompt construction happens upstream.
type Submission struct {
	ID     uuid.UUID
	Prompt string
}

// Evaluation is the verdict recorded for one submission.
type Evaluation struct {
	SubmissionID uuid.UUID
	Verdict      string
}

// SubmissionSource provides submissions awaiting evaluation and records
// verdicts. RecordEvaluation errors are per-item and do not abort the batch.
type SubmissionSource interface {
	PendingBatch(ctx context.Context, datasetID uuid.UUID, limit int) ([]Submission, error)
	RecordEvaluation(ctx context.Context, eval Evaluation) error
	PendingCount(ctx context.Context, datasetID uuid.UUID) (int, error)
}

// Retrigger wakes a worker invocation without waiting for it. The durable
// continuation row is what guarantees the chain survives a lost trigger;
// Fire only shortens the latency until the next invocation runs.
type Retrigger interface {
	Fire(ctx context.Context)
}

// NopRetrigger is used when no self-trigger URL is configured; the chain
// then advances on the external scheduler's cadence.
type NopRetrigger struct{}

// Fire implements Retrigger.
func (NopRetrigger) Fire(context.Context) {}

// EvaluateHandler runs LLM evaluation over one batch of submissions, then
// enqueues a continuation and fires an asynchronous self-trigger so the
// chain advances immediately while the current invocation returns. The
// caller never blocks on the chain.
type EvaluateHandler struct {
	store     job.Store
	source    SubmissionSource
	completer generation.Completer
	retrigger Retrigger
	batchSize int
}

// NewEvaluateHandler creates an EvaluateHandler.
func NewEvaluateHandler(
	store job.Store,
	source SubmissionSource,
	completer generation.Completer,
	retrigger Retrigger,
	batchSize int,
) *EvaluateHandler {
	if retrigger == nil {
		retrigger = NopRetrigger{}
	}
	return &EvaluateHandler{
		store:     store,
		source:    source,
		completer: completer,
		retrigger: retrigger,
		batchSize: batchSize,
	}
}

// Type implements Handler.
func (h *EvaluateHandler) Type() job.Type { return job.TypeEvaluateBatch }

// Execute implements Handler.
func (h *EvaluateHandler) Execute(
	ctx context.Context,
	j *job.Job,
	payload job.Payload,
) (job.Result, error) {
	p, ok := payload.(job.EvaluateBatchPayload)
	if !ok {
		return job.Result{}, fmt.Errorf("%w: expected evaluate payload, got %T",
			job.ErrInvalidPayload, payload)
	}
	log := logger.FromContext(ctx).With(
		"dataset_id", p.DatasetID,
		"correlation_id", p.Correlation)

	batch, err := h.source.PendingBatch(ctx, p.DatasetID, h.batchSize)
	if err != nil {
		return job.Result{}, fmt.Errorf("failed to fetch pending submissions: %w", err)
	}
	if len(batch) == 0 {
		return job.Result{}, nil
	}

	prompts := make([]string, len(batch))
	for i, sub := range batch {
		prompts[i] = sub.Prompt
	}

	// The completion call covers the whole batch; its failure is
	// handler-fatal and surfaces as a failed job for manual retry.
	completions, err := h.completer.Complete(ctx, prompts)
	if err != nil {
		return job.Result{}, fmt.Errorf("completion service failed for batch: %w", err)
	}
	if len(completions) != len(batch) {
		return job.Result{}, fmt.Errorf("completion service returned %d results for %d prompts",
			len(completions), len(batch))
	}

	var result job.Result
	for i, sub := range batch {
		verdict := strings.TrimSpace(completions[i])
		if verdict == "" {
			log.Warn("empty verdict for submission, skipping",
				"submission_id", sub.ID)
			result.Skipped++
			continue
		}

		err := h.source.RecordEvaluation(ctx, Evaluation{
			SubmissionID: sub.ID,
			Verdict:      verdict,
		})
		if err != nil {
			log.Warn("failed to record evaluation, skipping",
				"submission_id", sub.ID,
				"error", err)
			result.Skipped++
			continue
		}
		result.Processed++
	}

	reportProgress(ctx, h.store, j.ID, result.Processed, len(batch), "batch evaluated")

	remaining, err := h.source.PendingCount(ctx, p.DatasetID)
	if err != nil {
		return job.Result{}, fmt.Errorf("failed to count remaining submissions: %w", err)
	}
	result.Remaining = remaining

	if remaining == 0 || cancelled(ctx, h.store, j.ID) {
		return result, nil
	}

	if result.Processed == 0 {
		// Every item in the batch was skipped. Re-enqueueing would build a
		// chain that never shrinks its remaining-work count while burning a
		// completion call per link, so fail instead and leave the decision
		// to an operator.
		return job.Result{}, errors.New("no submissions evaluated but work remains, refusing to re-enqueue")
	}

	continuation := job.New(j.Type, j.Payload, j.Priority)
	if err := h.store.Enqueue(ctx, continuation); err != nil {
		return job.Result{}, fmt.Errorf("failed to enqueue continuation: %w", err)
	}

	// Fire-and-forget: wake a worker now instead of waiting for the next
	// scheduled tick. The enqueued row above is the durable fallback.
	h.retrigger.Fire(ctx)

	log.Info("enqueued evaluate continuation",
		"continuation_id", continuation.ID,
		"remaining", remaining)

	return result, nil
}
