package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/generation"
	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// RecordText is an unvectorized record awaiting embedding.
type RecordText struct {
	ID   uuid.UUID
	Text string
}

// RecordVector pairs a record with its computed embedding.
type RecordVector struct {
	ID     uuid.UUID
	Vector []float32
}

// VectorSource provides the records to vectorize and receives the results.
type VectorSource interface {
	// PendingTexts returns up to limit unvectorized records for a dataset.
	PendingTexts(ctx context.Context, datasetID uuid.UUID, limit int) ([]RecordText, error)

	// StoreVectors persists computed embeddings for one batch.
	StoreVectors(ctx context.Context, datasetID uuid.UUID, vectors []RecordVector) error

	// PendingCount returns how many unvectorized records remain.
	PendingCount(ctx context.Context, datasetID uuid.UUID) (int, error)

	// MarkVectorized records that the dataset has no unvectorized records
	// left, completing the owning logical task.
	MarkVectorized(ctx context.Context, datasetID uuid.UUID) error
}

// VectorizeHandler embeds records in fixed-size batches, bounded per
// invocation, and re-enqueues itself while work remains. One logical
// vectorization becomes a chain of short jobs sharing a correlation id;
// each job instance tracks only its own progress.
type VectorizeHandler struct {
	store     job.Store
	source    VectorSource
	embedder  generation.Embedder
	batchSize int
	maxItems  int
}

// NewVectorizeHandler creates a VectorizeHandler. batchSize items go to the
// embedding service per call; at most maxItems are fetched per invocation.
func NewVectorizeHandler(
	store job.Store,
	source VectorSource,
	embedder generation.Embedder,
	batchSize, maxItems int,
) *VectorizeHandler {
	return &VectorizeHandler{
		store:     store,
		source:    source,
		embedder:  embedder,
		batchSize: batchSize,
		maxItems:  maxItems,
	}
}

// Type implements Handler.
func (h *VectorizeHandler) Type() job.Type { return job.TypeVectorize }

// Execute implements Handler.
func (h *VectorizeHandler) Execute(
	ctx context.Context,
	j *job.Job,
	payload job.Payload,
) (job.Result, error) {
	p, ok := payload.(job.VectorizePayload)
	if !ok {
		return job.Result{}, fmt.Errorf("%w: expected vectorize payload, got %T",
			job.ErrInvalidPayload, payload)
	}
	log := logger.FromContext(ctx).With(
		"dataset_id", p.DatasetID,
		"correlation_id", p.Correlation)

	items, err := h.source.PendingTexts(ctx, p.DatasetID, h.maxItems)
	if err != nil {
		return job.Result{}, fmt.Errorf("failed to fetch pending records: %w", err)
	}

	var result job.Result
	stopped := false

	for start := 0; start < len(items); start += h.batchSize {
		if cancelled(ctx, h.store, j.ID) {
			log.Info("vectorize cancelled, stopping at batch boundary",
				"processed", result.Processed)
			stopped = true
			break
		}

		end := start + h.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		if err := h.vectorizeBatch(ctx, p.DatasetID, batch); err != nil {
			// A failed batch is skipped, not fatal: the records stay
			// unvectorized and a later job in the chain picks them up.
			log.Warn("embedding batch failed, skipping",
				"batch_start", start,
				"batch_size", len(batch),
				"error", err)
			result.Skipped += len(batch)
			continue
		}

		result.Processed += len(batch)
		reportProgress(ctx, h.store, j.ID, result.Processed, len(items),
			fmt.Sprintf("vectorized %d of %d records", result.Processed, len(items)))
	}

	remaining, err := h.source.PendingCount(ctx, p.DatasetID)
	if err != nil {
		return job.Result{}, fmt.Errorf("failed to count remaining records: %w", err)
	}
	result.Remaining = remaining

	if remaining == 0 {
		if err := h.source.MarkVectorized(ctx, p.DatasetID); err != nil {
			return job.Result{}, fmt.Errorf("failed to mark dataset vectorized: %w", err)
		}
		return result, nil
	}

	if stopped {
		// Cancelled chains do not continue; the remaining work is
		// re-triggerable by enqueueing a fresh vectorize job.
		return result, nil
	}

	if result.Processed == 0 {
		// Nothing moved this invocation. Re-enqueueing would build a chain
		// that never shrinks its remaining-work count, so fail instead and
		// leave the decision to an operator.
		return job.Result{}, errors.New("no records vectorized but work remains, refusing to re-enqueue")
	}

	continuation := job.New(j.Type, j.Payload, j.Priority)
	if err := h.store.Enqueue(ctx, continuation); err != nil {
		return job.Result{}, fmt.Errorf("failed to enqueue continuation: %w", err)
	}
	log.Info("enqueued vectorize continuation",
		"continuation_id", continuation.ID,
		"remaining", remaining)

	return result, nil
}

func (h *VectorizeHandler) vectorizeBatch(
	ctx context.Context,
	datasetID uuid.UUID,
	batch []RecordText,
) error {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.Text
	}

	vectors, err := h.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}

	records := make([]RecordVector, len(batch))
	for i, item := range batch {
		records[i] = RecordVector{ID: item.ID, Vector: vectors[i]}
	}

	return h.source.StoreVectors(ctx, datasetID, records)
}
