package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/store"
	"github.com/labelforge/labelqueue/internal/worker"
)

// DatasetStore backs the pipeline handlers with the labeling tables: staged
// uploads, imported records and worker submissions. It implements
// worker.UploadSource, worker.RecordSink, worker.VectorSource and
// worker.SubmissionSource over one database handle.
//
// Embeddings are stored as JSONB rather than a native array type so the
// database/sql layer stays free of driver-specific array codecs.
type DatasetStore struct {
	db *sql.DB
}

// NewDatasetStore creates a new DatasetStore.
func NewDatasetStore(db *sql.DB) *DatasetStore {
	return &DatasetStore{db: db}
}

// Open returns the staged CSV content for an upload.
func (s *DatasetStore) Open(ctx context.Context, uploadID uuid.UUID) (io.ReadCloser, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM uploads WHERE id = $1`,
		uploadID,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload %s: %w", uploadID, err)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// Insert stores one imported record. Re-importing the same external id for
// an upload is a conflict surfaced to the caller, who skips the row.
func (s *DatasetStore) Insert(ctx context.Context, rec worker.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, upload_id, external_id, text, label, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`,
		uuid.New(),
		rec.UploadID,
		rec.ExternalID,
		rec.Text,
		rec.Label,
	)
	if err != nil {
		return store.NewStoreError("record", "insert",
			fmt.Sprintf("external_id %q", rec.ExternalID), err)
	}
	return nil
}

// PendingTexts returns up to limit records of a dataset that have no
// embedding yet, oldest first so chains drain in import order.
func (s *DatasetStore) PendingTexts(
	ctx context.Context,
	datasetID uuid.UUID,
	limit int,
) ([]worker.RecordText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.text
		FROM records r
		JOIN uploads u ON u.id = r.upload_id
		WHERE u.dataset_id = $1 AND r.embedding IS NULL
		ORDER BY r.created_at ASC
		LIMIT $2
	`, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []worker.RecordText
	for rows.Next() {
		var item worker.RecordText
		if err := rows.Scan(&item.ID, &item.Text); err != nil {
			return nil, fmt.Errorf("failed to scan pending record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending records: %w", err)
	}
	return items, nil
}

// StoreVectors persists computed embeddings for one batch.
func (s *DatasetStore) StoreVectors(
	ctx context.Context,
	datasetID uuid.UUID,
	vectors []worker.RecordVector,
) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, v := range vectors {
			raw, err := json.Marshal(v.Vector)
			if err != nil {
				return fmt.Errorf("failed to encode embedding for %s: %w", v.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE records SET embedding = $2, vectorized_at = now()
				WHERE id = $1
			`, v.ID, raw)
			if err != nil {
				return store.NewStoreError("record", "store_vectors", v.ID.String(), err)
			}
		}
		return nil
	})
}

// PendingCount returns how many records of a dataset still lack embeddings.
func (s *DatasetStore) PendingCount(ctx context.Context, datasetID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM records r
		JOIN uploads u ON u.id = r.upload_id
		WHERE u.dataset_id = $1 AND r.embedding IS NULL
	`, datasetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return n, nil
}

// MarkVectorized stamps the dataset once every record has an embedding.
func (s *DatasetStore) MarkVectorized(ctx context.Context, datasetID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE datasets SET vectorized_at = now() WHERE id = $1
	`, datasetID)
	if err != nil {
		return fmt.Errorf("failed to mark dataset %s vectorized: %w", datasetID, err)
	}
	return nil
}

// PendingBatch returns up to limit submissions of a dataset that have no
// verdict yet.
func (s *DatasetStore) PendingBatch(
	ctx context.Context,
	datasetID uuid.UUID,
	limit int,
) ([]worker.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt
		FROM submissions
		WHERE dataset_id = $1 AND verdict IS NULL
		ORDER BY created_at ASC
		LIMIT $2
	`, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batch []worker.Submission
	for rows.Next() {
		var sub worker.Submission
		if err := rows.Scan(&sub.ID, &sub.Prompt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		batch = append(batch, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return batch, nil
}

// RecordEvaluation stores the verdict for one submission.
func (s *DatasetStore) RecordEvaluation(ctx context.Context, eval worker.Evaluation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET verdict = $2, evaluated_at = now()
		WHERE id = $1
	`, eval.SubmissionID, eval.Verdict)
	if err != nil {
		return fmt.Errorf("failed to record evaluation for %s: %w", eval.SubmissionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check evaluation update: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SubmissionPendingCount is PendingCount for submissions; a separate method
// because worker.VectorSource and worker.SubmissionSource both declare
// PendingCount and the two tables differ.
func (s *DatasetStore) SubmissionPendingCount(ctx context.Context, datasetID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM submissions
		WHERE dataset_id = $1 AND verdict IS NULL
	`, datasetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending submissions: %w", err)
	}
	return n, nil
}

// Submissions returns a view of the store that satisfies
// worker.SubmissionSource, with PendingCount bound to the submissions table.
func (s *DatasetStore) Submissions() worker.SubmissionSource {
	return submissionView{s}
}

type submissionView struct {
	*DatasetStore
}

func (v submissionView) PendingCount(ctx context.Context, datasetID uuid.UUID) (int, error) {
	return v.SubmissionPendingCount(ctx, datasetID)
}

// Interface checks; SubmissionSource is covered by the Submissions view.
var (
	_ worker.UploadSource     = (*DatasetStore)(nil)
	_ worker.RecordSink       = (*DatasetStore)(nil)
	_ worker.VectorSource     = (*DatasetStore)(nil)
	_ worker.SubmissionSource = submissionView{}
)
