package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelqueue/internal/store"
	"github.com/labelforge/labelqueue/internal/worker"
)

// datasetTestDB extends testDB with the labeling tables and resets them.
func datasetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db := testDB(t)

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS datasets (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			vectorized_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS uploads (
			id UUID PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets (id),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS records (
			id UUID PRIMARY KEY,
			upload_id UUID NOT NULL REFERENCES uploads (id),
			external_id TEXT NOT NULL,
			text TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			embedding JSONB,
			vectorized_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (upload_id, external_id)
		);
		CREATE TABLE IF NOT EXISTS submissions (
			id UUID PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets (id),
			prompt TEXT NOT NULL,
			verdict TEXT,
			evaluated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	require.NoError(t, err)

	_, err = db.Exec(`TRUNCATE datasets, uploads, records, submissions`)
	require.NoError(t, err)

	return db
}

func createDataset(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO datasets (id, name) VALUES ($1, 'sentiment-v2')`, id)
	require.NoError(t, err)
	return id
}

func createUpload(t *testing.T, db *sql.DB, datasetID uuid.UUID, content string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO uploads (id, dataset_id, content) VALUES ($1, $2, $3)`,
		id, datasetID, content)
	require.NoError(t, err)
	return id
}

func TestDatasetOpenReturnsUploadContent(t *testing.T) {
	db := datasetTestDB(t)
	s := NewDatasetStore(db)

	uploadID := createUpload(t, db, createDataset(t, db), "external_id,text\nrec-1,hello\n")

	body, err := s.Open(context.Background(), uploadID)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()

	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(content), "rec-1,hello")
}

func TestDatasetOpenMissingUpload(t *testing.T) {
	s := NewDatasetStore(datasetTestDB(t))

	_, err := s.Open(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDatasetInsertRejectsDuplicateExternalID(t *testing.T) {
	db := datasetTestDB(t)
	s := NewDatasetStore(db)
	uploadID := createUpload(t, db, createDataset(t, db), "")

	rec := worker.Record{UploadID: uploadID, ExternalID: "rec-1", Text: "hello"}
	require.NoError(t, s.Insert(context.Background(), rec))
	assert.Error(t, s.Insert(context.Background(), rec), "same external id twice")
}

func TestDatasetVectorLifecycle(t *testing.T) {
	db := datasetTestDB(t)
	s := NewDatasetStore(db)
	ctx := context.Background()

	datasetID := createDataset(t, db)
	uploadID := createUpload(t, db, datasetID, "")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Insert(ctx, worker.Record{
			UploadID:   uploadID,
			ExternalID: fmt.Sprintf("rec-%d", i),
			Text:       fmt.Sprintf("text %d", i),
		}))
	}

	pending, err := s.PendingTexts(ctx, datasetID, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	vectors := make([]worker.RecordVector, len(pending))
	for i, item := range pending {
		vectors[i] = worker.RecordVector{ID: item.ID, Vector: []float32{0.5, 1}}
	}
	require.NoError(t, s.StoreVectors(ctx, datasetID, vectors))

	n, err := s.PendingCount(ctx, datasetID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "vectorized records leave the pending set")

	rest, err := s.PendingTexts(ctx, datasetID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	for _, item := range rest {
		vectors = append(vectors, worker.RecordVector{ID: item.ID, Vector: []float32{1}})
	}
	require.NoError(t, s.StoreVectors(ctx, datasetID, vectors[3:]))
	require.NoError(t, s.MarkVectorized(ctx, datasetID))

	var vectorizedAt sql.NullTime
	require.NoError(t, db.QueryRow(
		`SELECT vectorized_at FROM datasets WHERE id = $1`, datasetID,
	).Scan(&vectorizedAt))
	assert.True(t, vectorizedAt.Valid)
}

func TestDatasetSubmissionLifecycle(t *testing.T) {
	db := datasetTestDB(t)
	s := NewDatasetStore(db)
	ctx := context.Background()

	datasetID := createDataset(t, db)
	ids := make([]uuid.UUID, 4)
	for i := range ids {
		ids[i] = uuid.New()
		_, err := db.Exec(`
			INSERT INTO submissions (id, dataset_id, prompt) VALUES ($1, $2, $3)
		`, ids[i], datasetID, fmt.Sprintf("judge answer %d", i))
		require.NoError(t, err)
	}

	source := s.Submissions()

	batch, err := source.PendingBatch(ctx, datasetID, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for _, sub := range batch {
		require.NoError(t, source.RecordEvaluation(ctx, worker.Evaluation{
			SubmissionID: sub.ID,
			Verdict:      "approved",
		}))
	}

	remaining, err := source.PendingCount(ctx, datasetID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	var verdict sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT verdict FROM submissions WHERE id = $1`, batch[0].ID,
	).Scan(&verdict))
	assert.Equal(t, "approved", verdict.String)
}

func TestDatasetRecordEvaluationUnknownSubmission(t *testing.T) {
	s := NewDatasetStore(datasetTestDB(t))

	err := s.RecordEvaluation(context.Background(), worker.Evaluation{
		SubmissionID: uuid.New(),
		Verdict:      "approved",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
