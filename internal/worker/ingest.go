package worker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// ingestCheckpointRows is how often the ingest handler reports progress and
// checks for cancellation.
const ingestCheckpointRows = 100

// Record is one imported labeling record.
type Record struct {
	UploadID   uuid.UUID
	ExternalID string
	Text       string
	Label      string
}

// UploadSource provides the staged CSV content for an upload.
type UploadSource interface {
	Open(ctx context.Context, uploadID uuid.UUID) (io.ReadCloser, error)
}

// RecordSink receives imported records. Insert errors are per-item and do
// not abort the import.
type RecordSink interface {
	Insert(ctx context.Context, rec Record) error
}

// IngestHandler imports a staged CSV upload. Expected columns:
// external_id, text, label (header row required). Malformed rows are
// skipped and counted, never fatal: one bad record must not strand the
// rest of the upload.
type IngestHandler struct {
	store  job.Store
	source UploadSource
	sink   RecordSink
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(store job.Store, source UploadSource, sink RecordSink) *IngestHandler {
	return &IngestHandler{
		store:  store,
		source: source,
		sink:   sink,
	}
}

// Type implements Handler.
func (h *IngestHandler) Type() job.Type { return job.TypeIngest }

// Execute implements Handler.
func (h *IngestHandler) Execute(
	ctx context.Context,
	j *job.Job,
	payload job.Payload,
) (job.Result, error) {
	p, ok := payload.(job.IngestPayload)
	if !ok {
		return job.Result{}, fmt.Errorf("%w: expected ingest payload, got %T",
			job.ErrInvalidPayload, payload)
	}
	log := logger.FromContext(ctx).With("upload_id", p.UploadID)

	body, err := h.source.Open(ctx, p.UploadID)
	if err != nil {
		return job.Result{}, fmt.Errorf("failed to open upload %s: %w", p.UploadID, err)
	}
	defer func() { _ = body.Close() }()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return job.Result{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 {
		return job.Result{}, fmt.Errorf("CSV header has %d columns, need at least external_id and text", len(header))
	}

	var result job.Result
	row := 0
	for {
		row++
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed CSV line; skip it and keep importing.
			log.Warn("skipping malformed CSV row", "row", row, "error", err)
			result.Skipped++
			continue
		}

		rec, err := parseRecord(p.UploadID, fields)
		if err != nil {
			log.Warn("skipping invalid record", "row", row, "error", err)
			result.Skipped++
			continue
		}

		if err := h.sink.Insert(ctx, rec); err != nil {
			log.Warn("failed to insert record, skipping", "row", row, "error", err)
			result.Skipped++
			continue
		}
		result.Processed++

		if row%ingestCheckpointRows == 0 {
			reportProgress(ctx, h.store, j.ID, result.Processed, 0,
				fmt.Sprintf("imported %d rows", result.Processed))
			if cancelled(ctx, h.store, j.ID) {
				log.Info("ingest cancelled, stopping at checkpoint", "rows_imported", result.Processed)
				return result, nil
			}
		}
	}

	reportProgress(ctx, h.store, j.ID, result.Processed, result.Processed,
		"import finished")
	return result, nil
}

func parseRecord(uploadID uuid.UUID, fields []string) (Record, error) {
	if len(fields) < 2 {
		return Record{}, fmt.Errorf("expected at least 2 fields, got %d", len(fields))
	}

	externalID := strings.TrimSpace(fields[0])
	text := strings.TrimSpace(fields[1])
	if externalID == "" {
		return Record{}, errors.New("empty external_id")
	}
	if text == "" {
		return Record{}, errors.New("empty text")
	}

	rec := Record{
		UploadID:   uploadID,
		ExternalID: externalID,
		Text:       text,
	}
	if len(fields) > 2 {
		rec.Label = strings.TrimSpace(fields[2])
	}
	return rec, nil
}
