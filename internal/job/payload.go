package job

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common payload errors
var (
	ErrUnknownType    = errors.New("unknown job type")
	ErrInvalidPayload = errors.New("invalid job payload")
)

// Payload is implemented by the typed payload of each job type. Handlers
// receive the concrete type after DecodePayload, so they never touch the raw
// JSON blob.
type Payload interface {
	// JobType returns the job type this payload belongs to.
	JobType() Type

	// CorrelationID returns the stable identifier carried across a chain of
	// continuation jobs. Cleanup jobs have no chain and return uuid.Nil.
	CorrelationID() uuid.UUID
}

// IngestPayload drives a CSV upload import.
type IngestPayload struct {
	UploadID    uuid.UUID `json:"upload_id"`
	Correlation uuid.UUID `json:"correlation_id"`
}

func (p IngestPayload) JobType() Type            { return TypeIngest }
func (p IngestPayload) CorrelationID() uuid.UUID { return p.Correlation }

// VectorizePayload drives embedding generation for one dataset. A chain of
// vectorize jobs shares the dataset id and correlation id.
type VectorizePayload struct {
	DatasetID   uuid.UUID `json:"dataset_id"`
	Correlation uuid.UUID `json:"correlation_id"`
}

func (p VectorizePayload) JobType() Type            { return TypeVectorize }
func (p VectorizePayload) CorrelationID() uuid.UUID { return p.Correlation }

// EvaluateBatchPayload drives LLM evaluation of pending submissions for one
// dataset.
type EvaluateBatchPayload struct {
	DatasetID   uuid.UUID `json:"dataset_id"`
	Correlation uuid.UUID `json:"correlation_id"`
}

func (p EvaluateBatchPayload) JobType() Type            { return TypeEvaluateBatch }
func (p EvaluateBatchPayload) CorrelationID() uuid.UUID { return p.Correlation }

// CleanupPayload drives retention deletion. RetentionDays of zero means the
// configured default applies.
type CleanupPayload struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

func (p CleanupPayload) JobType() Type            { return TypeCleanup }
func (p CleanupPayload) CorrelationID() uuid.UUID { return uuid.Nil }

// EncodePayload serializes a typed payload for storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return raw, nil
}

// DecodePayload deserializes a stored payload into the concrete type for the
// given job type. A decode failure is handler-fatal: the payload blob is
// owned exclusively by the job type's handler, so a shape mismatch means the
// job can never execute correctly.
func DecodePayload(jobType Type, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)

	switch jobType {
	case TypeIngest:
		var v IngestPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeVectorize:
		var v VectorizePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeEvaluateBatch:
		var v EvaluateBatchPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeCleanup:
		var v CleanupPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, jobType)
	}

	if err != nil {
		return nil, fmt.Errorf("%w for type %q: %v", ErrInvalidPayload, jobType, err)
	}
	return p, nil
}
