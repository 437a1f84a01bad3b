package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelqueue/internal/job"
)

func TestEnqueueJobAccepted(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := json.Marshal(job.IngestPayload{
		UploadID:    uuid.New(),
		Correlation: uuid.New(),
	})
	require.NoError(t, err)

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs", EnqueueJobRequest{
		JobType:  string(job.TypeIngest),
		Payload:  payload,
		Priority: 5,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	resp := decodeBody[JobResponse](t, rr)
	assert.Equal(t, string(job.TypeIngest), resp.JobType)
	assert.Equal(t, string(job.StatusPending), resp.Status)
	assert.Equal(t, 5, resp.Priority)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	stored, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, stored.Status)
}

func TestEnqueueJobDefaultsEmptyPayload(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	// Cleanup needs no payload fields; an absent payload must still enqueue.
	rr := doJSON(t, router, http.MethodPost, "/admin/jobs", EnqueueJobRequest{
		JobType: string(job.TypeCleanup),
	})
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestEnqueueJobRejectsUnknownType(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs", EnqueueJobRequest{
		JobType: "reticulate_splines",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEnqueueJobRejectsMalformedPayload(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs", EnqueueJobRequest{
		JobType: string(job.TypeIngest),
		Payload: json.RawMessage(`{"upload_id": 12}`),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEnqueueJobRejectsMissingType(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs", EnqueueJobRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Validation error")
}

func TestGetJobReturnsJob(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	j := job.New(job.TypeCleanup, payload, 0)
	require.NoError(t, s.Enqueue(context.Background(), j))

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs/"+j.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeBody[JobResponse](t, rr)
	assert.Equal(t, j.ID.String(), resp.ID)
	assert.Equal(t, string(job.TypeCleanup), resp.JobType)
}

func TestGetJobUnknownIDIs404(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetJobGarbageIDIs400(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListJobsFiltersByStatus(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Enqueue(context.Background(), job.New(job.TypeCleanup, payload, 0)))
	}
	claimed, err := s.Claim(context.Background(), []job.Type{job.TypeCleanup})
	require.NoError(t, err)
	require.NoError(t, s.Complete(context.Background(), claimed.ID, job.Result{}))

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs?status=pending", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]JobResponse](t, rr), 2)

	rr = doJSON(t, router, http.MethodGet, "/admin/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]JobResponse](t, rr), 1)
}

func TestListJobsRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs?status=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListJobsRejectsInvalidLimit(t *testing.T) {
	router := newTestRouter(newMockStore(), nil)

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetStatsCountsByStatus(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Enqueue(context.Background(), job.New(job.TypeCleanup, payload, 0)))
	}

	rr := doJSON(t, router, http.MethodGet, "/admin/jobs/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	stats := decodeBody[JobStatsResponse](t, rr)
	assert.Equal(t, 2, stats.Counts[string(job.StatusPending)])
}

func TestRetryJobRequeuesFailedJob(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	j := job.New(job.TypeCleanup, payload, 0)
	require.NoError(t, s.Enqueue(context.Background(), j))

	claimed, err := s.Claim(context.Background(), []job.Type{job.TypeCleanup})
	require.NoError(t, err)
	require.NoError(t, s.Fail(context.Background(), claimed.ID, "transient"))

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs/"+j.ID.String()+"/retry", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeBody[JobResponse](t, rr)
	assert.Equal(t, string(job.StatusPending), resp.Status)
	assert.Equal(t, 1, resp.Attempts, "manual retry keeps the attempt count")
}

func TestRetryJobRefusesCompletedJob(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	j := job.New(job.TypeCleanup, payload, 0)
	require.NoError(t, s.Enqueue(context.Background(), j))

	claimed, err := s.Claim(context.Background(), []job.Type{job.TypeCleanup})
	require.NoError(t, err)
	require.NoError(t, s.Complete(context.Background(), claimed.ID, job.Result{}))

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs/"+j.ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRetryJobRefusesExhaustedJob(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	j := job.New(job.TypeCleanup, payload, 0)
	j.MaxAttempts = 1
	require.NoError(t, s.Enqueue(context.Background(), j))

	claimed, err := s.Claim(context.Background(), []job.Type{job.TypeCleanup})
	require.NoError(t, err)
	require.NoError(t, s.Fail(context.Background(), claimed.ID, "boom"))

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs/"+j.ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "exhausted")
}

func TestCancelJobCancelsPendingJob(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	j := job.New(job.TypeCleanup, payload, 0)
	require.NoError(t, s.Enqueue(context.Background(), j))

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs/"+j.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeBody[JobResponse](t, rr)
	assert.Equal(t, string(job.StatusCancelled), resp.Status)
}

func TestCancelJobRefusesTerminalJob(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, nil)

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	j := job.New(job.TypeCleanup, payload, 0)
	require.NoError(t, s.Enqueue(context.Background(), j))

	claimed, err := s.Claim(context.Background(), []job.Type{job.TypeCleanup})
	require.NoError(t, err)
	require.NoError(t, s.Complete(context.Background(), claimed.ID, job.Result{}))

	rr := doJSON(t, router, http.MethodPost, "/admin/jobs/"+j.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}
