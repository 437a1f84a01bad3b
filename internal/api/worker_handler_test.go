package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/worker"
)

func TestRunWorkerReportsProcessedJobs(t *testing.T) {
	s := newMockStore()

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Enqueue(context.Background(), job.New(job.TypeCleanup, payload, 0)))
	}

	loop := newTestLoop(s, &testHandler{jobType: job.TypeCleanup})
	router := newTestRouter(s, map[string]*worker.Loop{"maintenance": loop})

	rr := doJSON(t, router, http.MethodPost, "/internal/workers/maintenance/run", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	report := decodeBody[RunReportResponse](t, rr)
	assert.Equal(t, "maintenance", report.Worker)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 0, report.Failed)
}

func TestRunWorkerUnknownNameIs404(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, map[string]*worker.Loop{
		"maintenance": newTestLoop(s, &testHandler{jobType: job.TypeCleanup}),
	})

	rr := doJSON(t, router, http.MethodPost, "/internal/workers/shredder/run", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunWorkerIdleQueueReportsZero(t *testing.T) {
	s := newMockStore()
	router := newTestRouter(s, map[string]*worker.Loop{
		"pipeline": newTestLoop(s, &testHandler{jobType: job.TypeIngest}),
	})

	rr := doJSON(t, router, http.MethodPost, "/internal/workers/pipeline/run", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decodeBody[RunReportResponse](t, rr).Processed)
}

func TestRunWorkerCountsFailedJobs(t *testing.T) {
	s := newMockStore()

	payload, err := job.EncodePayload(job.CleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(context.Background(), job.New(job.TypeCleanup, payload, 0)))

	boom := &testHandler{
		jobType: job.TypeCleanup,
		fn: func(context.Context, *job.Job, job.Payload) (job.Result, error) {
			return job.Result{}, errors.New("handler exploded")
		},
	}
	router := newTestRouter(s, map[string]*worker.Loop{
		"maintenance": newTestLoop(s, boom),
	})

	rr := doJSON(t, router, http.MethodPost, "/internal/workers/maintenance/run", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	report := decodeBody[RunReportResponse](t, rr)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Failed)
}

func TestRunWorkerStoreOutageIs500(t *testing.T) {
	s := newMockStore()
	s.ClaimFn = func(context.Context, []job.Type) (*job.Job, error) {
		return nil, errors.New("connection refused")
	}

	router := newTestRouter(s, map[string]*worker.Loop{
		"maintenance": newTestLoop(s, &testHandler{jobType: job.TypeCleanup}),
	})

	rr := doJSON(t, router, http.MethodPost, "/internal/workers/maintenance/run", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Worker run failed")
}
