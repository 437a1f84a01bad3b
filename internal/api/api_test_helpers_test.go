package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	apimiddleware "github.com/labelforge/labelqueue/internal/api/middleware"
	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/worker"
)

// testHandler executes a fixed function for one job type inside loop tests.
type testHandler struct {
	jobType job.Type
	fn      func(ctx context.Context, j *job.Job, p job.Payload) (job.Result, error)
}

func (h *testHandler) Type() job.Type { return h.jobType }

func (h *testHandler) Execute(
	ctx context.Context,
	j *job.Job,
	p job.Payload,
) (job.Result, error) {
	if h.fn == nil {
		return job.Result{Processed: 1}, nil
	}
	return h.fn(ctx, j, p)
}

// newTestRouter builds the real route layout over a store and named loops,
// without the auth middleware; auth has its own tests.
func newTestRouter(s job.Store, loops map[string]*worker.Loop) http.Handler {
	r := chi.NewRouter()
	r.Use(apimiddleware.TraceMiddleware)

	jobHandler := NewJobHandler(s)
	workerHandler := NewWorkerHandler(loops)

	r.Post("/internal/workers/{worker}/run", workerHandler.RunWorker)
	r.Route("/admin/jobs", func(r chi.Router) {
		r.Post("/", jobHandler.EnqueueJob)
		r.Get("/", jobHandler.ListJobs)
		r.Get("/stats", jobHandler.GetStats)
		r.Get("/{id}", jobHandler.GetJob)
		r.Post("/{id}/retry", jobHandler.RetryJob)
		r.Post("/{id}/cancel", jobHandler.CancelJob)
	})
	return r
}

func newTestLoop(s job.Store, handlers ...worker.Handler) *worker.Loop {
	l := worker.NewLoop("test", s, worker.Config{
		MaxJobs:       100,
		HardTimeLimit: time.Minute,
	}, slog.Default())
	for _, h := range handlers {
		l.Register(h)
	}
	return l
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func newMockStore() *worker.MockJobStore {
	return worker.NewMockJobStore()
}
