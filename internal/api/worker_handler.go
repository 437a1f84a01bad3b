package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/labelforge/labelqueue/internal/api/shared"
	"github.com/labelforge/labelqueue/internal/platform/logger"
	"github.com/labelforge/labelqueue/internal/worker"
)

// WorkerHandler exposes the trigger surface the external scheduler calls.
// Each named worker is a bounded loop over its registered job types; a
// request runs one invocation synchronously and reports what it got through.
type WorkerHandler struct {
	loops map[string]*worker.Loop
}

// NewWorkerHandler creates a WorkerHandler over the given loops, keyed by
// the worker name used in the URL.
func NewWorkerHandler(loops map[string]*worker.Loop) *WorkerHandler {
	return &WorkerHandler{loops: loops}
}

// RunWorker handles POST /internal/workers/{worker}/run requests
func (h *WorkerHandler) RunWorker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "worker")
	loop, ok := h.loops[name]
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Unknown worker")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info("worker invocation triggered", "worker", name)

	report, err := loop.Run(r.Context())
	if err != nil {
		// Jobs completed before the error are already committed; report the
		// failure so the scheduler records an unhealthy invocation.
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Worker run failed", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RunReportResponse{
		Worker:    name,
		Processed: report.Processed,
		Failed:    report.Failed,
		ElapsedMS: report.Elapsed.Milliseconds(),
	})
}
