package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/labelforge/labelqueue/internal/api/shared"
	"github.com/labelforge/labelqueue/internal/job"
	"github.com/labelforge/labelqueue/internal/platform/logger"
	"github.com/labelforge/labelqueue/internal/store"
)

const defaultListLimit = 50

// JobHandler serves the admin surface over the job queue: enqueue,
// inspection, retry and cancel. Authentication happens in middleware; by the
// time a request lands here the caller holds the shared secret.
type JobHandler struct {
	store job.Store
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(store job.Store) *JobHandler {
	return &JobHandler{store: store}
}

// EnqueueJob handles POST /admin/jobs requests
func (h *JobHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	jobType := job.Type(req.JobType)
	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	// Round-trip the payload through its typed form so malformed bodies are
	// rejected here instead of poisoning a worker invocation later.
	if _, err := job.DecodePayload(jobType, payload); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid job payload", err)
		return
	}

	j := job.New(jobType, payload, req.Priority)
	if req.MaxAttempts > 0 {
		j.MaxAttempts = req.MaxAttempts
	}

	if err := h.store.Enqueue(r.Context(), j); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to enqueue job", err)
		return
	}

	logger.FromContext(r.Context()).Info("job enqueued",
		"job_id", j.ID,
		"job_type", j.Type,
		"priority", j.Priority)

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(j))
}

// GetJob handles GET /admin/jobs/{id} requests
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	j, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "Failed to load job")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(j))
}

// ListJobs handles GET /admin/jobs requests with optional status and limit
// query parameters.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := job.Status(r.URL.Query().Get("status"))
	if status != "" && !validStatus(status) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown status filter")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	jobs, err := h.store.List(r.Context(), status, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to list jobs", err)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		responses = append(responses, jobToResponse(j))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetStats handles GET /admin/jobs/stats requests
func (h *JobHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByStatus(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to count jobs", err)
		return
	}

	stats := JobStatsResponse{Counts: make(map[string]int, len(counts))}
	for status, n := range counts {
		stats.Counts[string(status)] = n
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// RetryJob handles POST /admin/jobs/{id}/retry requests
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.store.Retry(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err, "Failed to retry job")
		return
	}

	logger.FromContext(r.Context()).Info("job retry requested", "job_id", id)

	j, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "Failed to load job")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(j))
}

// CancelJob handles POST /admin/jobs/{id}/cancel requests
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.store.Cancel(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err, "Failed to cancel job")
		return
	}

	logger.FromContext(r.Context()).Info("job cancelled", "job_id", id)

	j, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "Failed to load job")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(j))
}

// jobID parses the {id} path parameter, responding with 400 on garbage.
func (h *JobHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// respondStoreError maps store and lifecycle errors to HTTP status codes.
func (h *JobHandler) respondStoreError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case store.IsNotFoundError(err):
		shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
	case errors.Is(err, job.ErrAlreadyTerminal):
		shared.RespondWithError(w, r, http.StatusConflict, "Job already finished")
	case errors.Is(err, job.ErrRetryExhausted):
		shared.RespondWithError(w, r, http.StatusConflict, "Job retry attempts exhausted")
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, fallback, err)
	}
}

func validStatus(s job.Status) bool {
	switch s {
	case job.StatusPending, job.StatusProcessing, job.StatusCompleted,
		job.StatusFailed, job.StatusCancelled:
		return true
	}
	return false
}
