package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/labelforge/labelqueue/internal/api"
	apimiddleware "github.com/labelforge/labelqueue/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	workerHandler := api.NewWorkerHandler(app.loops)
	jobHandler := api.NewJobHandler(app.jobStore)
	auth := apimiddleware.NewSecretAuth(app.config.Trigger.Secret)

	// Trigger surface, called by the external scheduler and by the
	// fire-and-forget self-trigger.
	r.Route("/internal/workers", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/{worker}/run", workerHandler.RunWorker)
	})

	// Admin surface over the job queue.
	r.Route("/admin/jobs", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/", jobHandler.EnqueueJob)
		r.Get("/", jobHandler.ListJobs)
		r.Get("/stats", jobHandler.GetStats)
		r.Get("/{id}", jobHandler.GetJob)
		r.Post("/{id}/retry", jobHandler.RetryJob)
		r.Post("/{id}/cancel", jobHandler.CancelJob)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
