package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// retriggerTimeout bounds the fire-and-forget request. The caller never
// waits on the triggered invocation, only on connection setup.
const retriggerTimeout = 5 * time.Second

// HTTPRetrigger fires the pipeline trigger endpoint on this service's own
// base URL. The request runs in a goroutine and its outcome is only
// logged; correctness relies on the durable continuation row, not on the
// trigger arriving.
type HTTPRetrigger struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPRetrigger creates an HTTPRetrigger for the given trigger URL and
// shared bearer secret.
func NewHTTPRetrigger(url, secret string) *HTTPRetrigger {
	return &HTTPRetrigger{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: retriggerTimeout},
	}
}

// Fire implements Retrigger.
func (r *HTTPRetrigger) Fire(ctx context.Context) {
	log := logger.FromContext(ctx)

	go func() {
		req, err := http.NewRequest(http.MethodPost, r.url, nil)
		if err != nil {
			log.Warn("failed to build self-trigger request", "error", err)
			return
		}
		if r.secret != "" {
			req.Header.Set("Authorization", "Bearer "+r.secret)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			log.Warn("self-trigger request failed, chain waits for next schedule",
				"url", r.url,
				"error", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 300 {
			log.Warn("self-trigger rejected",
				"url", r.url,
				"status", resp.StatusCode)
		}
	}()
}
