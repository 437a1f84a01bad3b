package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labelforge/labelqueue/internal/api/shared"
	"github.com/labelforge/labelqueue/internal/platform/logger"
)

// SecretAuth guards the trigger and admin surfaces with a shared bearer
// secret. Every caller is the scheduler, the service itself, or an operator;
// there are no per-user identities.
type SecretAuth struct {
	secret string
}

// NewSecretAuth creates a SecretAuth middleware for the given shared secret.
// An empty secret rejects every request; config validation keeps that state
// out of production, and development setups must still set one to use the
// protected surfaces.
func NewSecretAuth(secret string) *SecretAuth {
	return &SecretAuth{secret: secret}
}

// Middleware returns the http middleware enforcing the shared secret.
func (a *SecretAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		if a.secret == "" {
			// Fail closed rather than running an open admin surface.
			log.Warn("rejecting request, no trigger secret configured",
				"path", r.URL.Path)
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.secret)) != 1 {
			log.Warn("invalid trigger secret",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
