// Package middleware holds cmd/api's HTTP middleware chain.
package middleware

import (
	"net/http"

	"tradearena/internal/config"
)

const apiKeyHeader = "X-API-Key"

// APIKeyMiddleware gates mutating and /internal routes behind a shared
// secret (spec §6): a missing header is a malformed request (422), a
// present-but-wrong key is an authentication failure (401). Read-only
// routes never pass through this middleware.
type APIKeyMiddleware struct {
	key string
}

func NewAPIKeyMiddleware(c config.Config) *APIKeyMiddleware {
	return &APIKeyMiddleware{key: c.AdminAPIKey}
}

func (m *APIKeyMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(apiKeyHeader)
		if got == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		if got != m.key {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
