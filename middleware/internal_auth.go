package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// InternalKeyHeader carries the process-wide maintenance secret
	InternalKeyHeader = "INTERNAL_API_KEY"
	// internalKeyHeaderAlt is accepted from proxies that drop headers containing underscores
	internalKeyHeaderAlt = "X-Internal-Api-Key"
)

// InternalAuth protects /api/internal/* with a shared key.
// The key value is never logged, neither the configured one nor the presented one.
type InternalAuth struct {
	apiKey []byte
}

// NewInternalAuth creates the internal-route gate
func NewInternalAuth(apiKey string) *InternalAuth {
	if apiKey == "" {
		log.Warn().Msg("INTERNAL_API_KEY not configured - internal routes will answer 401")
	}
	return &InternalAuth{apiKey: []byte(apiKey)}
}

// presentedKey reads the key from the dedicated headers, then from a Bearer token
func presentedKey(r *http.Request) string {
	if key := r.Header.Get(InternalKeyHeader); key != "" {
		return key
	}
	if key := r.Header.Get(internalKeyHeaderAlt); key != "" {
		return key
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Protect wraps an HTTP handler with internal key authentication
func (a *InternalAuth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.apiKey) == 0 {
			log.Warn().Str("path", r.URL.Path).Msg("Internal route called but no key configured")
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		provided := presentedKey(r)
		if provided == "" {
			log.Warn().Str("path", r.URL.Path).Msg("Internal route called without key")
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), a.apiKey) != 1 {
			log.Warn().Str("path", r.URL.Path).Msg("Internal route called with invalid key")
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		log.Debug().Str("path", r.URL.Path).Msg("Internal caller authenticated")
		next.ServeHTTP(w, r)
	})
}
