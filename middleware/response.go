package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const maxRetryAfter = time.Hour

// writeJSONError writes the same {"error": ...} shape the handlers use
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// retryAfterSeconds renders a Retry-After value, rounded up to whole seconds and at least 1
func retryAfterSeconds(d time.Duration) string {
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// WriteTooManyRequests answers a throttled request with 429 and Retry-After
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}
