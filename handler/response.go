package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hatefsystems/search-engine-core-sub000/analytics"
	"github.com/hatefsystems/search-engine-core-sub000/cache"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string   `json:"error"`
	Field       string   `json:"field,omitempty"`       // Request field that failed validation
	Suggestions []string `json:"suggestions,omitempty"` // Alternative slug suggestions (for conflicts)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// CacheMetricsResponse is the body of GET /cache/metrics
type CacheMetricsResponse struct {
	SlugCache    cache.SlugCacheStats     `json:"slug_cache"`
	ProfileCache cache.MetricsSnapshot    `json:"profile_cache"`
	Analytics    *analytics.RecorderStats `json:"analytics,omitempty"`
}

// SendJSONError sends a JSON error response
func SendJSONError(w http.ResponseWriter, statusCode int, message string) {
	sendError(w, statusCode, ErrorResponse{Error: message})
}

// SendJSONErrorWithSuggestions sends a JSON error response with alternative suggestions
func SendJSONErrorWithSuggestions(w http.ResponseWriter, statusCode int, message string, suggestions []string) {
	sendError(w, statusCode, ErrorResponse{Error: message, Suggestions: suggestions})
}

func sendError(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		log.Error().Err(encodeErr).Msg("Failed to encode error response")
	}
}

// SendJSONSuccess sends a JSON success response
func SendJSONSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode success response")
	}
}
