package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// HealthCheck handles GET /health
// @Summary Health check
// @Description Returns service health status and storage connectivity
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	driver := h.cfg.Storage.Driver
	if driver == "" {
		driver = "redis"
	}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			log.Error().Err(err).Str("storage", driver).Msg("Storage health check failed")
			SendJSONSuccess(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Storage: driver})
			return
		}
	}

	SendJSONSuccess(w, http.StatusOK, HealthResponse{Status: "healthy", Storage: driver})
}

// CacheMetrics handles GET /cache/metrics
// @Summary Cache performance metrics
// @Description Slug cache and profile cache counters, plus the analytics recorder queue
// @Tags System
// @Produce json
// @Success 200 {object} CacheMetricsResponse "Cache metrics"
// @Router /cache/metrics [get]
func (h *Handler) CacheMetrics(w http.ResponseWriter, r *http.Request) {
	slugStats, profileStats := h.profiles.CacheStats()
	res := CacheMetricsResponse{SlugCache: slugStats, ProfileCache: profileStats}
	if h.recorder != nil {
		stats := h.recorder.Stats()
		res.Analytics = &stats
	}
	SendJSONSuccess(w, http.StatusOK, res)
}
