package handler

import (
	"net/http"
)

// AnalyticsCleanup handles POST /api/internal/analytics/cleanup.
// Called by an external scheduler; the route is gated by INTERNAL_API_KEY.
// @Summary Analytics retention sweep
// @Tags Internal
// @Produce json
// @Param INTERNAL_API_KEY header string true "Internal key"
// @Success 200 {object} model.PurgeResult
// @Failure 401 {object} ErrorResponse
// @Router /api/internal/analytics/cleanup [post]
func (h *Handler) AnalyticsCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.analytics.Cleanup(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, res)
}

// PurgeProfiles handles POST /api/internal/profiles/purge. Profiles
// soft-deleted for longer than the purge window are removed for good and
// their slugs become available again.
func (h *Handler) PurgeProfiles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.profiles.PurgeDeleted(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, res)
}
