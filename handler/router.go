package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hatefsystems/search-engine-core-sub000/middleware"
)

// Router builds the route table. Registration order is the resolution
// priority: static routes, then /api/*, then /l/{linkId}, then /{slug}.
// Paths are matched encoded and never cleaned, so encoded traversal reaches
// the slug guard instead of being rewritten by the router.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.SkipClean(true)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { notFound(w) })
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		SendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Static
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/cache/metrics", h.CacheMetrics).Methods(http.MethodGet)

	// API
	api := r.PathPrefix("/api/").Subrouter()
	if h.apiLimiter != nil {
		api.Use(h.apiLimiter.Limit)
	}

	internal := api.PathPrefix("/internal/").Subrouter()
	internal.Use(h.internalAuth.Protect)
	internal.HandleFunc("/analytics/cleanup", h.AnalyticsCleanup).Methods(http.MethodPost)
	internal.HandleFunc("/profiles/purge", h.PurgeProfiles).Methods(http.MethodPost)

	api.HandleFunc("/profiles", h.CreateProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles", h.ListProfiles).Methods(http.MethodGet)
	api.HandleFunc("/profiles/check-slug", h.CheckSlug).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}", h.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}", h.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{id}", h.DeleteProfile).Methods(http.MethodDelete)
	api.HandleFunc("/profiles/{id}/restore", h.RestoreProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}/change-slug", h.ChangeSlug).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}/qr", h.ProfileQR).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/links", h.CreateLink).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}/links", h.ListLinks).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/links/analytics", h.LinkAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/links/{linkId}", h.GetLink).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}/links/{linkId}", h.UpdateLink).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{id}/links/{linkId}", h.DeleteLink).Methods(http.MethodDelete)
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler

	// Public (must be last to avoid shadowing the routes above)
	r.HandleFunc("/l/{linkId}", h.RedirectLink).Methods(http.MethodGet)
	r.HandleFunc("/{slug}", h.ResolveProfile).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = middleware.Sentry(h.cfg.Sentry.DSN != "")(handler)
	handler = middleware.Recover(handler)
	handler = middleware.RequestLogger(handler)
	handler = middleware.CORS(handler)
	return handler
}
