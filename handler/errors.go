package handler

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/hatefsystems/search-engine-core-sub000/middleware"
	"github.com/hatefsystems/search-engine-core-sub000/service"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

// isTimeout reports whether err came from an exhausted deadline or a timed out connection
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// writeError is the single place where errors become HTTP statuses.
// Unknown errors are logged, reported to Sentry and answered with an opaque 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *utils.FieldError

	switch {
	case isTimeout(err):
		log.Warn().Err(err).Str("path", r.URL.EscapedPath()).Msg("Request deadline exceeded")
		SendJSONError(w, http.StatusServiceUnavailable, "service temporarily unavailable")

	case errors.Is(err, store.ErrConnectionFailed):
		log.Error().Err(err).Msg("Store unavailable")
		SendJSONError(w, http.StatusServiceUnavailable, "service temporarily unavailable")

	case errors.Is(err, service.ErrUnauthorized):
		SendJSONError(w, http.StatusUnauthorized, "unauthorized")

	case errors.Is(err, store.ErrNotFound):
		SendJSONError(w, http.StatusNotFound, "not found")

	case errors.Is(err, store.ErrSlugConflict), errors.Is(err, utils.ErrSlugExhausted):
		SendJSONError(w, http.StatusConflict, "slug is already taken")

	case errors.Is(err, service.ErrSlugUnchanged):
		sendError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: "slug"})

	case errors.As(err, &fieldErr):
		sendError(w, http.StatusBadRequest, ErrorResponse{Error: fieldErr.Err.Error(), Field: fieldErr.Field})

	case errors.Is(err, errBadBody),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, utils.ErrSlugInvalid),
		errors.Is(err, utils.ErrSlugReserved),
		utils.IsURLError(err):
		SendJSONError(w, http.StatusBadRequest, err.Error())

	default:
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.EscapedPath()).
			Msg("Internal error")
		middleware.CaptureError(r, err)
		SendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeConflict answers a slug conflict with free alternatives
func (h *Handler) writeConflict(w http.ResponseWriter, r *http.Request, slug string) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	SendJSONErrorWithSuggestions(w, http.StatusConflict, "slug is already taken", h.profiles.Suggest(ctx, slug))
}

// notFound is the single 404 body used by public routes, so reserved,
// malformed, deleted and unknown slugs look the same
func notFound(w http.ResponseWriter) {
	SendJSONError(w, http.StatusNotFound, "not found")
}
