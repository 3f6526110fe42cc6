package handler

import (
	"net/http"
	"strconv"

	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// ProfileQR handles GET /api/profiles/{id}/qr - a PNG QR code of the profile's public URL
// @Summary Profile QR code
// @Tags Profiles
// @Produce png
// @Param ownerToken header string true "Owner token"
// @Param size query int false "Pixels, 128 to 1024 (default 256)"
// @Param level query string false "low, medium, high or highest (default medium)"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/profiles/{id}/qr [get]
func (h *Handler) ProfileQR(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")

	// Parse query parameters before touching the store
	query := r.URL.Query()

	size := defaultQRSize
	if sizeStr := query.Get("size"); sizeStr != "" {
		parsedSize, err := strconv.Atoi(sizeStr)
		if err != nil || parsedSize < minQRSize || parsedSize > maxQRSize {
			h.writeError(w, r, utils.NewFieldError("size", utils.ErrInvalidValue))
			return
		}
		size = parsedSize
	}

	level := qrcode.Medium
	if levelStr := query.Get("level"); levelStr != "" {
		switch levelStr {
		case "low":
			level = qrcode.Low
		case "medium":
			level = qrcode.Medium
		case "high":
			level = qrcode.High
		case "highest":
			level = qrcode.Highest
		default:
			h.writeError(w, r, utils.NewFieldError("level", utils.ErrInvalidValue))
			return
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	p, err := h.profiles.Get(ctx, id, ownerToken(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	publicURL := h.profiles.PublicURL(p.Slug)
	png, err := qrcode.Encode(publicURL, level, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	if _, err := w.Write(png); err != nil {
		log.Error().Err(err).Msg("Failed to write QR code response")
		return
	}

	log.Debug().
		Str("profile_id", p.ID).
		Int("size", size).
		Str("level", levelStr(level)).
		Msg("QR code generated")
}

// levelStr converts qrcode.RecoveryLevel to string for logging
func levelStr(level qrcode.RecoveryLevel) string {
	switch level {
	case qrcode.Low:
		return "low"
	case qrcode.Medium:
		return "medium"
	case qrcode.High:
		return "high"
	case qrcode.Highest:
		return "highest"
	default:
		return "unknown"
	}
}
