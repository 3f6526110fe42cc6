package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/service"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

// CreateProfile handles POST /api/profiles
// @Summary Create a profile
// @Description Creates a profile. The slug is derived from displayName unless given. The owner token is returned once.
// @Tags Profiles
// @Accept json
// @Produce json
// @Param request body model.CreateProfileRequest true "Profile"
// @Success 201 {object} model.CreateProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Slug taken (includes suggestions)"
// @Router /api/profiles [post]
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.CreateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.profiles.Create(ctx, req)
	if err != nil {
		if errors.Is(err, store.ErrSlugConflict) {
			slug := utils.GenerateSlug(req.DisplayName)
			if req.Slug != "" {
				if normalized, nerr := utils.NormalizeSlugInput(req.Slug); nerr == nil {
					slug = normalized
				}
			}
			h.writeConflict(w, r, slug)
			return
		}
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/profiles/"+res.Profile.ID)
	w.Header().Set("Cache-Control", "no-store")
	SendJSONSuccess(w, http.StatusCreated, res)
}

// ListProfiles handles GET /api/profiles?offset=&limit=
// @Summary List live profiles
// @Tags Profiles
// @Produce json
// @Success 200 {object} model.ProfileList
// @Failure 400 {object} ErrorResponse
// @Router /api/profiles [get]
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeError(w, r, utils.NewFieldError("offset", err))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, utils.NewFieldError("limit", err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	page, err := h.profiles.List(ctx, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, page)
}

// CheckSlug handles GET /api/profiles/check-slug?slug=
// @Summary Check slug availability
// @Tags Profiles
// @Produce json
// @Param slug query string true "Slug to check"
// @Success 200 {object} model.SlugAvailability
// @Failure 400 {object} ErrorResponse
// @Router /api/profiles/check-slug [get]
func (h *Handler) CheckSlug(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		h.writeError(w, r, utils.NewFieldError("slug", utils.ErrFieldRequired))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.profiles.CheckSlug(ctx, slug)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, res)
}

// GetProfile handles GET /api/profiles/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	p, err := h.profiles.Get(ctx, id, ownerToken(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/profiles/{id}
// @Summary Update a profile
// @Description Updates display name and body. A different slug moves the profile and keeps the old slug redirecting.
// @Tags Profiles
// @Accept json
// @Produce json
// @Param ownerToken header string true "Owner token"
// @Success 200 {object} model.Profile
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/profiles/{id} [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")
	token := ownerToken(r)
	if token == "" {
		h.writeError(w, r, service.ErrUnauthorized)
		return
	}

	var req model.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	p, err := h.profiles.Update(ctx, id, token, req)
	if err != nil {
		if errors.Is(err, store.ErrSlugConflict) && req.Slug != nil {
			if slug, nerr := utils.NormalizeSlugInput(*req.Slug); nerr == nil {
				h.writeConflict(w, r, slug)
				return
			}
		}
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, p)
}

// DeleteProfile handles DELETE /api/profiles/{id}
// @Summary Soft-delete a profile
// @Description The profile and its links stop resolving. Its slugs stay claimed until purge.
// @Tags Profiles
// @Param ownerToken header string true "Owner token"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/profiles/{id} [delete]
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.profiles.Delete(ctx, id, ownerToken(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreProfile handles POST /api/profiles/{id}/restore
func (h *Handler) RestoreProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	p, err := h.profiles.Restore(ctx, id, ownerToken(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, p)
}

// ChangeSlug handles POST /api/profiles/{id}/change-slug
// @Summary Change a profile's slug
// @Tags Profiles
// @Accept json
// @Produce json
// @Param ownerToken header string true "Owner token"
// @Param request body model.ChangeSlugRequest true "New slug"
// @Success 200 {object} model.Profile
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/profiles/{id}/change-slug [post]
func (h *Handler) ChangeSlug(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")
	token := ownerToken(r)
	if token == "" {
		h.writeError(w, r, service.ErrUnauthorized)
		return
	}

	var req model.ChangeSlugRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	p, err := h.profiles.ChangeSlug(ctx, id, token, req.Slug)
	if err != nil {
		if errors.Is(err, store.ErrSlugConflict) {
			if slug, nerr := utils.NormalizeSlugInput(req.Slug); nerr == nil {
				h.writeConflict(w, r, slug)
				return
			}
		}
		h.writeError(w, r, err)
		return
	}

	log.Debug().Str("profile_id", p.ID).Str("slug", p.Slug).Msg("Slug change served")
	SendJSONSuccess(w, http.StatusOK, p)
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, utils.ErrInvalidValue
	}
	return n, nil
}
