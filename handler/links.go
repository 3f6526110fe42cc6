package handler

import (
	"net/http"
	"strconv"

	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/hatefsystems/search-engine-core-sub000/service"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
)

// CreateLink handles POST /api/profiles/{id}/links
// @Summary Add a link block
// @Tags Links
// @Accept json
// @Produce json
// @Param ownerToken header string true "Owner token"
// @Param request body model.CreateLinkRequest true "Link"
// @Success 201 {object} model.LinkBlock
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/profiles/{id}/links [post]
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")
	token := ownerToken(r)
	if token == "" {
		h.writeError(w, r, service.ErrUnauthorized)
		return
	}

	var req model.CreateLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	l, err := h.links.Create(ctx, id, token, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusCreated, l)
}

// ListLinks handles GET /api/profiles/{id}/links?includeHidden=true
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")

	includeHidden := false
	if v := r.URL.Query().Get("includeHidden"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, utils.NewFieldError("includeHidden", utils.ErrInvalidValue))
			return
		}
		includeHidden = b
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	links, err := h.links.List(ctx, id, ownerToken(r), includeHidden)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, links)
}

// GetLink handles GET /api/profiles/{id}/links/{linkId}
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")
	linkID, _ := pathVar(r, "linkId")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	l, err := h.links.Get(ctx, id, ownerToken(r), linkID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, l)
}

// UpdateLink handles PUT /api/profiles/{id}/links/{linkId}
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")
	linkID, _ := pathVar(r, "linkId")
	token := ownerToken(r)
	if token == "" {
		h.writeError(w, r, service.ErrUnauthorized)
		return
	}

	var req model.UpdateLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	l, err := h.links.Update(ctx, id, token, linkID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, l)
}

// DeleteLink handles DELETE /api/profiles/{id}/links/{linkId}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")
	linkID, _ := pathVar(r, "linkId")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.links.Delete(ctx, id, ownerToken(r), linkID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkAnalytics handles GET /api/profiles/{id}/links/analytics?days=&linkId=
// @Summary Read click and view analytics
// @Description Counts and recent privacy-filtered events over the last days days (default: retention window)
// @Tags Analytics
// @Produce json
// @Param ownerToken header string true "Owner token"
// @Param days query int false "Window in days"
// @Param linkId query string false "Restrict to one link"
// @Success 200 {object} model.LinkAnalytics
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/profiles/{id}/links/analytics [get]
func (h *Handler) LinkAnalytics(w http.ResponseWriter, r *http.Request) {
	id, _ := pathVar(r, "id")

	days, err := queryInt(r, "days")
	if err != nil {
		h.writeError(w, r, utils.NewFieldError("days", err))
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	summary, err := h.analytics.Summary(ctx, id, ownerToken(r), r.URL.Query().Get("linkId"), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	SendJSONSuccess(w, http.StatusOK, summary)
}
