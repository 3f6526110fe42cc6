package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/utils"
	"github.com/rs/zerolog/log"
)

// encodedTraversal are percent-encoded sequences that must never reach slug handling
var encodedTraversal = []string{"%2e", "%2f", "%5c", "%00"}

// publicSlug extracts and checks the {slug} path variable. Anything that is
// not a valid, unreserved slug is reported as absent.
func publicSlug(r *http.Request) (string, bool) {
	raw := strings.ToLower(r.URL.EscapedPath())
	for _, seq := range encodedTraversal {
		if strings.Contains(raw, seq) {
			return "", false
		}
	}

	decoded, ok := pathVar(r, "slug")
	if !ok {
		return "", false
	}
	slug, err := utils.NormalizeSlugInput(decoded)
	if err != nil || utils.ValidateSlug(slug) != nil {
		return "", false
	}
	return slug, true
}

// ResolveProfile handles GET /{slug}
// @Summary Resolve a public profile
// @Description Returns the profile at slug, or 301 to the current slug when slug is a previous one
// @Tags Public
// @Produce json
// @Param slug path string true "Profile slug"
// @Success 200 {object} model.PublicProfile
// @Success 301 "Moved to the current slug"
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /{slug} [get]
func (h *Handler) ResolveProfile(w http.ResponseWriter, r *http.Request) {
	slug, ok := publicSlug(r)
	if !ok {
		notFound(w)
		return
	}

	if !h.allow(w, r, h.publicLimiter, routePublic) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.profiles.Resolve(ctx, slug)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.RedirectSlug != "" {
		log.Debug().Str("slug", slug).Str("to", res.RedirectSlug).Msg("Redirecting previous slug")
		http.Redirect(w, r, "/"+url.PathEscape(res.RedirectSlug), http.StatusMovedPermanently)
		return
	}

	body, err := h.profiles.PublicProfile(ctx, res.Profile)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordView(r, res.Profile)
	}
	SendJSONSuccess(w, http.StatusOK, body)
}

// RedirectLink handles GET /l/{linkId}
// @Summary Follow a link block
// @Description Records a click and redirects to the link target
// @Tags Public
// @Param linkId path string true "Link id"
// @Success 302 "Redirect to the link URL"
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /l/{linkId} [get]
func (h *Handler) RedirectLink(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, h.linkLimiter, routeLinkRedirect) {
		return
	}

	linkID, ok := pathVar(r, "linkId")
	if !ok || linkID == "" {
		notFound(w)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	link, err := h.links.Resolve(ctx, linkID)
	if err != nil {
		if store.IsNotFound(err) {
			notFound(w)
			return
		}
		h.writeError(w, r, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordClick(r, link)
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.URL, http.StatusFound)
}
