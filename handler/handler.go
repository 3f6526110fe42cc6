// Package handler serves the resolver's HTTP surface: public slug and link
// resolution, the owner API under /api/profiles and the internal
// maintenance routes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hatefsystems/search-engine-core-sub000/analytics"
	"github.com/hatefsystems/search-engine-core-sub000/config"
	"github.com/hatefsystems/search-engine-core-sub000/middleware"
	"github.com/hatefsystems/search-engine-core-sub000/service"
)

const (
	// OwnerTokenHeader carries the per-profile secret on owner routes
	OwnerTokenHeader = "ownerToken"

	// Route names for the sliding-window limiter keys
	routePublic       = "public"
	routeLinkRedirect = "link-redirect"

	maxBodyBytes           = 1 << 20
	defaultRequestDeadline = 2 * time.Second
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the long-lived services a Handler serves requests with.
// They are created and torn down by main.
type Deps struct {
	Config        config.Config
	Profiles      *service.Profiles
	Links         *service.Links
	Analytics     *service.Analytics
	Recorder      *analytics.Recorder
	Store         Pinger
	PublicLimiter *middleware.SlidingWindowLimiter // GET /{slug}
	LinkLimiter   *middleware.SlidingWindowLimiter // GET /l/{linkId}
	APILimiter    *middleware.RateLimiter          // /api/*, optional
	InternalAuth  *middleware.InternalAuth
}

// Handler holds the services behind every route
type Handler struct {
	cfg           config.Config
	profiles      *service.Profiles
	links         *service.Links
	analytics     *service.Analytics
	recorder      *analytics.Recorder
	store         Pinger
	publicLimiter *middleware.SlidingWindowLimiter
	linkLimiter   *middleware.SlidingWindowLimiter
	apiLimiter    *middleware.RateLimiter
	internalAuth  *middleware.InternalAuth
	deadline      time.Duration
	trustProxy    bool
}

// New creates a handler
func New(d Deps) *Handler {
	deadline := d.Config.RequestDeadline()
	if deadline <= 0 {
		deadline = defaultRequestDeadline
	}
	internalAuth := d.InternalAuth
	if internalAuth == nil {
		internalAuth = middleware.NewInternalAuth(d.Config.Security.InternalAPIKey)
	}
	return &Handler{
		cfg:           d.Config,
		profiles:      d.Profiles,
		links:         d.Links,
		analytics:     d.Analytics,
		recorder:      d.Recorder,
		store:         d.Store,
		publicLimiter: d.PublicLimiter,
		linkLimiter:   d.LinkLimiter,
		apiLimiter:    d.APILimiter,
		internalAuth:  internalAuth,
		deadline:      deadline,
		trustProxy:    d.Config.WebServer.TrustProxyHeaders,
	}
}

// requestContext bounds every store call of a request
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.deadline)
}

// allow applies a sliding-window limiter; a nil limiter admits everything
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, l *middleware.SlidingWindowLimiter, route string) bool {
	if l == nil {
		return true
	}
	allowed, retryAfter := l.Check(middleware.RateKey(middleware.ClientAddr(r, h.trustProxy), route))
	if !allowed {
		middleware.WriteTooManyRequests(w, retryAfter)
	}
	return allowed
}

// ownerToken reads the owner token header, falling back to a Bearer token
func ownerToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(OwnerTokenHeader)); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// pathVar returns a decoded path variable. The router keeps paths encoded.
func pathVar(r *http.Request, name string) (string, bool) {
	raw := mux.Vars(r)[name]
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return v, true
}

var errBadBody = errors.New("invalid request body")

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadBody
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errBadBody
	}
	return nil
}
