package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-client token buckets for the management API.
// Public resolution routes use SlidingWindowLimiter instead.
type RateLimiter struct {
	limiters   map[string]*bucket
	mu         sync.Mutex
	r          rate.Limit
	b          int
	trustProxy bool
	idleAfter  time.Duration
	lastSweep  time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerSecond float64, burst int, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*bucket),
		r:          rate.Limit(requestsPerSecond),
		b:          burst,
		trustProxy: trustProxy,
		idleAfter:  10 * time.Minute,
		lastSweep:  time.Now(),
	}
}

// getLimiter returns the token bucket for a client, dropping idle buckets on the way
func (rl *RateLimiter) getLimiter(addr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.idleAfter {
		for k, b := range rl.limiters {
			if now.Sub(b.lastSeen) > rl.idleAfter {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	b, exists := rl.limiters[addr]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.limiters[addr] = b
	}
	b.lastSeen = now

	return b.limiter
}

// Limit is a middleware that rate limits requests
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := rl.getLimiter(ClientAddr(r, rl.trustProxy))

		// Check if request is allowed
		reservation := limiter.Reserve()
		if !reservation.OK() {
			WriteTooManyRequests(w, maxRetryAfter)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			WriteTooManyRequests(w, delay)
			return
		}

		next.ServeHTTP(w, r)
	})
}
