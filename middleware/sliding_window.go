package middleware

import (
	"net/http"
	"sync"
	"time"
)

// windowLog holds the timestamps of the last max admitted requests for one key.
// It is a fixed-size ring, so memory per key is constant.
type windowLog struct {
	stamps []time.Time
	head   int // index of the oldest stamp once the ring is full
	count  int
	last   time.Time
}

// SlidingWindowLimiter admits at most max requests per key in any rolling window.
// Check never blocks; idle keys are dropped by a janitor goroutine.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	keys   map[string]*windowLog
	max    int
	window time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewSlidingWindowLimiter creates a limiter and starts its idle-key janitor.
// Call Stop to end the janitor.
func NewSlidingWindowLimiter(max int, window time.Duration) *SlidingWindowLimiter {
	l := newSlidingWindowLimiter(max, window, time.Now)
	go l.janitor()
	return l
}

func newSlidingWindowLimiter(max int, window time.Duration, now func() time.Time) *SlidingWindowLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindowLimiter{
		keys:   make(map[string]*windowLog),
		max:    max,
		window: window,
		now:    now,
		stop:   make(chan struct{}),
	}
}

// Check records a request for key if it is admitted.
// When throttled, retryAfter is the time until the oldest admitted request leaves the window.
func (l *SlidingWindowLimiter) Check(key string) (allowed bool, retryAfter time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	wl, ok := l.keys[key]
	if !ok {
		// Idle -> Counting
		wl = &windowLog{stamps: make([]time.Time, l.max)}
		l.keys[key] = wl
	}

	if wl.count == l.max {
		oldest := wl.stamps[wl.head]
		if elapsed := now.Sub(oldest); elapsed < l.window {
			// Throttled
			return false, l.window - elapsed
		}
		// The oldest stamp left the window; its slot is reused below
		wl.stamps[wl.head] = now
		wl.head = (wl.head + 1) % l.max
		wl.last = now
		return true, 0
	}

	wl.stamps[(wl.head+wl.count)%l.max] = now
	wl.count++
	wl.last = now
	return true, 0
}

// Len returns the number of tracked keys
func (l *SlidingWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Max returns the per-window request budget
func (l *SlidingWindowLimiter) Max() int {
	return l.max
}

// Window returns the rolling window length
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// evictIdle drops keys whose last admitted request is a full window old (Throttled/Counting -> Idle)
func (l *SlidingWindowLimiter) evictIdle() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, wl := range l.keys {
		if now.Sub(wl.last) >= l.window {
			delete(l.keys, key)
			n++
		}
	}
	return n
}

func (l *SlidingWindowLimiter) janitor() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the janitor goroutine. It is safe to call more than once.
func (l *SlidingWindowLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Limit returns a middleware that admits requests per "clientAddr|route" key
func (l *SlidingWindowLimiter) Limit(route string, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := l.Check(RateKey(ClientAddr(r, trustProxy), route))
			if !allowed {
				WriteTooManyRequests(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateKey builds the limiter key for a client on a route
func RateKey(clientAddr, route string) string {
	return clientAddr + "|" + route
}
