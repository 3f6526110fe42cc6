package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"RemoteAddr with port", "203.0.113.7:4242", nil, false, "203.0.113.7"},
		{"IPv6 RemoteAddr", "[2001:db8::1]:4242", nil, false, "2001:db8::1"},
		{"Forwarded header ignored without trust", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1"}, false, "10.0.0.1"},
		{"First forwarded address", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, true, "198.51.100.1"},
		{"Real IP fallback", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.9"}, true, "198.51.100.9"},
		{"No port", "unix-socket", nil, false, "unix-socket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientAddr(req, tt.trustProxy); got != tt.want {
				t.Errorf("ClientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiterTokenBucket(t *testing.T) {
	rl := NewRateLimiter(1, 2, false)
	h := rl.Limit(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	req.RemoteAddr = "192.0.2.2:1000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("second client got %d", w.Code)
	}
}

func TestInternalAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		headers    map[string]string
		wantStatus int
	}{
		{"Valid key header", "k3y", map[string]string{InternalKeyHeader: "k3y"}, http.StatusOK},
		{"Valid alternative header", "k3y", map[string]string{"X-Internal-Api-Key": "k3y"}, http.StatusOK},
		{"Valid bearer", "k3y", map[string]string{"Authorization": "Bearer k3y"}, http.StatusOK},
		{"Missing key", "k3y", nil, http.StatusUnauthorized},
		{"Wrong key", "k3y", map[string]string{InternalKeyHeader: "nope"}, http.StatusUnauthorized},
		{"Not configured", "", map[string]string{InternalKeyHeader: ""}, http.StatusUnauthorized},
		{"Not configured with key", "", map[string]string{InternalKeyHeader: "anything"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewInternalAuth(tt.configured).Protect(okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/internal/analytics/cleanup", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/profiles/abc", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/john-doe", nil))
	if w.Code != http.StatusTeapot || w.Body.String() != "short and stout" {
		t.Errorf("response altered: %d %q", w.Code, w.Body.String())
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if w.Body.String() != "{\"error\":\"internal server error\"}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "1"},
		{300 * time.Millisecond, "1"},
		{1500 * time.Millisecond, "2"},
		{59 * time.Second, "59"},
		{48 * time.Hour, "3600"},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
