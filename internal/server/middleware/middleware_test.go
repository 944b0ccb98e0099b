package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAuth(t *testing.T) {
	h := Auth("secret", "/api/health")(okHandler)
	tests := []struct {
		name   string
		path   string
		header [2]string
		want   int
	}{
		{"missing", "/api/trades", [2]string{}, http.StatusUnauthorized},
		{"wrong", "/api/trades", [2]string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"bearer", "/api/trades", [2]string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"header", "/api/trades", [2]string{"X-API-Key", "secret"}, http.StatusOK},
		{"public", "/api/health", [2]string{}, http.StatusOK},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header[0] != "" {
			r.Header.Set(tt.header[0], tt.header[1])
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != tt.want {
			t.Fatalf("%s: status=%d want=%d", tt.name, w.Code, tt.want)
		}
	}
}

func TestAuthDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	Auth("")(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/settle", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example"})(okHandler)
	r := httptest.NewRequest(http.MethodOptions, "/api/trades", nil)
	r.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}

	r.Header.Set("Origin", "https://other.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("foreign origin allowed")
	}
}

func TestLoggingSetsRequestID(t *testing.T) {
	var seen string
	h := Logging(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if seen != "req-1" || w.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("seen=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}
}

type countingLimiter struct {
	calls int
	allow bool
	err   error
}

func (c *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	c.calls++
	return c.allow, c.err
}

func TestRateLimitWritesOnly(t *testing.T) {
	lim := &countingLimiter{allow: false}
	h := RateLimit(lim, 5, time.Minute, quietLogger())(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if w.Code != http.StatusOK || lim.calls != 0 {
		t.Fatalf("GET limited: status=%d calls=%d", w.Code, lim.calls)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/trades", nil))
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "60" {
		t.Fatalf("status=%d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	lim := &countingLimiter{err: errors.New("redis down")}
	w := httptest.NewRecorder()
	RateLimit(lim, 5, time.Minute, quietLogger())(okHandler).
		ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/trades/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("got=%s", got)
	}
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := clientIP(r); got != "1.2.3.4" {
		t.Fatalf("got=%s", got)
	}
}
