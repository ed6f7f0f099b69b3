package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/model"
)

// countingLimiter allows the first n calls per scope/subject.
type countingLimiter struct {
	n     int
	seen  map[string]int
	err   error
	calls []string
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, scope, subject string, _, _ int) (*cache.RateLimitResult, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	key := scope + ":" + subject
	l.calls = append(l.calls, key)
	l.seen[key]++
	allowed := l.seen[key] <= l.n
	res := &cache.RateLimitResult{
		Allowed:   allowed,
		Remaining: int64(max(l.n-l.seen[key], 0)),
		ResetAt:   time.Unix(1700000000, 0),
	}
	if !allowed {
		res.RetryAfter = 6 * time.Second
	}
	return res, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAPI_PerSession(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{n: 2}
	h := RateLimitAPI(RateLimitConfig{
		Logger: discardLogger(), Limiter: limiter, Enabled: true, APIPerMinute: 2,
	})(okHandler())

	do := func(sessionID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
		req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{SessionID: sessionID}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("ses_a"); rec.Code != http.StatusOK || rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("first request: status %d, limit header %q", rec.Code, rec.Header().Get("X-RateLimit-Limit"))
	}
	do("ses_a")

	rec := do("ses_a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "6" {
		t.Errorf("Retry-After = %q, want 6", rec.Header().Get("Retry-After"))
	}
	if body := decodeError(t, rec); body.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", body.Code)
	}

	if rec := do("ses_b"); rec.Code != http.StatusOK {
		t.Errorf("other session should have its own bucket, got %d", rec.Code)
	}
	if limiter.calls[0] != cache.ScopeAPI+":ses_a" {
		t.Errorf("bucket key = %q", limiter.calls[0])
	}
}

func TestRateLimitAuth_PerIP(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{n: 1}
	h := RateLimitAuth(RateLimitConfig{
		Logger: discardLogger(), Limiter: limiter, Enabled: true, AuthPerMinute: 1,
	})(okHandler())

	do := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("10.0.0.1:5000", ""); code != http.StatusOK {
		t.Fatalf("first attempt = %d", code)
	}
	if code := do("10.0.0.1:6000", ""); code != http.StatusTooManyRequests {
		t.Errorf("same IP, new port = %d, want 429", code)
	}
	if code := do("10.0.0.1:7000", "203.0.113.9, 10.0.0.1"); code != http.StatusOK {
		t.Errorf("forwarded client should have its own bucket, got %d", code)
	}
	if limiter.calls[2] != cache.ScopeLogin+":203.0.113.9" {
		t.Errorf("bucket key = %q", limiter.calls[2])
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{err: errors.New("redis down")}
	h := RateLimitAuth(RateLimitConfig{
		Logger: discardLogger(), Limiter: limiter, Enabled: true, AuthPerMinute: 1,
	})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when the limiter is unavailable", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{n: 0}
	h := RateLimitAuth(RateLimitConfig{Logger: discardLogger(), Limiter: limiter, Enabled: false, AuthPerMinute: 1})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK || len(limiter.calls) != 0 {
		t.Errorf("disabled limiter should not be consulted: status %d, calls %d", rec.Code, len(limiter.calls))
	}
}
