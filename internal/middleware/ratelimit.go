package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/cache"
)

// RateLimiter checks token buckets keyed by scope and subject.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, scope, subject string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	Enabled bool
	// API requests per minute per session.
	APIPerMinute int
	// Login and registration attempts per minute per client IP.
	AuthPerMinute int
}

// RateLimitAPI returns middleware that rate limits API requests per session.
// Must be applied after Auth middleware.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.APIPerMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				// No auth context - should not happen if Auth middleware ran first
				next.ServeHTTP(w, r)
				return
			}

			limit(cfg, w, r, next, cache.ScopeAPI, authCtx.SessionID, cfg.APIPerMinute)
		})
	}
}

// RateLimitAuth returns middleware that rate limits login and registration
// per client IP.
func RateLimitAuth(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.AuthPerMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			limit(cfg, w, r, next, cache.ScopeLogin, getClientIP(r), cfg.AuthPerMinute)
		})
	}
}

func limit(cfg RateLimitConfig, w http.ResponseWriter, r *http.Request, next http.Handler, scope, subject string, perMinute int) {
	result, err := cfg.Limiter.CheckRateLimit(r.Context(), scope, subject, perMinute, perMinute)
	if err != nil {
		cfg.Logger.Error("rate limit check failed",
			slog.String("error", err.Error()),
			slog.String("scope", scope),
		)
		// Fail open - allow request
		next.ServeHTTP(w, r)
		return
	}

	setRateLimitHeaders(w, perMinute, result.Remaining, result.ResetAt)

	if !result.Allowed {
		cfg.Logger.Warn("rate limit exceeded",
			slog.String("scope", scope),
			slog.String("ip", getClientIP(r)),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
			slog.String("request_id", GetRequestID(r.Context())),
		)

		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(result.RetryAfter)))
		writeRateLimitError(w, result.RetryAfter)
		return
	}

	next.ServeHTTP(w, r)
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retrySeconds(retryAfter)))
}

func retrySeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain a chain; the first entry is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
