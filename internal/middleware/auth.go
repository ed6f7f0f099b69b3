package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/service"
)

// defaultMinFailureDuration is the minimum time spent on a rejected request
// so that failure reasons cannot be told apart by timing.
const defaultMinFailureDuration = 200 * time.Millisecond

// Authenticator resolves a bearer token to its session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	// MinFailureDuration pads rejected requests. Zero uses the default,
	// a negative value disables padding.
	MinFailureDuration time.Duration
}

// Auth returns a middleware that authenticates requests by session token.
// It reads "Authorization: Bearer <token>", resolves the session and injects
// the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	minFailure := cfg.MinFailureDuration
	if minFailure == 0 {
		minFailure = defaultMinFailureDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			reject := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if elapsed := time.Since(startTime); elapsed < minFailure {
					time.Sleep(minFailure - elapsed)
				}
				writeAuthError(w)
			}

			token := extractBearerToken(r)
			if token == "" {
				reject("missing_token")
				return
			}
			if _, err := auth.ParseSessionToken(token); err != nil {
				reject("invalid_format")
				return
			}

			authCtx, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrUnauthenticated) {
					cfg.Logger.Error("session lookup failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					reject("lookup_error")
					return
				}
				reject("invalid_session")
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("session_id", authCtx.SessionID),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("pin_verified", authCtx.PinVerified),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing session")
}
