package middleware

import (
	"net/http"

	"github.com/tzedaka/maaser/internal/auth"
)

// RequirePin returns middleware that enforces the security PIN gate.
// Must be applied after Auth. Users without a PIN are told to create one,
// users with a PIN must have verified it on this session.
func RequirePin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w)
				return
			}

			switch {
			case !authCtx.HasPin:
				writeError(w, http.StatusForbidden, "PIN_SETUP_REQUIRED", "Create a security PIN to continue")
			case !authCtx.PinVerified:
				writeError(w, http.StatusForbidden, "PIN_REQUIRED", "Enter your security PIN to continue")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
