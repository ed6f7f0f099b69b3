// Package middleware provides HTTP middleware for the ma'aser API.
package middleware

import (
	"errors"
	"mime"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
)

// MaxEntityIDLength is the maximum length of an id in a request path.
const MaxEntityIDLength = 64

// Validation errors.
var (
	ErrIDMissing = errors.New("id is required")
	ErrIDTooLong = errors.New("id exceeds maximum length")
	ErrIDInvalid = errors.New("id contains invalid characters")
)

// validIDPattern matches ids issued by the service (e.g. "txn_01HV...") and
// provider names. Allowed: a-z, A-Z, 0-9, hyphen, underscore.
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateEntityID checks the shape of an id taken from a URL.
func ValidateEntityID(id string) error {
	if id == "" {
		return ErrIDMissing
	}
	if len(id) > MaxEntityIDLength {
		return ErrIDTooLong
	}
	if !validIDPattern.MatchString(id) {
		return ErrIDInvalid
	}
	return nil
}

// ValidURLParam returns middleware that rejects requests whose chi URL
// parameter name is not a well-formed id.
func ValidURLParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateEntityID(chi.URLParam(r, name)); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+": "+err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON returns middleware that rejects request bodies that are not
// declared as JSON. Requests without a body pass through.
func RequireJSON() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
