// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tzedaka/maaser/internal/cache"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository"
)

// Service errors.
var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailExists         = errors.New("email already registered")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrPinAlreadySet       = errors.New("security PIN already set")
	ErrPinNotSet           = errors.New("security PIN not set")
	ErrIncorrectPin        = errors.New("incorrect security PIN")
	ErrTooManyAttempts     = errors.New("too many attempts")
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownProvider     = errors.New("unknown integration provider")
)

// ValidationError reports an invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// SessionCache caches resolved sessions by token hash.
type SessionCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, authCtx *model.AuthContext) error
	DeleteAuthContext(ctx context.Context, cacheKey string) error
	InvalidateUserSessions(ctx context.Context, userID string) error
}

// RateLimiter throttles repeated attempts per subject.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, scope, subject string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	ResetRateLimit(ctx context.Context, scope, subject string) error
}

// ID prefixes per entity.
const (
	prefixUser        = "usr"
	prefixSession     = "ses"
	prefixTransaction = "txn"
	prefixDonation    = "don"
)

// newID returns a prefixed ULID, e.g. "txn_01HV...".
func newID(prefix string, at time.Time) string {
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// mapUserErr translates a repository lookup failure.
func mapUserErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

// cleanList trims entries, drops empties and removes duplicates in order.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
