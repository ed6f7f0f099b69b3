package model

import "time"

// Session is a logged-in device. Only the token hash is stored.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenHash   string     `json:"-"` // Never serialize
	TokenPrefix string     `json:"token_prefix"`
	PinVerified bool       `json:"pin_verified"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsActive returns true if the session can still authenticate requests.
func (s *Session) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	SessionID   string
	TokenPrefix string
	UserID      string
	PinVerified bool
	HasPin      bool
	// CacheKey is the fast lookup hash of the bearer token.
	CacheKey  string
	ExpiresAt time.Time
}

// PinSatisfied reports whether the PIN gate lets this session through.
// Users without a PIN are sent to create one, so they are not satisfied either.
func (a *AuthContext) PinSatisfied() bool {
	return a.HasPin && a.PinVerified
}

// SessionResponse is returned from login, register and session lookups.
type SessionResponse struct {
	Token       string       `json:"token,omitempty"` // Plaintext - returned once at login
	ExpiresAt   time.Time    `json:"expires_at"`
	PinVerified bool         `json:"pin_verified"`
	User        UserResponse `json:"user"`
}
