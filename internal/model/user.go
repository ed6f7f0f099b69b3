// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Default settings applied to every new user.
const (
	DefaultMaaserPercentage = 10
	DefaultColorScheme      = "purple"
)

// ValidColorSchemes lists the dashboard themes a user can pick.
var ValidColorSchemes = []string{"purple", "green", "orange", "blue", "pink", "red"}

// User represents an account holder and their giving settings.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"` // Never serialize
	PinHash          string     `json:"-"` // Never serialize
	MaaserPercentage int        `json:"maaser_percentage"`
	ColorScheme      string     `json:"color_scheme"`
	ConnectedBanks   []string   `json:"connected_banks"`
	SeededAt         *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasSecurityPin returns true once the user has created a PIN.
func (u *User) HasSecurityPin() bool {
	return u.PinHash != ""
}

// IsConnected reports whether the named provider is linked.
func (u *User) IsConnected(provider string) bool {
	return slices.Contains(u.ConnectedBanks, provider)
}

// IsValidColorScheme checks the scheme against the known themes.
func IsValidColorScheme(scheme string) bool {
	return slices.Contains(ValidColorSchemes, scheme)
}

// IsValidPercentage checks that a ma'aser percentage is in (0, 100].
func IsValidPercentage(pct int) bool {
	return pct > 0 && pct <= 100
}

// UserUpdate is a partial update to a user's profile and settings.
// Nil fields are left unchanged.
type UserUpdate struct {
	Name             *string
	MaaserPercentage *int
	ColorScheme      *string
	ConnectedBanks   []string
	SetBanks         bool
}

// UserResponse is the sanitized user returned to clients.
type UserResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	MaaserPercentage int       `json:"maaser_percentage"`
	ColorScheme      string    `json:"color_scheme"`
	ConnectedBanks   []string  `json:"connected_banks"`
	HasSecurityPin   bool      `json:"has_security_pin"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToResponse converts a User to its sanitized form.
func (u *User) ToResponse() UserResponse {
	banks := u.ConnectedBanks
	if banks == nil {
		banks = []string{}
	}
	return UserResponse{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		MaaserPercentage: u.MaaserPercentage,
		ColorScheme:      u.ColorScheme,
		ConnectedBanks:   banks,
		HasSecurityPin:   u.HasSecurityPin(),
		CreatedAt:        u.CreatedAt,
	}
}
