package dto

import "github.com/tzedaka/maaser/internal/model"

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PinRequest is the body of the PIN endpoints.
type PinRequest struct {
	Pin string `json:"pin"`
}

// LoginProvider describes one sign-in method.
type LoginProvider struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// ProvidersResponse lists the sign-in methods.
type ProvidersResponse struct {
	Providers []LoginProvider `json:"providers"`
}

// UpdateMeRequest is a partial update of the current user.
// Absent fields are left unchanged.
type UpdateMeRequest struct {
	Name             *string   `json:"name,omitempty"`
	MaaserPercentage *int      `json:"maaser_percentage,omitempty"`
	ColorScheme      *string   `json:"color_scheme,omitempty"`
	ConnectedBanks   *[]string `json:"connected_banks,omitempty"`
}

// ToUpdate converts the request to a model update.
func (r UpdateMeRequest) ToUpdate() model.UserUpdate {
	u := model.UserUpdate{
		Name:             r.Name,
		MaaserPercentage: r.MaaserPercentage,
		ColorScheme:      r.ColorScheme,
	}
	if r.ConnectedBanks != nil {
		u.ConnectedBanks = *r.ConnectedBanks
		u.SetBanks = true
	}
	return u
}
