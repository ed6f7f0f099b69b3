package handler

import (
	"log/slog"
	"net/http"

	"github.com/tzedaka/maaser/internal/handler/dto"
	"github.com/tzedaka/maaser/internal/service"
)

// AuthHandler handles sign-in, sessions, the security PIN and the
// current user's settings.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// Providers handles GET /api/v1/auth/providers.
// Google sign-in needs a browser OAuth flow and is not offered here.
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ProvidersResponse{
		Providers: []dto.LoginProvider{
			{Name: "email", Enabled: true},
			{Name: "google", Enabled: false},
		},
	})
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_logged_in", "user_id", resp.User.ID)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.svc.Logout(r.Context(), authCtx); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_logged_out", "user_id", authCtx.UserID, "session_id", authCtx.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.GetSession(r.Context(), authCtx)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetPin handles POST /api/v1/auth/pin.
func (h *AuthHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req dto.PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.SetSecurityPin(r.Context(), authCtx, req.Pin)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// VerifyPin handles POST /api/v1/auth/pin/verify.
func (h *AuthHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req dto.PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.VerifySecurityPin(r.Context(), authCtx, req.Pin)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Me(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToResponse())
}

// UpdateMe handles PATCH /api/v1/me.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req dto.UpdateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateMe(r.Context(), authCtx.UserID, req.ToUpdate())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user.ToResponse())
}
