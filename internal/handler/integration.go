package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tzedaka/maaser/internal/handler/dto"
	"github.com/tzedaka/maaser/internal/service"
)

// IntegrationHandler handles provider status, sync and disconnect.
type IntegrationHandler struct {
	svc    *service.IntegrationService
	logger *slog.Logger
}

// NewIntegrationHandler creates a new IntegrationHandler.
func NewIntegrationHandler(svc *service.IntegrationService, logger *slog.Logger) *IntegrationHandler {
	return &IntegrationHandler{
		svc:    svc,
		logger: logger,
	}
}

// Status handles GET /api/v1/integrations.
func (h *IntegrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	status, err := h.svc.Status(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(status))
}

// Sync handles POST /api/v1/integrations/sync.
// Individual provider failures are reported in the body, not as errors.
func (h *IntegrationHandler) Sync(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Sync(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("integrations_synced",
		"user_id", authCtx.UserID,
		"providers", len(report.Providers),
		"imported", report.Imported,
	)
	writeJSON(w, http.StatusOK, report)
}

// Disconnect handles DELETE /api/v1/integrations/{provider}.
func (h *IntegrationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Disconnect(r.Context(), authCtx.UserID, chi.URLParam(r, "provider"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("integration_disconnected", "user_id", authCtx.UserID, "provider", res.Provider)
	writeJSON(w, http.StatusOK, res)
}
