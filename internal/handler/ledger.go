package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tzedaka/maaser/internal/handler/dto"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/service"
)

// LedgerHandler handles transactions, donations, charities and the
// computed summary and activity views.
type LedgerHandler struct {
	svc    *service.LedgerService
	logger *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		svc:    svc,
		logger: logger,
	}
}

// ListTransactions handles GET /api/v1/transactions?order=-date.
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	order := model.ParseSortOrder(r.URL.Query().Get("order"))
	txns, err := h.svc.ListTransactions(r.Context(), authCtx.UserID, order)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(txns))
}

// CreateTransaction handles POST /api/v1/transactions.
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req dto.CreateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, ok := parseDateField(w, req.Date)
	if !ok {
		return
	}

	txn, err := h.svc.CreateTransaction(r.Context(), authCtx.UserID, service.CreateTransactionInput{
		Date:                date,
		Description:         req.Description,
		Amount:              req.Amount,
		Account:             req.Account,
		Category:            req.Category,
		IsInternalTransfer:  req.IsInternalTransfer,
		IntegrationProvider: req.IntegrationProvider,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("transaction_created", "user_id", authCtx.UserID, "transaction_id", txn.ID)
	writeJSON(w, http.StatusCreated, txn)
}

// UpdateTransaction handles PATCH /api/v1/transactions/{id}.
func (h *LedgerHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req dto.UpdateTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var date *model.Date
	if req.Date != nil {
		parsed, ok := parseDateField(w, *req.Date)
		if !ok {
			return
		}
		date = &parsed
	}

	txn, err := h.svc.UpdateTransaction(r.Context(), authCtx.UserID, id, req.ToUpdate(date))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("transaction_updated", "user_id", authCtx.UserID, "transaction_id", txn.ID)
	writeJSON(w, http.StatusOK, txn)
}

// DeleteTransaction handles DELETE /api/v1/transactions/{id}.
// Deleting an unknown id succeeds.
func (h *LedgerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	res, err := h.svc.DeleteTransaction(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("transaction_deleted", "user_id", authCtx.UserID, "transaction_id", res.ID)
	writeJSON(w, http.StatusOK, res)
}

// ListDonations handles GET /api/v1/donations?order=-date.
func (h *LedgerHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	order := model.ParseSortOrder(r.URL.Query().Get("order"))
	donations, err := h.svc.ListDonations(r.Context(), authCtx.UserID, order)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(donations))
}

// CreateDonation handles POST /api/v1/donations.
func (h *LedgerHandler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req dto.CreateDonationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var date model.Date
	if req.Date != "" {
		if date, ok = parseDateField(w, req.Date); !ok {
			return
		}
	}

	don, err := h.svc.CreateDonation(r.Context(), authCtx.UserID, service.CreateDonationInput{
		Date:        date,
		CharityName: req.CharityName,
		Amount:      req.Amount,
		Notes:       req.Notes,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("donation_created", "user_id", authCtx.UserID, "donation_id", don.ID)
	writeJSON(w, http.StatusCreated, don)
}

// DeleteDonation handles DELETE /api/v1/donations/{id}.
func (h *LedgerHandler) DeleteDonation(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	res, err := h.svc.DeleteDonation(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("donation_deleted", "user_id", authCtx.UserID, "donation_id", res.ID)
	writeJSON(w, http.StatusOK, res)
}

// ListCharities handles GET /api/v1/charities.
func (h *LedgerHandler) ListCharities(w http.ResponseWriter, r *http.Request) {
	charities, err := h.svc.ListCharities(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(charities))
}

// Summary handles GET /api/v1/summary.
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.Summary(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Activity handles GET /api/v1/activity?view=all|income|donations.
func (h *LedgerHandler) Activity(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	view := model.ParseActivityView(r.URL.Query().Get("view"))
	items, err := h.svc.Activity(r.Context(), authCtx.UserID, view)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(items))
}

// Reset handles POST /api/v1/reset.
func (h *LedgerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Reset(r.Context(), authCtx.UserID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("ledger_reset", "user_id", authCtx.UserID)
	writeJSON(w, http.StatusOK, user.ToResponse())
}

// parseDateField parses a calendar day from a request body. An empty value
// is returned as the zero date and left for the service to reject.
func parseDateField(w http.ResponseWriter, raw string) (model.Date, bool) {
	if raw == "" {
		return model.Date{}, true
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return model.Date{}, false
	}
	return date, true
}
