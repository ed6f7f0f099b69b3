package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/catalog"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository/memory"
	"github.com/tzedaka/maaser/internal/service"
	"github.com/tzedaka/maaser/internal/testutil"
)

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHandler_NotFound(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	response := decodeErrorResponse(t, rec)
	if response["code"] != "NOT_FOUND" {
		t.Errorf("unexpected code: %s", response["code"])
	}
	if response["error"] != "Resource not found" {
		t.Errorf("unexpected error message: %s", response["error"])
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if response := decodeErrorResponse(t, rec); response["code"] != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected code: %s", response["code"])
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &service.ValidationError{Field: "amount", Message: "must be positive"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrapped validation", fmt.Errorf("create: %w", &service.ValidationError{Field: "date", Message: "is required"}), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"email exists", service.ErrEmailExists, http.StatusConflict, "EMAIL_EXISTS"},
		{"pin already set", service.ErrPinAlreadySet, http.StatusConflict, "PIN_ALREADY_SET"},
		{"pin not set", service.ErrPinNotSet, http.StatusUnprocessableEntity, "PIN_NOT_SET"},
		{"incorrect pin", service.ErrIncorrectPin, http.StatusForbidden, "INCORRECT_PIN"},
		{"too many attempts", service.ErrTooManyAttempts, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
		{"user not found", service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
		{"transaction not found", service.ErrTransactionNotFound, http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
		{"unknown provider", service.ErrUnknownProvider, http.StatusNotFound, "UNKNOWN_PROVIDER"},
		{"unexpected", errors.New("pool exhausted"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
			rec := httptest.NewRecorder()

			handleServiceError(rec, req, testutil.DiscardLogger(), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			response := decodeErrorResponse(t, rec)
			if response["code"] != tt.wantCode {
				t.Errorf("code = %s, want %s", response["code"], tt.wantCode)
			}
			if response["error"] == "" {
				t.Error("error message should not be empty")
			}
		})
	}
}

func TestHandleServiceError_HidesInternalDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handleServiceError(rec, req, testutil.DiscardLogger(), errors.New("dial tcp 10.0.0.5:5432: refused"))

	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{"valid", `{"pin":"1234"}`, 0, true, 0},
		{"empty", ``, 0, false, http.StatusBadRequest},
		{"malformed", `{"pin":`, 0, false, http.StatusBadRequest},
		{"too large", `{"pin":"` + strings.Repeat("1", 64) + `"}`, 16, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			if tt.limit > 0 {
				req.Body = http.MaxBytesReader(rec, req.Body, tt.limit)
			}

			var dst struct {
				Pin string `json:"pin"`
			}
			ok := decodeJSON(rec, req, &dst)

			if ok != tt.wantOK {
				t.Fatalf("decodeJSON = %v, want %v", ok, tt.wantOK)
			}
			if !ok && rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ok && dst.Pin != "1234" {
				t.Errorf("decoded pin = %q", dst.Pin)
			}
		})
	}
}

// newLedgerHandler returns a handler over an in-memory store holding one
// user, and a request decorator that authenticates as that user.
func newLedgerHandler(t *testing.T) (*LedgerHandler, func(*http.Request, map[string]string) *http.Request) {
	t.Helper()

	store := memory.New()
	user := testutil.NewTestUser(t, "usr_handler")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	svc := service.NewLedgerService(store, catalog.Default(), clock.NewManual(testutil.Epoch), testutil.DiscardLogger(), nil, false)
	h := NewLedgerHandler(svc, testutil.DiscardLogger())

	withAuth := func(req *http.Request, params map[string]string) *http.Request {
		ctx := auth.ContextWithAuth(req.Context(), &model.AuthContext{
			SessionID:   "ses_handler",
			UserID:      user.ID,
			HasPin:      true,
			PinVerified: true,
			ExpiresAt:   testutil.Epoch.Add(time.Hour),
		})
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
		return req.WithContext(ctx)
	}
	return h, withAuth
}

func TestLedgerHandler_RequiresAuth(t *testing.T) {
	h, _ := newLedgerHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	rec := httptest.NewRecorder()

	h.Summary(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestLedgerHandler_CreateTransaction(t *testing.T) {
	h, withAuth := newLedgerHandler(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"created", `{"date":"2024-03-01","description":"Paycheck","amount":"1500.50"}`, http.StatusCreated, ""},
		{"numeric amount", `{"date":"2024-03-02","description":"Bonus","amount":250}`, http.StatusCreated, ""},
		{"bad date", `{"date":"03/01/2024","description":"Paycheck","amount":"10"}`, http.StatusBadRequest, "INVALID_DATE"},
		{"missing date", `{"description":"Paycheck","amount":"10"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative amount", `{"date":"2024-03-01","description":"Refund","amount":"-5"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"sub-cent amount", `{"date":"2024-03-01","description":"Interest","amount":"0.004"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"amount too large", `{"date":"2024-03-01","description":"Windfall","amount":1e12}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad json", `{"date":`, http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(tt.body)), nil)
			rec := httptest.NewRecorder()

			h.CreateTransaction(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if response := decodeErrorResponse(t, rec); response["code"] != tt.wantCode {
					t.Errorf("code = %s, want %s", response["code"], tt.wantCode)
				}
				return
			}

			var txn model.Transaction
			if err := json.NewDecoder(rec.Body).Decode(&txn); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !strings.HasPrefix(txn.ID, "txn_") {
				t.Errorf("unexpected id %q", txn.ID)
			}
		})
	}
}

func TestLedgerHandler_DeleteIsIdempotent(t *testing.T) {
	h, withAuth := newLedgerHandler(t)

	for i := 0; i < 2; i++ {
		req := withAuth(httptest.NewRequest(http.MethodDelete, "/api/v1/transactions/txn_gone", nil), map[string]string{"id": "txn_gone"})
		rec := httptest.NewRecorder()

		h.DeleteTransaction(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected status 200, got %d", i+1, rec.Code)
		}
		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["id"] != "txn_gone" {
			t.Errorf("unexpected response %v", response)
		}
	}
}

func TestLedgerHandler_UpdateUnknownTransaction(t *testing.T) {
	h, withAuth := newLedgerHandler(t)

	req := withAuth(httptest.NewRequest(http.MethodPatch, "/api/v1/transactions/txn_nope", strings.NewReader(`{"amount":"5"}`)), map[string]string{"id": "txn_nope"})
	rec := httptest.NewRecorder()

	h.UpdateTransaction(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestLedgerHandler_ListCharities(t *testing.T) {
	h, _ := newLedgerHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/charities", nil)
	rec := httptest.NewRecorder()

	h.ListCharities(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var response struct {
		Data []model.Charity `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Data) == 0 {
		t.Error("expected the built-in charity catalog")
	}
}

func TestAuthHandler_Providers(t *testing.T) {
	h := NewAuthHandler(nil, testutil.DiscardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/providers", nil)
	rec := httptest.NewRecorder()

	h.Providers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `{"name":"email","enabled":true}`) {
		t.Errorf("email login should be enabled: %s", body)
	}
	if !strings.Contains(body, `{"name":"google","enabled":false}`) {
		t.Errorf("google login should be disabled: %s", body)
	}
}

func TestMetricsHandler(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncLogin()
	recorder.IncAuthFailure("pin_incorrect")
	recorder.IncEntryCreated("donation")
	recorder.IncProviderSync("paypal", "failed")
	recorder.AddSyncedTransactions("bank", 3)

	h := NewMetricsHandler(recorder)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	h.Metrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"maaser_logins_total 1",
		`maaser_auth_failures_total{reason="pin_incorrect"} 1`,
		`maaser_entries_created_total{kind="donation"} 1`,
		`maaser_provider_syncs_total{provider="paypal",status="failed"} 1`,
		`maaser_synced_transactions_total{provider="bank"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	h := NewMetricsHandler(nil)

	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
