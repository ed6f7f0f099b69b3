package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"calendar day", "2024-03-15", "2024-03-15", false},
		{"rfc3339", "2024-03-15T18:30:00Z", "2024-03-15", false},
		{"rfc3339 offset crosses midnight", "2024-03-15T23:30:00-05:00", "2024-03-16", false},
		{"timestamp without zone", "2024-03-15T10:00:00", "2024-03-15", false},
		{"padded", "  2024-01-02 ", "2024-01-02", false},
		{"empty", "", "", true},
		{"garbage", "yesterday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("ParseDate(%q) error = %v, want ErrInvalidDate", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDate_JSON(t *testing.T) {
	t.Parallel()

	d := NewDate(time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC))

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"2024-05-01"` {
		t.Errorf("Marshal = %s, want \"2024-05-01\"", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("round trip = %s, want %s", back, d)
	}
}

func TestDate_Scan(t *testing.T) {
	t.Parallel()

	var d Date
	if err := d.Scan(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Scan(time.Time) failed: %v", err)
	}
	if d.String() != "2023-12-31" {
		t.Errorf("Scan(time.Time) = %s", d)
	}

	if err := d.Scan([]byte("2022-01-05")); err != nil {
		t.Fatalf("Scan([]byte) failed: %v", err)
	}
	if d.String() != "2022-01-05" {
		t.Errorf("Scan([]byte) = %s", d)
	}

	if err := d.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestUser_ToResponse_Sanitized(t *testing.T) {
	t.Parallel()

	u := &User{
		ID:               "usr_1",
		Email:            "tester@example.com",
		PasswordHash:     "$argon2id$secret",
		PinHash:          "$argon2id$pin",
		MaaserPercentage: DefaultMaaserPercentage,
	}

	data, err := json.Marshal(u.ToResponse())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, field := range []string{"password", "password_hash", "pin", "pin_hash"} {
		if _, ok := out[field]; ok {
			t.Errorf("response should not contain %q", field)
		}
	}
	if out["has_security_pin"] != true {
		t.Errorf("has_security_pin = %v, want true", out["has_security_pin"])
	}
	if banks, ok := out["connected_banks"].([]any); !ok || len(banks) != 0 {
		t.Errorf("connected_banks = %v, want empty list", out["connected_banks"])
	}
}

func TestTransactionUpdate_Apply(t *testing.T) {
	t.Parallel()

	txn := &Transaction{
		Description: "Paycheck",
		Amount:      decimal.NewFromInt(2500),
		Account:     "Checking",
	}

	amount := decimal.RequireFromString("2600.50")
	internal := true
	TransactionUpdate{Amount: &amount, IsInternalTransfer: &internal}.Apply(txn)

	if !txn.Amount.Equal(amount) {
		t.Errorf("Amount = %s, want %s", txn.Amount, amount)
	}
	if txn.Description != "Paycheck" {
		t.Errorf("Description changed to %q", txn.Description)
	}
	if txn.CountsAsIncome() {
		t.Error("internal transfer should not count as income")
	}
}

func TestAuthContext_PinSatisfied(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hasPin   bool
		verified bool
		want     bool
	}{
		{"no pin", false, false, false},
		{"pin not verified", true, false, false},
		{"pin verified", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := &AuthContext{HasPin: tt.hasPin, PinVerified: tt.verified}
			if got := a.PinSatisfied(); got != tt.want {
				t.Errorf("PinSatisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSortOrderAndView(t *testing.T) {
	t.Parallel()

	if ParseSortOrder("date") != OrderDateAsc {
		t.Error("date should parse to ascending")
	}
	if ParseSortOrder("") != OrderDateDesc || ParseSortOrder("bogus") != OrderDateDesc {
		t.Error("default order should be newest first")
	}
	if ParseActivityView("donations") != ViewDonations {
		t.Error("donations view not parsed")
	}
	if ParseActivityView("anything") != ViewAll {
		t.Error("unknown view should default to all")
	}
}
