package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortOrder controls date ordering of list results.
type SortOrder string

const (
	// OrderDateDesc lists newest first. It is the default.
	OrderDateDesc SortOrder = "-date"
	// OrderDateAsc lists oldest first.
	OrderDateAsc SortOrder = "date"
)

// ParseSortOrder maps a query value to a SortOrder, defaulting to newest first.
func ParseSortOrder(s string) SortOrder {
	if SortOrder(s) == OrderDateAsc {
		return OrderDateAsc
	}
	return OrderDateDesc
}

// Transaction is an income entry. Internal transfers are kept for the record
// but never count as income.
type Transaction struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"-"`
	Date                Date            `json:"date"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Account             string          `json:"account,omitempty"`
	Category            string          `json:"category,omitempty"`
	IsInternalTransfer  bool            `json:"is_internal_transfer"`
	IntegrationProvider string          `json:"integration_provider,omitempty"`
	SourceID            string          `json:"source_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CountsAsIncome returns true if the entry contributes to total income.
func (t *Transaction) CountsAsIncome() bool {
	return !t.IsInternalTransfer
}

// TransactionUpdate is a partial update. Nil fields are left unchanged.
type TransactionUpdate struct {
	Date                *Date
	Description         *string
	Amount              *decimal.Decimal
	Account             *string
	Category            *string
	IsInternalTransfer  *bool
	IntegrationProvider *string
}

// Apply merges the update into t.
func (u TransactionUpdate) Apply(t *Transaction) {
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Account != nil {
		t.Account = *u.Account
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.IsInternalTransfer != nil {
		t.IsInternalTransfer = *u.IsInternalTransfer
	}
	if u.IntegrationProvider != nil {
		t.IntegrationProvider = *u.IntegrationProvider
	}
}
