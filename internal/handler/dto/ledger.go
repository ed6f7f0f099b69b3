package dto

import (
	"github.com/shopspring/decimal"

	"github.com/tzedaka/maaser/internal/model"
)

// CreateTransactionRequest is the body of POST /transactions.
// Dates are calendar days ("2024-03-15"); amounts may be numbers or strings.
type CreateTransactionRequest struct {
	Date                string          `json:"date"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Account             string          `json:"account,omitempty"`
	Category            string          `json:"category,omitempty"`
	IsInternalTransfer  bool            `json:"is_internal_transfer,omitempty"`
	IntegrationProvider string          `json:"integration_provider,omitempty"`
}

// UpdateTransactionRequest is a partial update of a transaction.
type UpdateTransactionRequest struct {
	Date                *string          `json:"date,omitempty"`
	Description         *string          `json:"description,omitempty"`
	Amount              *decimal.Decimal `json:"amount,omitempty"`
	Account             *string          `json:"account,omitempty"`
	Category            *string          `json:"category,omitempty"`
	IsInternalTransfer  *bool            `json:"is_internal_transfer,omitempty"`
	IntegrationProvider *string          `json:"integration_provider,omitempty"`
}

// ToUpdate converts the request to a model update. The date must already
// be parsed by the caller.
func (r UpdateTransactionRequest) ToUpdate(date *model.Date) model.TransactionUpdate {
	return model.TransactionUpdate{
		Date:                date,
		Description:         r.Description,
		Amount:              r.Amount,
		Account:             r.Account,
		Category:            r.Category,
		IsInternalTransfer:  r.IsInternalTransfer,
		IntegrationProvider: r.IntegrationProvider,
	}
}

// CreateDonationRequest is the body of POST /donations.
// An empty date means today.
type CreateDonationRequest struct {
	Date        string          `json:"date,omitempty"`
	CharityName string          `json:"charity_name"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes,omitempty"`
}
