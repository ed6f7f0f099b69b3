package model

import (
	"github.com/shopspring/decimal"
)

// ActivityType distinguishes income from donations in the activity feed.
type ActivityType string

const (
	ActivityIncome   ActivityType = "income"
	ActivityDonation ActivityType = "donation"
)

// ActivityView filters the activity feed.
type ActivityView string

const (
	ViewAll       ActivityView = "all"
	ViewIncome    ActivityView = "income"
	ViewDonations ActivityView = "donations"
)

// ParseActivityView maps a query value to a view, defaulting to all.
func ParseActivityView(s string) ActivityView {
	switch ActivityView(s) {
	case ViewIncome:
		return ViewIncome
	case ViewDonations:
		return ViewDonations
	default:
		return ViewAll
	}
}

// ActivityItem is one row of the merged income/donation feed.
type ActivityItem struct {
	Type                ActivityType    `json:"type"`
	ID                  string          `json:"id"`
	Date                Date            `json:"date"`
	Amount              decimal.Decimal `json:"amount"`
	Counterparty        string          `json:"counterparty"`
	Description         string          `json:"description,omitempty"`
	CharityName         string          `json:"charity_name,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	Account             string          `json:"account,omitempty"`
	Category            string          `json:"category,omitempty"`
	IsInternalTransfer  bool            `json:"is_internal_transfer,omitempty"`
	IntegrationProvider string          `json:"integration_provider,omitempty"`
}

// Summary is the dashboard's ma'aser computation.
type Summary struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalDonated     decimal.Decimal `json:"total_donated"`
	MaaserPercentage int             `json:"maaser_percentage"`
	MaaserTarget     decimal.Decimal `json:"maaser_target"`
	MaaserOwed       decimal.Decimal `json:"maaser_owed"`
	TransactionCount int             `json:"transaction_count"`
	DonationCount    int             `json:"donation_count"`
}
