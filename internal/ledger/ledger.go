// Package ledger holds the pure ma'aser computations: the owed summary, the
// merged activity feed and the display labels for each entry.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tzedaka/maaser/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Summarize computes totals and the amount still owed for a giving percentage.
// Internal transfers are not income. A non-positive percentage falls back to
// the default. Owed never goes below zero.
func Summarize(txns []*model.Transaction, donations []*model.Donation, percentage int) model.Summary {
	if percentage <= 0 {
		percentage = model.DefaultMaaserPercentage
	}

	income := decimal.Zero
	for _, t := range txns {
		if t.CountsAsIncome() {
			income = income.Add(t.Amount)
		}
	}

	donated := decimal.Zero
	for _, d := range donations {
		donated = donated.Add(d.Amount)
	}

	target := income.Mul(decimal.NewFromInt(int64(percentage))).Div(hundred).Round(2)
	owed := target.Sub(donated)
	if owed.IsNegative() {
		owed = decimal.Zero
	}

	return model.Summary{
		TotalIncome:      income,
		TotalDonated:     donated,
		MaaserPercentage: percentage,
		MaaserTarget:     target,
		MaaserOwed:       owed.Round(2),
		TransactionCount: len(txns),
		DonationCount:    len(donations),
	}
}

// Activity merges income and donations into one feed, newest first.
// Entries on the same day keep their input order with income ahead of donations.
func Activity(txns []*model.Transaction, donations []*model.Donation, view model.ActivityView) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(txns)+len(donations))

	if view != model.ViewDonations {
		for _, t := range txns {
			items = append(items, FromTransaction(t))
		}
	}
	if view != model.ViewIncome {
		for _, d := range donations {
			items = append(items, FromDonation(d))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date.Time)
	})

	return items
}

// FromTransaction builds an income feed item.
func FromTransaction(t *model.Transaction) model.ActivityItem {
	item := model.ActivityItem{
		Type:                model.ActivityIncome,
		ID:                  t.ID,
		Date:                t.Date,
		Amount:              t.Amount,
		Description:         t.Description,
		Account:             t.Account,
		Category:            t.Category,
		IsInternalTransfer:  t.IsInternalTransfer,
		IntegrationProvider: t.IntegrationProvider,
	}
	item.Counterparty = FormatCounterparty(item)
	return item
}

// FromDonation builds a donation feed item.
func FromDonation(d *model.Donation) model.ActivityItem {
	item := model.ActivityItem{
		Type:        model.ActivityDonation,
		ID:          d.ID,
		Date:        d.Date,
		Amount:      d.Amount,
		CharityName: d.CharityName,
		Notes:       d.Notes,
	}
	item.Counterparty = FormatCounterparty(item)
	return item
}
