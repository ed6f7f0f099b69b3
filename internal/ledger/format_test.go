package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tzedaka/maaser/internal/model"
)

func TestFormatFundingSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  FundingSource
		want string
	}{
		{
			name: "provider before account type",
			src:  FundingSource{Provider: "Wells Fargo", Account: "Wells Fargo checking"},
			want: "Wells Fargo Checking",
		},
		{
			name: "provider derived from account",
			src:  FundingSource{Account: "chase savings"},
			want: "Chase Savings",
		},
		{
			name: "provider name inside another word is kept",
			src:  FundingSource{Provider: "Alliant", Account: "Brilliant checking"},
			want: "Alliant Brilliant Checking",
		},
		{
			name: "provider with punctuation",
			src:  FundingSource{Provider: "Citi (US)", Account: "Citi (US) savings"},
			want: "Citi (US) Savings",
		},
		{
			name: "snake case provider",
			src:  FundingSource{Provider: "wells_fargo", Account: "checking"},
			want: "Wells Fargo Checking",
		},
		{
			name: "service first provider ignores account",
			src:  FundingSource{Provider: "paypal", Account: "PayPal balance"},
			want: "Paypal",
		},
		{
			name: "service first institution derived from account",
			src:  FundingSource{Account: "venmo balance"},
			want: "Venmo",
		},
		{
			name: "cash app from account label",
			src:  FundingSource{Account: "cash_app"},
			want: "Cash App",
		},
		{
			name: "provider without account",
			src:  FundingSource{Provider: "bank"},
			want: "Bank",
		},
		{
			name: "account equal to provider",
			src:  FundingSource{Provider: "Ally", Account: "ally"},
			want: "Ally",
		},
		{
			name: "keyword first takes institution after it",
			src:  FundingSource{Account: "checking - Capital One"},
			want: "Capital One Checking",
		},
		{
			name: "credit card phrase",
			src:  FundingSource{Account: "amex credit card"},
			want: "Amex Credit Card",
		},
		{
			name: "no keyword uses last word as type",
			src:  FundingSource{Account: "first national reserve"},
			want: "First National Reserve",
		},
		{
			name: "single word account",
			src:  FundingSource{Account: "Savings"},
			want: "Savings",
		},
		{
			name: "falls back to description",
			src:  FundingSource{Description: "Bonus"},
			want: "Bonus",
		},
		{
			name: "falls back to notes",
			src:  FundingSource{Notes: "cash from tutoring"},
			want: "cash from tutoring",
		},
		{
			name: "manual entry",
			src:  FundingSource{},
			want: "Manual entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatFundingSource(tt.src))
		})
	}
}

func TestFormatCounterparty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item model.ActivityItem
		want string
	}{
		{
			name: "income uses funding source",
			item: model.ActivityItem{Type: model.ActivityIncome, Account: "Checking", IntegrationProvider: "bank"},
			want: "Bank Checking",
		},
		{
			name: "donation uses charity",
			item: model.ActivityItem{Type: model.ActivityDonation, CharityName: "Tomchei Shabbos", Notes: "weekly"},
			want: "Tomchei Shabbos",
		},
		{
			name: "donation falls back to notes",
			item: model.ActivityItem{Type: model.ActivityDonation, Notes: "shul appeal"},
			want: "shul appeal",
		},
		{
			name: "unknown recipient",
			item: model.ActivityItem{Type: model.ActivityDonation, CharityName: "  "},
			want: "Unknown recipient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatCounterparty(tt.item))
		})
	}
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Wells Fargo Checking", humanize("wells_fargo--checking"))
	assert.Equal(t, "PayPal", humanize("PayPal"))
	assert.Equal(t, "", humanize("  _ "))
}
