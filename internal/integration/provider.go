package integration

import (
	"context"
	"strings"
	"time"
)

// Provider names as stored on synced transactions.
const (
	ProviderBank    = "bank"
	ProviderPayPal  = "paypal"
	ProviderCashApp = "cash_app"
	ProviderZelle   = "zelle"
	ProviderVenmo   = "venmo"
)

// ProviderNames lists every supported provider in display order.
var ProviderNames = []string{ProviderBank, ProviderPayPal, ProviderCashApp, ProviderZelle, ProviderVenmo}

// Window is the date range a sync asks providers for.
type Window struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the window ending at now and covering d.
func LastDays(now time.Time, d time.Duration) Window {
	return Window{Start: now.Add(-d), End: now}
}

// Record is one provider entry before validation.
// Amount and Date are the raw provider values.
type Record struct {
	SourceID    string
	Date        string
	Description string
	Amount      string
	Account     string
	Category    string
}

// Provider fetches recent entries from one external service.
type Provider interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context, window Window) ([]Record, error)
}

// CanonicalProvider maps a provider name or display label ("Cash App",
// "PayPal", "cash-app") to its provider name. Unknown labels return "".
func CanonicalProvider(label string) string {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(label)))

	switch key {
	case "bank", "bankaggregator":
		return ProviderBank
	case "paypal":
		return ProviderPayPal
	case "cashapp":
		return ProviderCashApp
	case "zelle":
		return ProviderZelle
	case "venmo":
		return ProviderVenmo
	default:
		return ""
	}
}
