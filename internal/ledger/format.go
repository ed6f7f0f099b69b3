package ledger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tzedaka/maaser/internal/model"
)

const (
	manualEntry      = "Manual entry"
	unknownRecipient = "Unknown recipient"
)

// Providers that are shown on their own, without an account type.
var serviceFirstProviders = []string{
	"paypal",
	"venmo",
	"zelle",
	"cashapp",
	"cash app",
	"cash-app",
	"cash_app",
}

// Account type words, longest phrase first where they overlap.
var accountTypeKeywords = []string{
	"checking",
	"savings",
	"credit card",
	"credit",
	"debit card",
	"debit",
	"money market",
	"brokerage",
	"investment",
}

// FundingSource is the input to FormatFundingSource.
type FundingSource struct {
	Provider    string
	Account     string
	Description string
	Notes       string
}

// FormatFundingSource renders where income came from, e.g. "Wells Fargo Checking".
func FormatFundingSource(src FundingSource) string {
	provider := humanize(src.Provider)
	account := humanize(src.Account)

	if provider != "" {
		if isServiceFirst(provider) || account == "" {
			return provider
		}
		// Only a leading provider name is dropped; "Alliant" must not eat
		// the tail of "Brilliant".
		rest := account
		if len(account) >= len(provider) && strings.EqualFold(account[:len(provider)], provider) {
			rest = strings.TrimSpace(account[len(provider):])
		}
		if rest == "" {
			return provider
		}
		return provider + " " + rest
	}

	if account == "" {
		if d := strings.TrimSpace(src.Description); d != "" {
			return d
		}
		if n := strings.TrimSpace(src.Notes); n != "" {
			return n
		}
		return manualEntry
	}

	derived, accountType := parseAccount(account)
	switch {
	case derived == "":
		return accountType
	case isServiceFirst(derived):
		return derived
	default:
		return derived + " " + accountType
	}
}

// FormatCounterparty labels a feed item: the funding source for income,
// the recipient for donations.
func FormatCounterparty(item model.ActivityItem) string {
	if item.Type == model.ActivityIncome {
		return FormatFundingSource(FundingSource{
			Provider:    item.IntegrationProvider,
			Account:     item.Account,
			Description: item.Description,
			Notes:       item.Notes,
		})
	}

	for _, candidate := range []string{item.CharityName, item.Description, item.Notes, item.Account} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return unknownRecipient
}

// parseAccount splits a humanized account label into institution and type.
// With a known type word the institution is whatever precedes it (or follows
// it); otherwise the last word is taken as the type.
func parseAccount(normalized string) (provider, accountType string) {
	lower := strings.ToLower(normalized)

	for _, keyword := range accountTypeKeywords {
		idx := strings.Index(lower, keyword)
		if idx < 0 {
			continue
		}
		accountType = humanize(normalized[idx : idx+len(keyword)])
		before := strings.TrimSpace(normalized[:idx])
		after := strings.TrimSpace(normalized[idx+len(keyword):])
		if before != "" {
			return humanize(before), accountType
		}
		return humanize(after), accountType
	}

	parts := strings.Fields(normalized)
	if len(parts) >= 2 {
		return humanize(strings.Join(parts[:len(parts)-1], " ")), humanize(parts[len(parts)-1])
	}
	return "", normalized
}

func isServiceFirst(provider string) bool {
	lower := strings.ToLower(provider)
	for _, s := range serviceFirstProviders {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// humanize turns "wells_fargo-checking" into "Wells Fargo Checking".
// Only the first letter of each word is changed.
func humanize(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, value)

	words := strings.Fields(cleaned)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
