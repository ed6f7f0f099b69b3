package integration

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tzedaka/maaser/internal/config"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/model"
)

// Sync outcome per provider.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ProviderResult is the outcome of querying one provider.
type ProviderResult struct {
	Provider string `json:"provider"`
	Status   string `json:"status"`
	Fetched  int    `json:"fetched"`
	Dropped  int    `json:"dropped"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`

	// Transactions are normalized but carry no id or owner yet.
	Transactions []*model.Transaction `json:"-"`
}

// SyncReport summarizes one user's sync.
type SyncReport struct {
	Providers []ProviderResult `json:"providers"`
	Imported  int              `json:"imported"`
	SyncedAt  time.Time        `json:"synced_at"`
}

// Hub queries the configured providers.
type Hub struct {
	providers []Provider
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewHub builds the five providers from configuration.
func NewHub(cfg config.Integrations, client *Client, logger *slog.Logger, recorder metrics.Recorder) *Hub {
	return NewHubWithProviders([]Provider{
		NewBankProvider(cfg.Bank, client),
		NewPayPalProvider(cfg.PayPal, client),
		NewCashAppProvider(cfg.CashApp, client),
		NewZelleProvider(cfg.Zelle, client),
		NewVenmoProvider(cfg.Venmo, client),
	}, logger, recorder)
}

// NewHubWithProviders creates a hub over an explicit provider list.
func NewHubWithProviders(providers []Provider, logger *slog.Logger, recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Hub{
		providers: providers,
		logger:    logger.With("component", "integration.hub"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// Status reports which providers have credentials configured.
func (h *Hub) Status() map[string]bool {
	status := make(map[string]bool, len(h.providers))
	for _, p := range h.providers {
		status[p.Name()] = p.Enabled()
	}
	return status
}

// Enabled reports whether the named provider is configured.
func (h *Hub) Enabled(name string) bool {
	for _, p := range h.providers {
		if p.Name() == name {
			return p.Enabled()
		}
	}
	return false
}

// Sync queries the enabled providers concurrently. When only is non-empty
// the query is limited to those providers. A failing provider is reported
// in its result and never fails the others.
func (h *Hub) Sync(ctx context.Context, window Window, only []string) []ProviderResult {
	var selected []Provider
	for _, p := range h.providers {
		if !p.Enabled() {
			continue
		}
		if len(only) > 0 && !slices.Contains(only, p.Name()) {
			continue
		}
		selected = append(selected, p)
	}

	results := make([]ProviderResult, len(selected))
	start := h.now()

	var g errgroup.Group
	for i, p := range selected {
		g.Go(func() error {
			results[i] = h.syncProvider(ctx, p, window)
			return nil
		})
	}
	_ = g.Wait()

	h.metrics.ObserveSyncDuration(h.now().Sub(start))
	return results
}

func (h *Hub) syncProvider(ctx context.Context, p Provider, window Window) ProviderResult {
	result := ProviderResult{Provider: p.Name()}

	records, err := p.Fetch(ctx, window)
	if err != nil {
		h.logger.Warn("provider sync failed",
			"provider", p.Name(),
			"error", err,
		)
		h.metrics.IncProviderSync(p.Name(), StatusFailed)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = StatusSuccess
	result.Fetched = len(records)
	for _, rec := range records {
		txn, ok := Normalize(p.Name(), rec)
		if !ok {
			result.Dropped++
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}

	h.metrics.IncProviderSync(p.Name(), StatusSuccess)
	h.logger.Info("provider sync complete",
		"provider", p.Name(),
		"fetched", result.Fetched,
		"dropped", result.Dropped,
	)
	return result
}

// Normalize turns a provider record into a transaction tagged with its
// provider and source id. Records without an id, a date or a numeric amount
// are rejected.
func Normalize(provider string, rec Record) (*model.Transaction, bool) {
	sourceID := strings.TrimSpace(rec.SourceID)
	if sourceID == "" {
		return nil, false
	}

	date, err := model.ParseDate(rec.Date)
	if err != nil {
		return nil, false
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(rec.Amount))
	if err != nil {
		return nil, false
	}

	return &model.Transaction{
		Date:                date,
		Description:         strings.TrimSpace(rec.Description),
		Amount:              amount.Round(2),
		Account:             strings.TrimSpace(rec.Account),
		Category:            strings.TrimSpace(rec.Category),
		IntegrationProvider: provider,
		SourceID:            sourceID,
	}, true
}
