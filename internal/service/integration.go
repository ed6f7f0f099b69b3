package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/integration"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/model"
)

// DefaultSyncLookback is how far back a sync asks providers for entries.
const DefaultSyncLookback = 30 * 24 * time.Hour

// IntegrationStore is the persistence IntegrationService needs.
type IntegrationStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	ListUsersWithConnections(ctx context.Context) ([]*model.User, error)
	UpsertSyncedTransactions(ctx context.Context, userID string, txns []*model.Transaction) (int, error)
}

// ProviderHub queries the external providers.
type ProviderHub interface {
	Status() map[string]bool
	Sync(ctx context.Context, window integration.Window, only []string) []integration.ProviderResult
}

// ProviderStatus is one row of the connection status listing.
type ProviderStatus struct {
	Provider  string `json:"provider"`
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
}

// DisconnectResult acknowledges a disconnect.
type DisconnectResult struct {
	Disconnected bool   `json:"disconnected"`
	Provider     string `json:"provider"`
}

// IntegrationService imports provider transactions into users' ledgers.
type IntegrationService struct {
	store    IntegrationStore
	hub      ProviderHub
	clock    clock.Clock
	metrics  metrics.Recorder
	logger   *slog.Logger
	lookback time.Duration
}

// NewIntegrationService creates a new IntegrationService.
func NewIntegrationService(store IntegrationStore, hub ProviderHub, clk clock.Clock, logger *slog.Logger, recorder metrics.Recorder, lookback time.Duration) *IntegrationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if lookback <= 0 {
		lookback = DefaultSyncLookback
	}
	return &IntegrationService{
		store:    store,
		hub:      hub,
		clock:    clk,
		metrics:  recorder,
		logger:   logger.With("component", "integrations"),
		lookback: lookback,
	}
}

// Status lists every provider with whether it is configured and whether the
// user linked it.
func (s *IntegrationService) Status(ctx context.Context, userID string) ([]ProviderStatus, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	connected := connectedProviders(user)
	enabled := s.hub.Status()

	out := make([]ProviderStatus, 0, len(integration.ProviderNames))
	for _, name := range integration.ProviderNames {
		out = append(out, ProviderStatus{
			Provider:  name,
			Enabled:   enabled[name],
			Connected: connected[name],
		})
	}
	return out, nil
}

// Sync imports recent provider transactions for a user.
func (s *IntegrationService) Sync(ctx context.Context, userID string) (*integration.SyncReport, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.SyncUser(ctx, user)
}

// SyncUser imports recent transactions from the user's linked providers,
// or from every configured provider when the user linked none.
func (s *IntegrationService) SyncUser(ctx context.Context, user *model.User) (*integration.SyncReport, error) {
	now := s.clock.Now()
	report := &integration.SyncReport{Providers: []integration.ProviderResult{}, SyncedAt: now}

	var only []string
	if len(user.ConnectedBanks) > 0 {
		for name := range connectedProviders(user) {
			only = append(only, name)
		}
		if len(only) == 0 {
			return report, nil
		}
	}

	results := s.hub.Sync(ctx, integration.LastDays(now, s.lookback), only)

	for i := range results {
		r := &results[i]
		if r.Status != integration.StatusSuccess || len(r.Transactions) == 0 {
			continue
		}
		for _, t := range r.Transactions {
			t.ID = newID(prefixTransaction, now)
			t.UserID = user.ID
			t.CreatedAt = now
			t.UpdatedAt = now
		}

		inserted, err := s.store.UpsertSyncedTransactions(ctx, user.ID, r.Transactions)
		if err != nil {
			return nil, fmt.Errorf("failed to store %s transactions: %w", r.Provider, err)
		}
		r.Inserted = inserted
		report.Imported += inserted
		s.metrics.AddSyncedTransactions(r.Provider, inserted)
	}

	report.Providers = results
	s.logger.Info("integration sync complete",
		"user_id", user.ID,
		"providers", len(results),
		"imported", report.Imported,
	)
	return report, nil
}

// ListUsersWithConnections returns users that linked at least one provider.
func (s *IntegrationService) ListUsersWithConnections(ctx context.Context) ([]*model.User, error) {
	return s.store.ListUsersWithConnections(ctx)
}

// Disconnect unlinks a provider from the user.
func (s *IntegrationService) Disconnect(ctx context.Context, userID, provider string) (*DisconnectResult, error) {
	name := integration.CanonicalProvider(provider)
	if name == "" {
		return nil, ErrUnknownProvider
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, 0, len(user.ConnectedBanks))
	for _, label := range user.ConnectedBanks {
		if integration.CanonicalProvider(label) != name {
			remaining = append(remaining, label)
		}
	}

	if len(remaining) != len(user.ConnectedBanks) {
		user.ConnectedBanks = remaining
		user.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	return &DisconnectResult{Disconnected: true, Provider: name}, nil
}

func (s *IntegrationService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

// connectedProviders maps the user's linked labels to provider names.
// Labels without a provider (e.g. "Apple Pay") are skipped.
func connectedProviders(user *model.User) map[string]bool {
	out := make(map[string]bool, len(user.ConnectedBanks))
	for _, label := range user.ConnectedBanks {
		if name := integration.CanonicalProvider(label); name != "" {
			out[name] = true
		}
	}
	return out
}
