package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tzedaka/maaser/internal/catalog"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/ledger"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository"
)

// Entry kinds for metrics.
const (
	kindTransaction = "transaction"
	kindDonation    = "donation"
)

// LedgerStore is the persistence LedgerService needs.
type LedgerStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	ListTransactions(ctx context.Context, userID string, order model.SortOrder) ([]*model.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (*model.Transaction, error)
	CreateTransaction(ctx context.Context, t *model.Transaction) error
	UpdateTransaction(ctx context.Context, t *model.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) (bool, error)

	ListDonations(ctx context.Context, userID string, order model.SortOrder) ([]*model.Donation, error)
	CreateDonation(ctx context.Context, d *model.Donation) error
	DeleteDonation(ctx context.Context, userID, id string) (bool, error)

	ListCharities(ctx context.Context) ([]model.Charity, error)

	SeedLedger(ctx context.Context, userID string, txns []*model.Transaction, donations []*model.Donation, at time.Time) (bool, error)
	ResetLedger(ctx context.Context, user *model.User, txns []*model.Transaction, donations []*model.Donation) error
}

// LedgerService handles income, donations and the ma'aser computations.
type LedgerService struct {
	store   LedgerStore
	catalog *catalog.Catalog
	clock   clock.Clock
	metrics metrics.Recorder
	logger  *slog.Logger
	seed    bool
}

// NewLedgerService creates a new LedgerService. When seed is true a user's
// first ledger access inserts the starter entries.
func NewLedgerService(store LedgerStore, cat *catalog.Catalog, clk clock.Clock, logger *slog.Logger, recorder metrics.Recorder, seed bool) *LedgerService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &LedgerService{
		store:   store,
		catalog: cat,
		clock:   clk,
		metrics: recorder,
		logger:  logger.With("component", "ledger"),
		seed:    seed,
	}
}

// CreateTransactionInput defines input for recording income.
type CreateTransactionInput struct {
	Date                model.Date
	Description         string
	Amount              decimal.Decimal
	Account             string
	Category            string
	IsInternalTransfer  bool
	IntegrationProvider string
}

// CreateDonationInput defines input for recording a donation.
// A zero Date means today.
type CreateDonationInput struct {
	Date        model.Date
	CharityName string
	Amount      decimal.Decimal
	Notes       string
}

// DeleteResult echoes the id of a deleted entry.
type DeleteResult struct {
	ID string `json:"id"`
}

// ListTransactions returns the user's income entries.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, order model.SortOrder) ([]*model.Transaction, error) {
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, userID, order)
}

// CreateTransaction records income.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, input CreateTransactionInput) (*model.Transaction, error) {
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	txn := &model.Transaction{
		ID:                  newID(prefixTransaction, now),
		UserID:              userID,
		Date:                input.Date,
		Description:         strings.TrimSpace(input.Description),
		Amount:              input.Amount,
		Account:             strings.TrimSpace(input.Account),
		Category:            strings.TrimSpace(input.Category),
		IsInternalTransfer:  input.IsInternalTransfer,
		IntegrationProvider: strings.TrimSpace(input.IntegrationProvider),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}

	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.metrics.IncEntryCreated(kindTransaction)
	return txn, nil
}

// UpdateTransaction merges update into an existing entry.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, update model.TransactionUpdate) (*model.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	update.Apply(txn)
	txn.Description = strings.TrimSpace(txn.Description)
	if err := validateTransaction(txn); err != nil {
		return nil, err
	}
	txn.UpdatedAt = s.clock.Now()

	if err := s.store.UpdateTransaction(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	s.metrics.IncEntryUpdated(kindTransaction)
	return txn, nil
}

// DeleteTransaction removes an entry. Unknown ids succeed.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) (*DeleteResult, error) {
	deleted, err := s.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete transaction: %w", err)
	}
	if deleted {
		s.metrics.IncEntryDeleted(kindTransaction)
	}
	return &DeleteResult{ID: id}, nil
}

// ListDonations returns the user's donations.
func (s *LedgerService) ListDonations(ctx context.Context, userID string, order model.SortOrder) ([]*model.Donation, error) {
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListDonations(ctx, userID, order)
}

// CreateDonation records a donation.
func (s *LedgerService) CreateDonation(ctx context.Context, userID string, input CreateDonationInput) (*model.Donation, error) {
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := input.Date
	if date.IsZero() {
		date = model.NewDate(now)
	}

	don := &model.Donation{
		ID:          newID(prefixDonation, now),
		UserID:      userID,
		Date:        date,
		CharityName: strings.TrimSpace(input.CharityName),
		Amount:      input.Amount,
		Notes:       strings.TrimSpace(input.Notes),
		CreatedAt:   now,
	}
	if don.CharityName == "" {
		return nil, invalid("charity_name", "is required")
	}
	if err := validateAmount(don.Amount); err != nil {
		return nil, err
	}

	if err := s.store.CreateDonation(ctx, don); err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	s.metrics.IncEntryCreated(kindDonation)
	return don, nil
}

// DeleteDonation removes a donation. Unknown ids succeed.
func (s *LedgerService) DeleteDonation(ctx context.Context, userID, id string) (*DeleteResult, error) {
	deleted, err := s.store.DeleteDonation(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete donation: %w", err)
	}
	if deleted {
		s.metrics.IncEntryDeleted(kindDonation)
	}
	return &DeleteResult{ID: id}, nil
}

// ListCharities returns the charity catalog, recommended first.
func (s *LedgerService) ListCharities(ctx context.Context) ([]model.Charity, error) {
	charities, err := s.store.ListCharities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list charities: %w", err)
	}
	if len(charities) == 0 {
		return s.catalog.SortedCharities(), nil
	}
	catalog.SortCharities(charities)
	return charities, nil
}

// Summary computes what the user has earned, given and still owes.
func (s *LedgerService) Summary(ctx context.Context, userID string) (*model.Summary, error) {
	user, txns, dons, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := ledger.Summarize(txns, dons, user.MaaserPercentage)
	return &summary, nil
}

// Activity returns the merged feed for view.
func (s *LedgerService) Activity(ctx context.Context, userID string, view model.ActivityView) ([]model.ActivityItem, error) {
	_, txns, dons, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.Activity(txns, dons, view), nil
}

// Reset wipes the ledger and restores default settings. The starter entries
// come back when seeding is enabled.
func (s *LedgerService) Reset(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user.MaaserPercentage = model.DefaultMaaserPercentage
	user.ColorScheme = model.DefaultColorScheme
	user.ConnectedBanks = []string{}
	user.UpdatedAt = now

	var (
		txns []*model.Transaction
		dons []*model.Donation
	)
	if s.seed {
		txns, dons = s.starter(userID, now)
	}
	if err := s.store.ResetLedger(ctx, user, txns, dons); err != nil {
		return nil, fmt.Errorf("failed to reset ledger: %w", err)
	}

	s.logger.Info("ledger reset", "user_id", userID)
	return user, nil
}

func (s *LedgerService) load(ctx context.Context, userID string) (*model.User, []*model.Transaction, []*model.Donation, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	txns, err := s.ListTransactions(ctx, userID, model.OrderDateDesc)
	if err != nil {
		return nil, nil, nil, err
	}
	dons, err := s.ListDonations(ctx, userID, model.OrderDateDesc)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, txns, dons, nil
}

func (s *LedgerService) user(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

// ensureSeeded inserts the starter entries the first time a ledger is used.
func (s *LedgerService) ensureSeeded(ctx context.Context, userID string) error {
	if !s.seed {
		return nil
	}
	now := s.clock.Now()
	txns, dons := s.starter(userID, now)
	seeded, err := s.store.SeedLedger(ctx, userID, txns, dons, now)
	if err != nil {
		return fmt.Errorf("failed to seed ledger: %w", err)
	}
	if seeded {
		s.logger.Info("starter ledger seeded", "user_id", userID)
	}
	return nil
}

// starter builds the starter rows with fresh ids.
func (s *LedgerService) starter(userID string, now time.Time) ([]*model.Transaction, []*model.Donation) {
	txns := s.catalog.StarterTransactions(userID, now)
	for i, t := range txns {
		created := now.Add(time.Duration(i) * time.Microsecond)
		t.ID = newID(prefixTransaction, created)
		t.CreatedAt = created
		t.UpdatedAt = created
	}
	dons := s.catalog.StarterDonations(userID, now)
	for i, d := range dons {
		created := now.Add(time.Duration(i) * time.Microsecond)
		d.ID = newID(prefixDonation, created)
		d.CreatedAt = created
	}
	return txns, dons
}

func validateTransaction(t *model.Transaction) error {
	if t.Date.IsZero() {
		return invalid("date", "is required")
	}
	if t.Description == "" {
		return invalid("description", "is required")
	}
	return validateAmount(t.Amount)
}

// maxAmount is the first value a NUMERIC(14,2) column cannot hold.
var maxAmount = decimal.New(1, 12)

// validateAmount keeps amounts storable as-is: positive, whole cents and
// below maxAmount.
func validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return invalid("amount", "must be greater than 0")
	case !amount.Equal(amount.Round(2)):
		return invalid("amount", "must have at most 2 decimal places")
	case amount.GreaterThanOrEqual(maxAmount):
		return invalid("amount", "must be less than 1000000000000")
	}
	return nil
}
