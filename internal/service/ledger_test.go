package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tzedaka/maaser/internal/catalog"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/metrics"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository/memory"
)

type ledgerFixture struct {
	svc     *LedgerService
	store   *memory.Store
	clock   *clock.Manual
	metrics *metrics.InMemoryRecorder
	userID  string
}

func newLedgerFixture(t *testing.T, seed bool) *ledgerFixture {
	t.Helper()

	store := memory.New()
	clk := clock.NewManual(testStart)
	recorder := metrics.NewInMemory()

	user := &model.User{
		ID:               "usr_ledger",
		Name:             "Rivka",
		Email:            "rivka@example.com",
		MaaserPercentage: model.DefaultMaaserPercentage,
		ColorScheme:      model.DefaultColorScheme,
		ConnectedBanks:   []string{"Bank"},
		CreatedAt:        testStart,
		UpdatedAt:        testStart,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))

	svc := NewLedgerService(store, catalog.Default(), clk, discardLogger(), recorder, seed)
	return &ledgerFixture{svc: svc, store: store, clock: clk, metrics: recorder, userID: user.ID}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestLedgerService_SeedsOnce(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, true)
	ctx := context.Background()

	txns, err := f.svc.ListTransactions(ctx, f.userID, model.OrderDateDesc)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Paycheck", txns[0].Description)
	assert.Equal(t, "2024-03-15", txns[0].Date.String())
	assert.Equal(t, "Gift", txns[1].Description)
	assert.Equal(t, "2024-03-08", txns[1].Date.String())

	dons, err := f.svc.ListDonations(ctx, f.userID, model.OrderDateDesc)
	require.NoError(t, err)
	require.Len(t, dons, 1)
	assert.Equal(t, "Tomchei Shabbos", dons[0].CharityName)
	assert.Equal(t, "2024-03-13", dons[0].Date.String())

	// Deleting everything must not bring the starter rows back.
	for _, txn := range txns {
		_, err := f.svc.DeleteTransaction(ctx, f.userID, txn.ID)
		require.NoError(t, err)
	}
	txns, err = f.svc.ListTransactions(ctx, f.userID, model.OrderDateDesc)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestLedgerService_NoSeed(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, false)

	txns, err := f.svc.ListTransactions(context.Background(), f.userID, model.OrderDateDesc)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestLedgerService_TransactionLifecycle(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, false)
	ctx := context.Background()

	txn, err := f.svc.CreateTransaction(ctx, f.userID, CreateTransactionInput{
		Date:        date(t, "2024-03-01"),
		Description: " Bonus ",
		Amount:      dec("1000"),
		Account:     "Checking",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^txn_[0-9A-Z]{26}$`, txn.ID)
	assert.Equal(t, "Bonus", txn.Description)

	amount := dec("1200.50")
	internal := true
	updated, err := f.svc.UpdateTransaction(ctx, f.userID, txn.ID, model.TransactionUpdate{
		Amount:             &amount,
		IsInternalTransfer: &internal,
	})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))
	assert.True(t, updated.IsInternalTransfer)
	assert.Equal(t, "Bonus", updated.Description)

	_, err = f.svc.UpdateTransaction(ctx, f.userID, "txn_missing", model.TransactionUpdate{})
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = f.svc.UpdateTransaction(ctx, "usr_other", txn.ID, model.TransactionUpdate{})
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	zero := decimal.Zero
	_, err = f.svc.UpdateTransaction(ctx, f.userID, txn.ID, model.TransactionUpdate{Amount: &zero})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)

	res, err := f.svc.DeleteTransaction(ctx, f.userID, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, res.ID)

	res, err = f.svc.DeleteTransaction(ctx, f.userID, txn.ID)
	require.NoError(t, err, "delete is idempotent")
	assert.Equal(t, txn.ID, res.ID)

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.EntriesCreated["transaction"])
	assert.Equal(t, uint64(1), snap.EntriesUpdated["transaction"])
	assert.Equal(t, uint64(1), snap.EntriesDeleted["transaction"])
}

func TestLedgerService_CreateTransaction_Validation(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, false)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateTransactionInput
		field string
	}{
		{"missing date", CreateTransactionInput{Description: "x", Amount: dec("1")}, "date"},
		{"missing description", CreateTransactionInput{Date: date(t, "2024-01-01"), Amount: dec("1")}, "description"},
		{"negative amount", CreateTransactionInput{Date: date(t, "2024-01-01"), Description: "x", Amount: dec("-5")}, "amount"},
		{"fraction of a cent", CreateTransactionInput{Date: date(t, "2024-01-01"), Description: "x", Amount: dec("0.004")}, "amount"},
		{"too large", CreateTransactionInput{Date: date(t, "2024-01-01"), Description: "x", Amount: dec("1000000000000")}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransaction(ctx, f.userID, tt.input)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestLedgerService_Donations(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, false)
	ctx := context.Background()

	don, err := f.svc.CreateDonation(ctx, f.userID, CreateDonationInput{
		CharityName: "Hatzalah",
		Amount:      dec("36"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", don.Date.String(), "date defaults to today")

	_, err = f.svc.CreateDonation(ctx, f.userID, CreateDonationInput{Amount: dec("1")})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "charity_name", vErr.Field)

	_, err = f.svc.CreateDonation(ctx, f.userID, CreateDonationInput{CharityName: "X", Amount: decimal.Zero})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)

	for _, amount := range []string{"0.004", "18.005", "1000000000000"} {
		_, err = f.svc.CreateDonation(ctx, f.userID, CreateDonationInput{CharityName: "X", Amount: dec(amount)})
		require.ErrorAs(t, err, &vErr, amount)
		assert.Equal(t, "amount", vErr.Field)
	}

	// Trailing zeros are still whole cents.
	big, err := f.svc.CreateDonation(ctx, f.userID, CreateDonationInput{CharityName: "X", Amount: dec("999999999999.990")})
	require.NoError(t, err)
	assert.Equal(t, "999999999999.99", big.Amount.StringFixed(2))

	res, err := f.svc.DeleteDonation(ctx, f.userID, "don_unknown")
	require.NoError(t, err)
	assert.Equal(t, "don_unknown", res.ID)
}

func TestLedgerService_SummaryAndActivity(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, true)
	ctx := context.Background()

	summary, err := f.svc.Summary(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, "2700.00", summary.TotalIncome.StringFixed(2))
	assert.Equal(t, "270.00", summary.MaaserTarget.StringFixed(2))
	assert.Equal(t, "150.00", summary.MaaserOwed.StringFixed(2))

	items, err := f.svc.Activity(ctx, f.userID, model.ViewAll)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Paycheck", items[0].Description)
	assert.Equal(t, model.ActivityDonation, items[1].Type)
	assert.Equal(t, "Tomchei Shabbos", items[1].Counterparty)
	assert.Equal(t, "Savings", items[2].Counterparty)

	items, err = f.svc.Activity(ctx, f.userID, model.ViewDonations)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLedgerService_Reset(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.CreateTransaction(ctx, f.userID, CreateTransactionInput{
		Date: date(t, "2024-03-10"), Description: "Side job", Amount: dec("400"),
	})
	require.NoError(t, err)

	user, err := f.store.GetUserByID(ctx, f.userID)
	require.NoError(t, err)
	user.MaaserPercentage = 20
	user.ColorScheme = "blue"
	require.NoError(t, f.store.UpdateUser(ctx, user))

	reset, err := f.svc.Reset(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMaaserPercentage, reset.MaaserPercentage)
	assert.Equal(t, model.DefaultColorScheme, reset.ColorScheme)
	assert.Empty(t, reset.ConnectedBanks)
	assert.Equal(t, "Rivka", reset.Name)

	txns, err := f.svc.ListTransactions(ctx, f.userID, model.OrderDateAsc)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Gift", txns[0].Description)

	_, err = f.svc.Reset(ctx, "usr_missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedgerService_Reset_WithoutSeeding(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.CreateTransaction(ctx, f.userID, CreateTransactionInput{
		Date: date(t, "2024-03-10"), Description: "Side job", Amount: dec("400"),
	})
	require.NoError(t, err)

	_, err = f.svc.Reset(ctx, f.userID)
	require.NoError(t, err)

	txns, err := f.svc.ListTransactions(ctx, f.userID, model.OrderDateAsc)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestLedgerService_ListCharities_FallsBackToCatalog(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t, false)

	charities, err := f.svc.ListCharities(context.Background())
	require.NoError(t, err)
	require.Len(t, charities, 5)
	assert.True(t, charities[0].IsRecommended)
	assert.False(t, charities[4].IsRecommended)
}
