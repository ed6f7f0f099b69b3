package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tzedaka/maaser/internal/model"
)

func day(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func txn(id, date, amount string, internal bool) *model.Transaction {
	return &model.Transaction{
		ID:                 id,
		Date:               day(date),
		Description:        "Paycheck",
		Amount:             decimal.RequireFromString(amount),
		Account:            "Checking",
		IsInternalTransfer: internal,
		CreatedAt:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func donation(id, date, amount string) *model.Donation {
	return &model.Donation{
		ID:          id,
		Date:        day(date),
		CharityName: "Tomchei Shabbos",
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	txns := []*model.Transaction{
		txn("txn_1", "2024-03-01", "2500", false),
		txn("txn_2", "2024-03-05", "1000", true),
		txn("txn_3", "2024-03-10", "200", false),
	}
	dons := []*model.Donation{donation("don_1", "2024-03-02", "120")}

	s := Summarize(txns, dons, 10)

	assert.True(t, s.TotalIncome.Equal(decimal.NewFromInt(2700)), "income %s", s.TotalIncome)
	assert.True(t, s.TotalDonated.Equal(decimal.NewFromInt(120)))
	assert.True(t, s.MaaserTarget.Equal(decimal.NewFromInt(270)), "target %s", s.MaaserTarget)
	assert.True(t, s.MaaserOwed.Equal(decimal.NewFromInt(150)), "owed %s", s.MaaserOwed)
	assert.Equal(t, 10, s.MaaserPercentage)
	assert.Equal(t, 3, s.TransactionCount)
	assert.Equal(t, 1, s.DonationCount)
}

func TestSummarize_OwedNeverNegative(t *testing.T) {
	t.Parallel()

	s := Summarize(
		[]*model.Transaction{txn("txn_1", "2024-03-01", "100", false)},
		[]*model.Donation{donation("don_1", "2024-03-02", "50")},
		20,
	)

	assert.True(t, s.MaaserTarget.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.MaaserOwed.IsZero(), "owed %s", s.MaaserOwed)
}

func TestSummarize_DefaultPercentageAndRounding(t *testing.T) {
	t.Parallel()

	s := Summarize([]*model.Transaction{txn("txn_1", "2024-03-01", "333.33", false)}, nil, 0)

	assert.Equal(t, model.DefaultMaaserPercentage, s.MaaserPercentage)
	assert.Equal(t, "33.33", s.MaaserTarget.StringFixed(2))
	assert.Equal(t, "33.33", s.MaaserOwed.StringFixed(2))
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, nil, 10)
	assert.True(t, s.TotalIncome.IsZero())
	assert.True(t, s.MaaserOwed.IsZero())
	assert.Zero(t, s.TransactionCount)
}

func TestActivity(t *testing.T) {
	t.Parallel()

	txns := []*model.Transaction{
		txn("txn_new", "2024-03-10", "200", false),
		txn("txn_same", "2024-03-05", "100", false),
		txn("txn_old", "2024-03-01", "2500", false),
	}
	dons := []*model.Donation{
		donation("don_same", "2024-03-05", "50"),
		donation("don_mid", "2024-03-03", "20"),
	}

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		items := Activity(txns, dons, model.ViewAll)
		require.Len(t, items, 5)

		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		assert.Equal(t, []string{"txn_new", "txn_same", "don_same", "don_mid", "txn_old"}, ids)
	})

	t.Run("income only", func(t *testing.T) {
		t.Parallel()
		items := Activity(txns, dons, model.ViewIncome)
		require.Len(t, items, 3)
		for _, it := range items {
			assert.Equal(t, model.ActivityIncome, it.Type)
		}
	})

	t.Run("donations only", func(t *testing.T) {
		t.Parallel()
		items := Activity(txns, dons, model.ViewDonations)
		require.Len(t, items, 2)
		assert.Equal(t, "Tomchei Shabbos", items[0].Counterparty)
	})

	t.Run("counterparty for income", func(t *testing.T) {
		t.Parallel()
		items := Activity(txns[:1], nil, model.ViewAll)
		require.Len(t, items, 1)
		assert.Equal(t, "Checking", items[0].Counterparty)
	})
}
