package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/model"
	"github.com/tzedaka/maaser/internal/repository/memory"
	"github.com/tzedaka/maaser/internal/testutil"
)

// run executes maaserctl against store and returns its stdout.
func run(t *testing.T, store *memory.Store, args ...string) (string, error) {
	t.Helper()

	a := &app{
		clock:      clock.NewManual(testutil.Epoch),
		hashParams: testutil.CheapHashParams,
		openStore: func(context.Context, string) (Store, func(), error) {
			return store, func() {}, nil
		},
	}

	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--database-url", "postgres://test"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestCreateUser(t *testing.T) {
	store := memory.New()

	out, err := run(t, store, "create-user", "--email", "Moshe@Example.com", "--password", "hunter22", "--pin", "4321")
	require.NoError(t, err)
	assert.Contains(t, out, "<moshe@example.com>")

	user, err := store.GetUserByEmail(context.Background(), "moshe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "moshe", user.Name)
	assert.Equal(t, model.DefaultMaaserPercentage, user.MaaserPercentage)

	ok, err := auth.VerifyPIN("4321", user.PinHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = run(t, store, "create-user", "--email", "moshe@example.com", "--password", "other")
	assert.Error(t, err, "duplicate email")
}

func TestCreateUser_Validation(t *testing.T) {
	t.Setenv(passwordEnv, "")

	_, err := run(t, memory.New(), "create-user", "--email", "a@example.com")
	assert.ErrorContains(t, err, "password required")

	_, err = run(t, memory.New(), "create-user", "--email", "a@example.com", "--password", "x", "--pin", "12")
	assert.ErrorIs(t, err, auth.ErrInvalidPINFormat)

	_, err = run(t, memory.New(), "create-user", "--password", "x")
	assert.Error(t, err, "--email is required")
}

func TestCreateUser_PasswordFromEnv(t *testing.T) {
	t.Setenv(passwordEnv, "from-env")
	store := memory.New()

	_, err := run(t, store, "create-user", "--email", "env@example.com")
	require.NoError(t, err)

	user, err := store.GetUserByEmail(context.Background(), "env@example.com")
	require.NoError(t, err)
	ok, err := auth.VerifyPassword("from-env", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetUser(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	user := testutil.NewTestUser(t, "usr_reset")
	user.MaaserPercentage = 20
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.CreateTransaction(ctx, testutil.NewTestTransaction(t, "txn_1", user.ID, "2024-03-01", "100")))

	out, err := run(t, store, "reset-user", "--email", user.Email, "--seed=false")
	require.NoError(t, err)
	assert.Contains(t, out, user.ID)

	got, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMaaserPercentage, got.MaaserPercentage)

	txns, err := store.ListTransactions(ctx, user.ID, model.OrderDateDesc)
	require.NoError(t, err)
	assert.Empty(t, txns)

	_, err = run(t, store, "reset-user", "--email", "nobody@example.com")
	assert.ErrorContains(t, err, "no user")
}

func TestResetUser_Reseeds(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	user := testutil.NewTestUser(t, "usr_seeded")
	require.NoError(t, store.CreateUser(ctx, user))

	_, err := run(t, store, "reset-user", "--email", user.Email)
	require.NoError(t, err)

	txns, err := store.ListTransactions(ctx, user.ID, model.OrderDateDesc)
	require.NoError(t, err)
	assert.NotEmpty(t, txns)
	for _, txn := range txns {
		assert.True(t, txn.Amount.GreaterThan(decimal.Zero))
	}
}

func TestPruneSessions(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	user := testutil.NewTestUser(t, "usr_sessions")
	require.NoError(t, store.CreateUser(ctx, user))
	for i, expires := range []time.Time{
		testutil.Epoch.Add(-48 * time.Hour),
		testutil.Epoch.Add(-time.Hour),
		testutil.Epoch.Add(time.Hour),
	} {
		require.NoError(t, store.CreateSession(ctx, &model.Session{
			ID:          "ses_" + string(rune('a'+i)),
			UserID:      user.ID,
			TokenHash:   "h",
			TokenPrefix: "0000000" + string(rune('0'+i)),
			ExpiresAt:   expires,
			CreatedAt:   testutil.Epoch.Add(-72 * time.Hour),
		}))
	}

	out, err := run(t, store, "prune-sessions", "--older-than", "24h")
	require.NoError(t, err)
	assert.Equal(t, "pruned 1 session(s)\n", out)

	out, err = run(t, store, "prune-sessions")
	require.NoError(t, err)
	assert.Equal(t, "pruned 1 session(s)\n", out)

	_, err = run(t, store, "prune-sessions", "--older-than", "-1h")
	assert.Error(t, err)
}

func TestMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	a := &app{clock: clock.NewSystem(), openStore: newApp().openStore}
	cmd := newRootCmd(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"prune-sessions"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "database URL not set")
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd(newApp())

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"create-user"},
		{"reset-user"},
		{"prune-sessions"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
