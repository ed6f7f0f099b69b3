// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/model"
)

// CheapHashParams keep argon2 fast in tests. Never use them in production.
var CheapHashParams = auth.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// Epoch is a fixed "now" for clock driven tests.
var Epoch = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// StartPostgres starts a throwaway PostgreSQL container and returns its DSN.
// DATABASE_URL short-circuits the container for CI runs that provide one.
// The test is skipped when neither is available.
func StartPostgres(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "maaser",
				"POSTGRES_PASSWORD": "maaser",
				"POSTGRES_DB":       "maaser",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("cannot start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	return fmt.Sprintf("postgres://maaser:maaser@%s:%s/maaser?sslmode=disable", host, port.Port())
}

// RedisURL returns REDIS_URL or the local default.
func RedisURL() string {
	if u := os.Getenv("REDIS_URL"); u != "" {
		return u
	}
	return "redis://localhost:6379"
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser returns a user with default settings and no PIN.
func NewTestUser(t testing.TB, id string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.User{
		ID:               id,
		Name:             "Test " + id,
		Email:            id + "@example.com",
		PasswordHash:     "$argon2id$test",
		MaaserPercentage: model.DefaultMaaserPercentage,
		ColorScheme:      model.DefaultColorScheme,
		ConnectedBanks:   []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewTestTransaction returns an income entry on the given day.
func NewTestTransaction(t testing.TB, id, userID, date, amount string) *model.Transaction {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Transaction{
		ID:          id,
		UserID:      userID,
		Date:        MustDate(t, date),
		Description: "Income " + id,
		Amount:      decimal.RequireFromString(amount),
		Account:     "Checking",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestDonation returns a donation on the given day.
func NewTestDonation(t testing.TB, id, userID, date, amount string) *model.Donation {
	t.Helper()
	return &model.Donation{
		ID:          id,
		UserID:      userID,
		Date:        MustDate(t, date),
		CharityName: "Chai Lifeline",
		Amount:      decimal.RequireFromString(amount),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// MustDate parses a calendar day or fails the test.
func MustDate(t testing.TB, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}
