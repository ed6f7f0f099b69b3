// Command maaserctl is the operator CLI for the ma'aser service: schema
// migrations, account administration and session housekeeping.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/clock"
	"github.com/tzedaka/maaser/internal/repository"
	"github.com/tzedaka/maaser/internal/service"
)

// Store is the persistence the admin commands need.
type Store interface {
	service.AuthStore
	service.LedgerStore
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// app carries the flags and dependencies shared by every command.
type app struct {
	databaseURL string
	logLevel    string

	logger *slog.Logger
	clock  clock.Clock
	// hashParams override the Argon2id cost. Zero means auth.DefaultParams.
	hashParams auth.Params

	// openStore connects to the database. Tests swap in an in-memory store.
	openStore func(ctx context.Context, databaseURL string) (Store, func(), error)
}

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *app {
	return &app{
		clock: clock.NewSystem(),
		openStore: func(ctx context.Context, databaseURL string) (Store, func(), error) {
			repo, err := repository.New(ctx, databaseURL)
			if err != nil {
				return nil, nil, err
			}
			return repo, repo.Close, nil
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "maaserctl",
		Short:         "Administer the ma'aser tracker service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("read .env: %w", err)
			}
			if a.databaseURL == "" {
				a.databaseURL = os.Getenv("DATABASE_URL")
			}
			a.logger = newLogger(cmd, a.logLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.databaseURL, "database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	root.PersistentFlags().StringVar(&a.logLevel, "log", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newMigrateCmd(a),
		newCreateUserCmd(a),
		newResetUserCmd(a),
		newPruneSessionsCmd(a),
	)
	return root
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(Store) error) error {
	if a.databaseURL == "" {
		return errors.New("database URL not set: pass --database-url or set DATABASE_URL")
	}
	store, closeFn, err := a.openStore(ctx, a.databaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer closeFn()
	return fn(store)
}

func (a *app) params() auth.Params {
	if a.hashParams == (auth.Params{}) {
		return auth.DefaultParams
	}
	return a.hashParams
}

func newLogger(cmd *cobra.Command, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
}
