package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tzedaka/maaser/internal/auth"
	"github.com/tzedaka/maaser/internal/catalog"
	"github.com/tzedaka/maaser/internal/repository"
	"github.com/tzedaka/maaser/internal/service"
)

// passwordEnv lets scripts pass the password without it showing up in ps.
const passwordEnv = "MAASER_PASSWORD"

func newCreateUserCmd(a *app) *cobra.Command {
	var (
		name     string
		email    string
		password string
		pin      string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account, optionally with a security PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				return fmt.Errorf("password required: pass --password or set %s", passwordEnv)
			}
			if pin != "" {
				normalized, err := auth.NormalizePIN(pin)
				if err != nil {
					return err
				}
				pin = normalized
			}

			return a.withStore(cmd.Context(), func(store Store) error {
				svc := service.NewAuthService(store, nil, nil, a.clock, a.logger, nil, service.AuthOptions{
					HashParams: a.hashParams,
				})
				user, err := svc.CreateAccount(cmd.Context(), service.RegisterInput{
					Name:     name,
					Email:    email,
					Password: password,
				})
				if err != nil {
					return err
				}

				if pin != "" {
					hash, err := auth.HashWithParams(pin, a.params())
					if err != nil {
						return err
					}
					if err := store.SetUserPin(cmd.Context(), user.ID, hash, a.clock.Now()); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created user %s <%s>\n", user.ID, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password (default $"+passwordEnv+")")
	cmd.Flags().StringVar(&pin, "pin", "", "optional 4 digit security PIN")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newResetUserCmd(a *app) *cobra.Command {
	var (
		email string
		seed  bool
	)

	cmd := &cobra.Command{
		Use:   "reset-user",
		Short: "Wipe a user's ledger and restore default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store Store) error {
				user, err := store.GetUserByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(email)))
				if errors.Is(err, repository.ErrUserNotFound) {
					return fmt.Errorf("no user with email %q", email)
				}
				if err != nil {
					return err
				}

				svc := service.NewLedgerService(store, catalog.Default(), a.clock, a.logger, nil, seed)
				if _, err := svc.Reset(cmd.Context(), user.ID); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "reset ledger for %s\n", user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email of the user to reset")
	cmd.Flags().BoolVar(&seed, "seed", true, "re-seed the starter entries")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newPruneSessionsCmd(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired and revoked sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return errors.New("--older-than must not be negative")
			}
			return a.withStore(cmd.Context(), func(store Store) error {
				cutoff := a.clock.Now().Add(-olderThan)
				n, err := store.DeleteExpiredSessions(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d session(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "keep sessions that ended within this window")

	return cmd
}
