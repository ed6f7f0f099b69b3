package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tzedaka/maaser/internal/model"
)

// SeedLedger inserts the starter rows unless the user's ledger was already
// seeded. It reports whether seeding happened.
func (r *Repository) SeedLedger(ctx context.Context, userID string, txns []*model.Transaction, donations []*model.Donation, at time.Time) (bool, error) {
	seeded := false
	err := r.withTx(ctx, func(ctx context.Context) error {
		result, err := r.q(ctx).Exec(ctx,
			`UPDATE users SET seeded_at = $2 WHERE id = $1 AND seeded_at IS NULL`,
			userID, at,
		)
		if err != nil {
			return fmt.Errorf("failed to mark ledger seeded: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil
		}

		if err := r.insertStarter(ctx, txns, donations); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return seeded, nil
}

// ResetLedger wipes the user's transactions and donations, writes the user's
// settings and re-inserts the starter rows in one transaction.
func (r *Repository) ResetLedger(ctx context.Context, user *model.User, txns []*model.Transaction, donations []*model.Donation) error {
	return r.withTx(ctx, func(ctx context.Context) error {
		if _, err := r.q(ctx).Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, user.ID); err != nil {
			return fmt.Errorf("failed to clear transactions: %w", err)
		}
		if _, err := r.q(ctx).Exec(ctx, `DELETE FROM donations WHERE user_id = $1`, user.ID); err != nil {
			return fmt.Errorf("failed to clear donations: %w", err)
		}
		if err := r.UpdateUser(ctx, user); err != nil {
			return err
		}
		if _, err := r.q(ctx).Exec(ctx,
			`UPDATE users SET seeded_at = $2 WHERE id = $1`,
			user.ID, user.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to mark ledger seeded: %w", err)
		}
		return r.insertStarter(ctx, txns, donations)
	})
}

func (r *Repository) insertStarter(ctx context.Context, txns []*model.Transaction, donations []*model.Donation) error {
	for _, t := range txns {
		if err := r.CreateTransaction(ctx, t); err != nil {
			return err
		}
	}
	for _, d := range donations {
		if err := r.CreateDonation(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
