package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tzedaka/maaser/internal/model"
)

const donationColumns = `id, user_id, date, charity_name, amount, notes, created_at`

// ListDonations returns every donation of a user.
func (r *Repository) ListDonations(ctx context.Context, userID string, order model.SortOrder) ([]*model.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE user_id = $1` + orderClause(order)

	rows, err := r.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	donations := []*model.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}

	return donations, nil
}

// CreateDonation inserts a new donation.
func (r *Repository) CreateDonation(ctx context.Context, d *model.Donation) error {
	query := `
		INSERT INTO donations (id, user_id, date, charity_name, amount, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q(ctx).Exec(ctx, query,
		d.ID,
		d.UserID,
		d.Date,
		d.CharityName,
		d.Amount,
		d.Notes,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create donation: %w", err)
	}

	return nil
}

// DeleteDonation removes a donation. It reports whether a row existed.
func (r *Repository) DeleteDonation(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.q(ctx).Exec(ctx,
		`DELETE FROM donations WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete donation: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func scanDonation(row pgx.Row) (*model.Donation, error) {
	var d model.Donation
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Date,
		&d.CharityName,
		&d.Amount,
		&d.Notes,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
