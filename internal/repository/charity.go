package repository

import (
	"context"
	"fmt"

	"github.com/tzedaka/maaser/internal/model"
)

// ListCharities returns the catalog, recommended first then by name.
func (r *Repository) ListCharities(ctx context.Context) ([]model.Charity, error) {
	rows, err := r.q(ctx).Query(ctx, `
		SELECT id, name, category, is_recommended
		FROM charities
		ORDER BY is_recommended DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list charities: %w", err)
	}
	defer rows.Close()

	charities := []model.Charity{}
	for rows.Next() {
		var c model.Charity
		if err := rows.Scan(&c.ID, &c.Name, &c.Category, &c.IsRecommended); err != nil {
			return nil, fmt.Errorf("failed to scan charity: %w", err)
		}
		charities = append(charities, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating charities: %w", err)
	}

	return charities, nil
}

// UpsertCharities syncs the catalog into the charities table.
func (r *Repository) UpsertCharities(ctx context.Context, charities []model.Charity) error {
	query := `
		INSERT INTO charities (id, name, category, is_recommended)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, category = EXCLUDED.category, is_recommended = EXCLUDED.is_recommended
	`

	return r.withTx(ctx, func(ctx context.Context) error {
		for _, c := range charities {
			if _, err := r.q(ctx).Exec(ctx, query, c.ID, c.Name, c.Category, c.IsRecommended); err != nil {
				return fmt.Errorf("failed to upsert charity %s: %w", c.ID, err)
			}
		}
		return nil
	})
}
