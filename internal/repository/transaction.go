package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tzedaka/maaser/internal/model"
)

// ErrTransactionNotFound is returned for unknown ids or ids owned by another user.
var ErrTransactionNotFound = errors.New("transaction not found")

const transactionColumns = `id, user_id, date, description, amount, account, category,
	is_internal_transfer, integration_provider, source_id, created_at, updated_at`

// orderClause returns the ORDER BY for a sort order. Ties are broken by
// creation time then id so listings are stable.
func orderClause(order model.SortOrder) string {
	if order == model.OrderDateAsc {
		return ` ORDER BY date ASC, created_at ASC, id ASC`
	}
	return ` ORDER BY date DESC, created_at DESC, id DESC`
}

// ListTransactions returns every transaction of a user.
func (r *Repository) ListTransactions(ctx context.Context, userID string, order model.SortOrder) ([]*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1` + orderClause(order)

	rows, err := r.q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []*model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// GetTransaction retrieves one of the user's transactions.
func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`

	t, err := scanTransaction(r.q(ctx).QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return t, nil
}

// CreateTransaction inserts a new transaction.
func (r *Repository) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, date, description, amount, account, category,
			is_internal_transfer, integration_provider, source_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q(ctx).Exec(ctx, query,
		t.ID,
		t.UserID,
		t.Date,
		t.Description,
		t.Amount,
		t.Account,
		t.Category,
		t.IsInternalTransfer,
		t.IntegrationProvider,
		t.SourceID,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// UpdateTransaction writes the mutable fields of a transaction.
func (r *Repository) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	query := `
		UPDATE transactions
		SET date = $3, description = $4, amount = $5, account = $6, category = $7,
			is_internal_transfer = $8, integration_provider = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.q(ctx).Exec(ctx, query,
		t.ID,
		t.UserID,
		t.Date,
		t.Description,
		t.Amount,
		t.Account,
		t.Category,
		t.IsInternalTransfer,
		t.IntegrationProvider,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}

	return nil
}

// DeleteTransaction removes a transaction. It reports whether a row existed.
func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.q(ctx).Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// UpsertSyncedTransactions stores provider transactions, keyed by
// (user, provider, source id). It returns how many rows were new.
func (r *Repository) UpsertSyncedTransactions(ctx context.Context, userID string, txns []*model.Transaction) (int, error) {
	query := `
		INSERT INTO transactions (id, user_id, date, description, amount, account, category,
			is_internal_transfer, integration_provider, source_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, integration_provider, source_id) WHERE source_id <> ''
		DO UPDATE SET date = EXCLUDED.date, description = EXCLUDED.description,
			amount = EXCLUDED.amount, account = EXCLUDED.account,
			category = EXCLUDED.category, updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`

	inserted := 0
	err := r.withTx(ctx, func(ctx context.Context) error {
		for _, t := range txns {
			var isNew bool
			err := r.q(ctx).QueryRow(ctx, query,
				t.ID,
				userID,
				t.Date,
				t.Description,
				t.Amount,
				t.Account,
				t.Category,
				t.IsInternalTransfer,
				t.IntegrationProvider,
				t.SourceID,
				t.CreatedAt,
				t.UpdatedAt,
			).Scan(&isNew)
			if err != nil {
				return fmt.Errorf("failed to upsert transaction %s/%s: %w", t.IntegrationProvider, t.SourceID, err)
			}
			if isNew {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Date,
		&t.Description,
		&t.Amount,
		&t.Account,
		&t.Category,
		&t.IsInternalTransfer,
		&t.IntegrationProvider,
		&t.SourceID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
