package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tzedaka/maaser/internal/model"
)

// ErrSessionNotFound is returned when a session does not exist or is revoked.
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, user_id, token_hash, token_prefix, pin_verified, revoked_at, last_seen_at, expires_at, created_at`

// CreateSession inserts a new session.
func (r *Repository) CreateSession(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, token_prefix, pin_verified, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q(ctx).Exec(ctx, query,
		s.ID,
		s.UserID,
		s.TokenHash,
		s.TokenPrefix,
		s.PinVerified,
		s.ExpiresAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSessionsByPrefix retrieves unrevoked, unexpired sessions matching a
// token prefix. Used during authentication to find candidates for verification.
func (r *Repository) GetSessionsByPrefix(ctx context.Context, prefix string, now time.Time) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE token_prefix = $1 AND revoked_at IS NULL AND expires_at > $2
	`

	rows, err := r.q(ctx).Query(ctx, query, prefix, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by prefix: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetSessionByID retrieves an active session by ID.
func (r *Repository) GetSessionByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 AND revoked_at IS NULL`

	s, err := scanSession(r.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// SetSessionPinVerified records whether the session passed the PIN gate.
func (r *Repository) SetSessionPinVerified(ctx context.Context, id string, verified bool) error {
	result, err := r.q(ctx).Exec(ctx,
		`UPDATE sessions SET pin_verified = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, verified,
	)
	if err != nil {
		return fmt.Errorf("failed to update session PIN state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// LockOtherSessions clears pin_verified on every session of userID except
// keepID, so they must pass the PIN gate again.
func (r *Repository) LockOtherSessions(ctx context.Context, userID, keepID string) (int64, error) {
	result, err := r.q(ctx).Exec(ctx,
		`UPDATE sessions SET pin_verified = FALSE
		 WHERE user_id = $1 AND id <> $2 AND pin_verified AND revoked_at IS NULL`,
		userID, keepID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to lock sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

// TouchSession slides the expiry of an active session.
func (r *Repository) TouchSession(ctx context.Context, id string, seenAt, expiresAt time.Time) error {
	_, err := r.q(ctx).Exec(ctx,
		`UPDATE sessions SET last_seen_at = $2, expires_at = $3 WHERE id = $1 AND revoked_at IS NULL`,
		id, seenAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// RevokeSession revokes a session by setting revoked_at.
func (r *Repository) RevokeSession(ctx context.Context, id string, at time.Time) error {
	result, err := r.q(ctx).Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteExpiredSessions removes sessions that expired or were revoked before cutoff.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.q(ctx).Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.TokenPrefix,
		&s.PinVerified,
		&s.RevokedAt,
		&s.LastSeenAt,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
