// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/store"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// The sessions table is keyed by user_id, so a user has at most one row.
type SessionRepository struct {
	pool store.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool store.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Upsert stores session, replacing the user's previous session.
func (r *SessionRepository) Upsert(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`,
		session.UserID.String(),
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_UPSERT_FAILED").
			With("operation", "upsert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByUserID retrieves the live session of a user.
func (r *SessionRepository) GetByUserID(ctx context.Context, userID ulid.ULID) (*auth.Session, error) {
	var (
		idStr     string
		tokenHash string
		expiresAt time.Time
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, token_hash, expires_at, created_at
		FROM sessions
		WHERE user_id = $1
	`, userID.String()).Scan(&idStr, &tokenHash, &expiresAt, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("user_id", idStr).
			Wrap(err)
	}
	return &auth.Session{
		UserID:    id,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Delete removes the session of a user.
func (r *SessionRepository) Delete(ctx context.Context, userID ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
