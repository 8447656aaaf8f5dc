// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session is the single live credential of a user. It is keyed by user id:
// storing a new session for a user replaces the previous one.
type Session struct {
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a validated Session for the given plaintext token.
// Only the token's hash is kept.
func NewSession(userID ulid.ULID, token string, expiresAt, now time.Time) (*Session, error) {
	if userID.IsZero() {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &Session{
		UserID:    userID,
		TokenHash: HashSessionToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// IsExpiredAt returns true if the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// HashSessionToken computes the hex SHA256 of a token for storage.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks a plaintext token against a stored hash in
// constant time.
func VerifySessionToken(token, hash string) (bool, error) {
	if token == "" {
		return false, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if hash == "" {
		return false, oops.Code("SESSION_HASH_EMPTY").Errorf("stored hash cannot be empty")
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1, nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Upsert stores the session, replacing any existing session for the user.
	Upsert(ctx context.Context, session *Session) error

	// GetByUserID retrieves the live session of a user.
	GetByUserID(ctx context.Context, userID ulid.ULID) (*Session, error)

	// Delete removes the session of a user.
	Delete(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes sessions expired before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
