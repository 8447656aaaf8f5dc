// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is an identity record. The session credential is not part of it;
// see Session.
type User struct {
	ID             ulid.ULID
	Username       string
	PasswordHash   string
	RelationshipID *ulid.ULID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRelationship reports whether the user references a relationship.
func (u *User) HasRelationship() bool {
	return u.RelationshipID != nil && !u.RelationshipID.IsZero()
}

// Principal returns the caller identity for u.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Username: u.Username}
}

// Principal is an authenticated caller.
type Principal struct {
	UserID   ulid.ULID
	Username string
}

// NewUser creates a validated User.
func NewUser(username, passwordHash string, now time.Time) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername validates a username:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// UserRepository is the credential store.
type UserRepository interface {
	// Create stores a new user. Returns ErrUsernameTaken on a duplicate username.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetPasswordHash retrieves only the stored hash for a username.
	GetPasswordHash(ctx context.Context, username string) (string, error)

	// UpdatePassword replaces the stored hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
