// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/clock"
	"github.com/dikser/dikser/pkg/errutil"
)

// dummyPasswordHash is verified when a user doesn't exist so that response
// time does not reveal whether the username is known. It never matches.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Authenticated is the outcome of a successful login.
type Authenticated struct {
	User    *User
	Session *Session
	// Token is the plaintext credential; only its hash is stored.
	Token     string
	ExpiresAt time.Time
}

// Service authenticates users and manages their sessions.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	clock    clock.Clock
	logger   *slog.Logger
}

// NewAuthService creates a Service that logs to slog.Default.
func NewAuthService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, tokens TokenIssuer, clk clock.Clock) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, tokens, clk, slog.Default())
}

// NewAuthServiceWithLogger creates a Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, tokens TokenIssuer, clk clock.Clock, logger *slog.Logger) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	case sessions == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("sessions repository is required")
	case hasher == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	case tokens == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token issuer is required")
	case logger == nil:
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Authenticate verifies a username/password pair, issues a token and stores
// it as the user's only live session. Unknown usernames and wrong passwords
// fail identically.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Authenticated, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	switch {
	case lookupErr == nil:
		hash, err := s.users.GetPasswordHash(ctx, username)
		if err != nil {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get password hash").
				Wrap(err)
		}
		targetHash = hash
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	// Always verify, even for unknown users.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if lookupErr != nil {
		return nil, invalidCredentials(lookupErr)
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !valid {
		return nil, invalidCredentials(nil)
	}

	if s.hasher.NeedsUpgrade(targetHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	session, err := NewSession(user.ID, token, expiresAt, s.clock.Now())
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}
	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return &Authenticated{
		User:      user,
		Session:   session,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// CreateUser validates and stores a new user with a freshly hashed
// password. A duplicate username is a BadRequest.
func (s *Service) CreateUser(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, oops.Code("USER_CREATE_INVALID").
			Wrap(errutil.Tag(errutil.KindBadRequest, err.Error(), err))
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("USER_CREATE_INVALID").
			Wrap(errutil.Tag(errutil.KindBadRequest, err.Error(), err))
	}
	user, err := NewUser(username, hash, s.clock.Now())
	if err != nil {
		return nil, oops.Code("USER_CREATE_INVALID").
			Wrap(errutil.Tag(errutil.KindBadRequest, err.Error(), err))
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, oops.Code("USER_CREATE_FAILED").
				With("username", username).
				Wrap(errutil.Tag(errutil.KindBadRequest, ErrUsernameTaken.Error(), err))
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "persist user").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// IssueToken signs a token for user without touching any store.
func (s *Service) IssueToken(user *User) (string, time.Time, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_FAILED").Wrap(err)
	}
	return token, expiresAt, nil
}

// ValidateToken checks a bearer token and returns the caller. The token must
// verify, be unexpired, and still be the user's current session.
func (s *Service) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, oops.Code("SESSION_TOKEN_EMPTY").Wrap(errutil.Unauthorized("missing bearer token"))
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, oops.Code("SESSION_INVALID").
			Wrap(errutil.Tag(errutil.KindUnauthorized, "invalid or expired token", err))
	}
	userID, err := ulid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, oops.Code("SESSION_INVALID").
			Wrap(errutil.Tag(errutil.KindUnauthorized, "invalid or expired token", err))
	}

	session, err := s.sessions.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, oops.Code("SESSION_INVALID").
				With("user_id", userID.String()).
				Wrap(errutil.Tag(errutil.KindUnauthorized, "session has ended", err))
		}
		return Principal{}, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	match, err := VerifySessionToken(token, session.TokenHash)
	if err != nil || !match {
		return Principal{}, oops.Code("SESSION_SUPERSEDED").
			With("user_id", userID.String()).
			Wrap(errutil.Unauthorized("session has ended"))
	}
	if session.IsExpiredAt(s.clock.Now()) {
		return Principal{}, oops.Code("SESSION_EXPIRED").
			With("user_id", userID.String()).
			Wrap(errutil.Unauthorized("session has expired"))
	}

	return Principal{UserID: userID, Username: claims.Username}, nil
}

// Logout ends the user's session.
func (s *Service) Logout(ctx context.Context, userID ulid.ULID) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("SESSION_NOT_FOUND").
				With("user_id", userID.String()).
				Wrap(errutil.Tag(errutil.KindNotFound, "session not found", err))
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

// upgradeHash rehashes a legacy hash. Failures are logged; login proceeds.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, newHash)
	}
	if err != nil {
		errutil.LogError(s.logger, "password hash upgrade failed",
			oops.With("user_id", user.ID.String()).Wrap(err))
		return
	}
	user.PasswordHash = newHash
}

func invalidCredentials(cause error) error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		Wrap(errutil.Tag(errutil.KindUnauthorized, invalidCredentialsMessage, cause))
}
