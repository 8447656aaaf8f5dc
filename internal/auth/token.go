// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/clock"
)

// MinSigningKeyLength is the minimum HS256 key size in bytes.
const MinSigningKeyLength = 32

// Claims are the identity claims carried by an issued token.
type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies identity tokens.
type TokenIssuer interface {
	// Issue signs a token for user and returns it with its expiry.
	Issue(user *User) (string, time.Time, error)

	// Parse verifies signature, issuer and expiry and returns the claims.
	Parse(token string) (*Claims, error)
}

// JWTIssuer issues HS256 JWTs. For identical claims and a fixed clock the
// output is identical.
type JWTIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewJWTIssuer creates a JWTIssuer.
func NewJWTIssuer(key []byte, issuer string, ttl time.Duration, clk clock.Clock) (*JWTIssuer, error) {
	if len(key) < MinSigningKeyLength {
		return nil, oops.Code("TOKEN_KEY_INVALID").
			With("min", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").With("ttl", ttl.String()).Errorf("token ttl must be positive")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &JWTIssuer{key: key, issuer: issuer, ttl: ttl, clock: clk}, nil
}

// Issue signs a token encoding the user's id and username.
func (j *JWTIssuer) Issue(user *User) (string, time.Time, error) {
	now := j.clock.Now()
	expiresAt := now.Add(j.ttl)
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Parse verifies the token and returns its claims.
func (j *JWTIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return j.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		code := "TOKEN_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		return nil, oops.Code(code).Wrap(err)
	}
	if _, err := ulid.Parse(claims.UserID); err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("claim", "id").Wrap(err)
	}
	return claims, nil
}
