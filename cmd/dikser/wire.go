// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package main

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/dikser/dikser/internal/auth"
	authpg "github.com/dikser/dikser/internal/auth/postgres"
	"github.com/dikser/dikser/internal/clock"
	"github.com/dikser/dikser/internal/config"
	"github.com/dikser/dikser/internal/content"
	contentpg "github.com/dikser/dikser/internal/content/postgres"
	"github.com/dikser/dikser/internal/store"
)

// app holds the database-backed services shared by the subcommands.
type app struct {
	pool          *pgxpool.Pool
	users         *authpg.UserRepository
	relationships *contentpg.RelationshipRepository
	auth          *auth.Service
	content       *content.Service
}

// openApp connects to the database and builds the services. signingKey may
// be nil for commands that never issue tokens.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, signingKey []byte) (*app, error) {
	if signingKey == nil {
		var err error
		if signingKey, err = ephemeralKey(); err != nil {
			return nil, err
		}
	}

	opts := store.DefaultConnectOptions
	if cfg.Database.MaxRetries > 0 {
		opts.MaxRetries = cfg.Database.MaxRetries
	}
	pool, err := store.OpenPool(ctx, cfg.Database.URL, opts, logger)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	users := authpg.NewUserRepository(pool)
	relationships := contentpg.NewRelationshipRepository(pool)

	issuer, err := auth.NewJWTIssuer(signingKey, cfg.Auth.Issuer, cfg.TokenTTL(), clk)
	if err != nil {
		pool.Close()
		return nil, err
	}
	authSvc, err := auth.NewAuthServiceWithLogger(
		users,
		authpg.NewSessionRepository(pool),
		auth.NewArgon2idHasher(),
		issuer,
		clk,
		logger.With("component", "auth"),
	)
	if err != nil {
		pool.Close()
		return nil, err
	}
	contentSvc, err := content.NewService(content.ServiceConfig{
		Posts:         contentpg.NewPostRepository(pool),
		Attachments:   contentpg.NewAttachmentRepository(pool),
		Relationships: relationships,
		Users:         users,
		Clock:         clk,
		Logger:        logger.With("component", "content"),
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		pool:          pool,
		users:         users,
		relationships: relationships,
		auth:          authSvc,
		content:       contentSvc,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// ephemeralKey signs nothing; admin commands need an issuer only to satisfy
// the auth service constructor.
func ephemeralKey() ([]byte, error) {
	key := make([]byte, auth.MinSigningKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, oops.Code("KEY_GENERATION_FAILED").Wrap(err)
	}
	return key, nil
}

// shutdownContext bounds graceful shutdown.
func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
