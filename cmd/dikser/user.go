// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/content"
)

// NewUserCmd creates the user command group.
func NewUserCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user; the password is read from the first line of stdin",
		Example: `  printf 'correct horse\n' | dikser user add alice`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				user, err := a.auth.CreateUser(ctx, args[0], password)
				if err != nil {
					return err
				}
				cmd.Printf("Created user %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	})
	return cmd
}

// NewRelationshipCmd creates the relationship command group.
func NewRelationshipCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relationship",
		Aliases: []string{"rel"},
		Short:   "Manage relationships between users",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "link USERNAME USERNAME",
		Short: "Create an active relationship between two users without one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rel, err := linkPartners(ctx, a.users, a.relationships, args[0], args[1], time.Now().UTC())
				if err != nil {
					return err
				}
				cmd.Printf("Linked %s and %s in relationship %s\n", args[0], args[1], rel.ID)
				return nil
			})
		},
	})
	return cmd
}

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.auth.PurgeExpiredSessions(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("Purged %d expired sessions\n", n)
				return nil
			})
		},
	})
	return cmd
}

// withApp loads config, connects, runs fn and disconnects.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return "", oops.Code("PASSWORD_MISSING").Errorf("no password on stdin")
	}
	password := strings.TrimRight(scanner.Text(), "\r")
	if password == "" {
		return "", oops.Code("PASSWORD_MISSING").Errorf("password cannot be empty")
	}
	return password, nil
}

type userFinder interface {
	GetByUsername(ctx context.Context, username string) (*auth.User, error)
}

type relationshipLinker interface {
	Link(ctx context.Context, rel *content.Relationship, partners ...ulid.ULID) error
}

// linkPartners creates an active relationship holding both users. The
// relationship and both links are written together or not at all.
func linkPartners(ctx context.Context, users userFinder, rels relationshipLinker, first, second string, now time.Time) (*content.Relationship, error) {
	if strings.EqualFold(first, second) {
		return nil, oops.Code("RELATIONSHIP_INVALID").Errorf("a user cannot partner with themselves")
	}
	partners := make([]*auth.User, 0, 2)
	for _, name := range []string{first, second} {
		u, err := users.GetByUsername(ctx, name)
		if err != nil {
			return nil, oops.With("username", name).Wrap(err)
		}
		if u.HasRelationship() {
			return nil, oops.Code("RELATIONSHIP_EXISTS").
				With("username", name).
				Errorf("%s is already in relationship %s", name, u.RelationshipID)
		}
		partners = append(partners, u)
	}

	rel := &content.Relationship{
		ID:        ulid.Make(),
		Status:    content.RelationshipActive,
		CreatedAt: now,
	}
	if err := rels.Link(ctx, rel, partners[0].ID, partners[1].ID); err != nil {
		return nil, oops.With("first", first).With("second", second).Wrap(err)
	}
	for _, u := range partners {
		rel.Partners = append(rel.Partners, content.UserSummary{ID: u.ID, Username: u.Username})
	}
	return rel, nil
}
