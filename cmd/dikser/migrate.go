// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dikser/dikser/internal/store"
)

// migrator is the part of *store.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

type migratorFactory func(databaseURL string) (migrator, error)

func defaultMigratorFactory(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd(opts *globalOptions) *cobra.Command {
	return newMigrateCmd(opts, defaultMigratorFactory)
}

func newMigrateCmd(opts *globalOptions, factory migratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back and inspect the embedded PostgreSQL migrations.`,
	}

	run := func(fn func(cmd *cobra.Command, m migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			m, err := factory(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
				}
			}()
			return fn(cmd, m, args)
		}
	}

	up := &cobra.Command{
		Use:   "up [N]",
		Short: "Apply all pending migrations, or the next N",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(cmd *cobra.Command, m migrator, args []string) error {
			if len(args) == 1 {
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				if err := m.Steps(n); err != nil {
					return oops.With("operation", "migrate up").Wrap(err)
				}
			} else if err := m.Up(); err != nil {
				return oops.With("operation", "migrate up").Wrap(err)
			}
			return printVersion(cmd, m)
		}),
	}

	var all bool
	down := &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back the last N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(cmd *cobra.Command, m migrator, args []string) error {
			if all {
				if len(args) > 0 {
					return oops.Code("INVALID_ARGS").Errorf("--all does not take a step count")
				}
				if err := m.Down(); err != nil {
					return oops.With("operation", "migrate down").Wrap(err)
				}
				return printVersion(cmd, m)
			}
			n := 1
			if len(args) == 1 {
				var err error
				if n, err = parseSteps(args[0]); err != nil {
					return err
				}
			}
			if err := m.Steps(-n); err != nil {
				return oops.With("operation", "migrate down").Wrap(err)
			}
			return printVersion(cmd, m)
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m migrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			printStatus(cmd, st)
			return nil
		}),
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, m migrator, _ []string) error {
			return printVersion(cmd, m)
		}),
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations, clearing the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, m migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return oops.With("operation", "migrate force").Wrap(err)
			}
			return printVersion(cmd, m)
		}),
	}

	cmd.AddCommand(up, down, status, versionCmd, force)
	return cmd
}

func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Errorf("step count must be a positive integer, got %q", s)
	}
	return n, nil
}

func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be a non-negative integer, got %q", s)
	}
	return v, nil
}

func printVersion(cmd *cobra.Command, m migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Println(formatVersion(v, dirty))
	return nil
}

func formatVersion(v uint, dirty bool) string {
	name, _ := store.MigrationName(v)
	if name == "" {
		name = fmt.Sprintf("%06d", v)
	}
	if v == 0 {
		name = "none"
	}
	out := "schema version: " + name
	if dirty {
		out += " (dirty)"
	}
	return out
}

func printStatus(cmd *cobra.Command, st store.MigrationStatus) {
	cmd.Println(formatVersion(st.Version, st.Dirty))
	for _, v := range st.Applied {
		name, _ := store.MigrationName(v)
		cmd.Printf("  [x] %s\n", name)
	}
	for _, v := range st.Pending {
		name, _ := store.MigrationName(v)
		cmd.Printf("  [ ] %s\n", name)
	}
}
