// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dikser/dikser/internal/config"
	"github.com/dikser/dikser/internal/logging"
)

const serviceName = "dikser"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	envFiles   []string
}

// NewRootCmd creates the root command for the dikser CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "dikser",
		Short: "Dikser - share posts with everyone or just your partner",
		Long: `Dikser serves a small social content API: users sign in, publish
public posts or private posts tied to their relationship, and manage what
they have written.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/dikser/config.yaml)")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before resolving config")
	config.BindFlags(flags)

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewUserCmd(opts))
	cmd.AddCommand(NewRelationshipCmd(opts))
	cmd.AddCommand(NewSessionsCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))

	return cmd
}

// loadConfig resolves configuration for cmd, with its parsed flags applied.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		File:     o.configFile,
		EnvFiles: o.envFiles,
		Flags:    cmd.Flags(),
	})
	if err != nil {
		return nil, oops.With("operation", "load config").Wrap(err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and installs it as the slog
// default.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
