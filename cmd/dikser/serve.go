// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dikser/dikser/internal/api"
	"github.com/dikser/dikser/internal/observability"
	"github.com/dikser/dikser/internal/store"
)

// sessionPurgeInterval is how often expired sessions are deleted while
// serving.
const sessionPurgeInterval = time.Hour

type serveOptions struct {
	migrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the JSON API together with the metrics and health server.
The process stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts, so)
		},
	}
	cmd.Flags().BoolVar(&so.migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *globalOptions, so *serveOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireServe(); err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	if so.migrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, logger, []byte(cfg.Auth.JWTSecret))
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer a.Close()
	logger.Info("connected to database")

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, a.pool.Ping, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
	}

	var limiter *api.LoginLimiter
	if cfg.Server.LoginBurst > 0 {
		limiter = api.NewLoginLimiter(api.LimiterConfig{
			Burst:   cfg.Server.LoginBurst,
			Rate:    cfg.Server.LoginRate,
			Metrics: metrics,
		})
		defer limiter.Close()
	}

	apiServer, err := api.NewServer(api.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth:           a.auth,
		Posts:          a.content,
		LoginLimiter:   limiter,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		stopObservability(obsServer, cfg.ShutdownTimeout(), logger)
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer, cfg.ShutdownTimeout(), logger)
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)
	// Deferred after a.Close so it runs first: no purge may be in flight
	// once the pool closes.
	stopPurge := startSessionPurge(ctx, a.auth, sessionPurgeInterval, logger)
	defer stopPurge()

	cmd.Printf("Dikser API listening on %s\n", apiServer.Addr())
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := shutdownContext(cfg.ShutdownTimeout())
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer, cfg.ShutdownTimeout(), logger)

	logger.Info("shutdown complete")
	return nil
}

func stopObservability(s *observability.Server, timeout time.Duration, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := shutdownContext(timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("migrations applied")
	return nil
}

// monitorServerErrors cancels ctx when a server reports a serve error. It
// returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// sessionPurger is satisfied by *auth.Service.
type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// startSessionPurge runs purgeSessionsEvery in the background. The returned
// stop cancels the loop and waits for an in-flight purge to finish.
func startSessionPurge(ctx context.Context, p sessionPurger, interval time.Duration, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		purgeSessionsEvery(ctx, p, interval, logger)
	}()
	return func() {
		cancel()
		<-done
	}
}

// purgeSessionsEvery deletes expired sessions on every tick until ctx ends.
func purgeSessionsEvery(ctx context.Context, p sessionPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.WarnContext(ctx, "session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}
