// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

// Package api exposes the authentication and content services as a JSON
// HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/content"
	"github.com/dikser/dikser/internal/observability"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Authenticator is the subset of auth.Service the API needs.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Authenticated, error)
	ValidateToken(ctx context.Context, token string) (auth.Principal, error)
	Logout(ctx context.Context, userID ulid.ULID) error
}

// Posts is the subset of content.Service the API needs.
type Posts interface {
	CreatePost(ctx context.Context, caller auth.Principal, in content.CreatePostInput, attachment *content.CreateAttachmentInput) (*content.Post, error)
	ListPosts(ctx context.Context) ([]*content.Post, error)
	GetPost(ctx context.Context, id ulid.ULID) (*content.Post, error)
	UpdatePost(ctx context.Context, caller auth.Principal, in content.UpdatePostInput) (*content.Post, error)
	RemovePost(ctx context.Context, caller auth.Principal, id ulid.ULID) (*content.DeletionReceipt, error)
}

// Config wires a Server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Auth           Authenticator
	Posts          Posts
	// LoginLimiter throttles POST /api/auth/login per client. Nil disables
	// throttling. The caller owns it and closes it.
	LoginLimiter *LoginLimiter
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
	Logger *slog.Logger
}

// Server serves the API.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer validates cfg and builds the routing tree.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Auth == nil {
		return nil, oops.Code("API_CONFIG_INVALID").Errorf("authenticator is required")
	}
	if cfg.Posts == nil {
		return nil, oops.Code("API_CONFIG_INVALID").Errorf("posts service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/dikser/dikser/internal/api")
	}
	cors, err := newCORS(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	h := &handlers{
		auth:    cfg.Auth,
		posts:   cfg.Posts,
		limiter: cfg.LoginLimiter,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "api"),
	}
	return &Server{
		addr:    cfg.Addr,
		handler: h.routes(cors, cfg.Tracer),
		logger:  h.logger,
	}, nil
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and serves in the background. The returned channel receives
// a serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("API_ALREADY_RUNNING").Errorf("api server already running")
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("API_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
