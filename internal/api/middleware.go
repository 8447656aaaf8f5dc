// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/logging"
	"github.com/dikser/dikser/pkg/errutil"
)

const (
	requestIDHeader = "X-Request-Id"
	bearerPrefix    = "Bearer "
	unmatchedRoute  = "unmatched"
)

type principalKey struct{}

// PrincipalFrom returns the authenticated caller stored by the bearer
// middleware.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	//nolint:wrapcheck // ResponseWriter passthrough
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument assigns a request id, opens a span and records the outcome once
// the mux has resolved the route pattern.
func (h *handlers) instrument(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, id)

		ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		ctx = logging.WithRequestID(ctx, id)

		rec := &statusRecorder{ResponseWriter: w}
		req := r.WithContext(ctx)
		next.ServeHTTP(rec, req)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		route := req.Pattern
		if route == "" {
			route = unmatchedRoute
		} else {
			span.SetName(route)
		}
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		elapsed := time.Since(start)
		h.metrics.ObserveRequest(route, r.Method, status, elapsed)
		h.logger.DebugContext(ctx, "request served",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	})
}

// cors answers preflight requests and decorates responses for allowed
// origins. Origins are glob patterns such as https://*.example.com.
type cors struct {
	origins []glob.Glob
}

func newCORS(patterns []string) (*cors, error) {
	c := &cors{origins: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.Code("API_CONFIG_INVALID").With("origin", p).Wrapf(err, "invalid allowed origin pattern")
		}
		c.origins = append(c.origins, g)
	}
	return c, nil
}

func (c *cors) allowed(origin string) bool {
	for _, g := range c.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

func (c *cors) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.allowed(origin) {
			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			hdr.Set("Access-Control-Expose-Headers", requestIDHeader)
			hdr.Set("Access-Control-Max-Age", "600")
		}
		if origin != "" {
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticated rejects requests without a valid bearer token and stores the
// caller in the request context.
func (h *handlers) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.writeError(w, r, oops.Code("AUTH_TOKEN_MISSING").Wrap(errutil.Unauthorized("missing bearer token")))
			return
		}
		principal, err := h.auth.ValidateToken(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("enduser.id", principal.UserID.String()))
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
