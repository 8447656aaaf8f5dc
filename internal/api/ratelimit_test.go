// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dikser/dikser/internal/api"
	"github.com/dikser/dikser/internal/auth"
	"github.com/dikser/dikser/internal/clock"
	"github.com/dikser/dikser/internal/observability"
)

func newLimiter(t *testing.T, cfg api.LimiterConfig) *api.LoginLimiter {
	t.Helper()
	l := api.NewLoginLimiter(cfg)
	t.Cleanup(l.Close)
	return l
}

func TestLoginLimiter_BurstThenRefill(t *testing.T) {
	clk := clock.NewFixed(testNow)
	l := newLimiter(t, api.LimiterConfig{Burst: 3, Rate: 0.5, Clock: clk})

	for i := range 3 {
		ok, wait := l.Allow("192.0.2.1")
		require.True(t, ok, "attempt %d", i+1)
		assert.Zero(t, wait)
	}

	ok, wait := l.Allow("192.0.2.1")
	assert.False(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	clk.Advance(2 * time.Second)
	ok, _ = l.Allow("192.0.2.1")
	assert.True(t, ok)
}

func TestLoginLimiter_PeersAreIndependent(t *testing.T) {
	l := newLimiter(t, api.LimiterConfig{Burst: 1, Rate: 0.1, Clock: clock.NewFixed(testNow)})

	ok, _ := l.Allow("192.0.2.1")
	require.True(t, ok)
	ok, _ = l.Allow("192.0.2.1")
	assert.False(t, ok)

	ok, _ = l.Allow("192.0.2.2")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Peers())
}

func TestLoginLimiter_RefillIsCapped(t *testing.T) {
	clk := clock.NewFixed(testNow)
	l := newLimiter(t, api.LimiterConfig{Burst: 2, Rate: 1, Clock: clk})

	clk.Advance(time.Hour)
	for range 2 {
		ok, _ := l.Allow("192.0.2.1")
		require.True(t, ok)
	}
	ok, _ := l.Allow("192.0.2.1")
	assert.False(t, ok)
}

func TestLoginLimiter_CleanupForgetsIdlePeers(t *testing.T) {
	clk := clock.NewFixed(testNow)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	l := newLimiter(t, api.LimiterConfig{Clock: clk, Metrics: metrics})

	l.Allow("192.0.2.1")
	clk.Advance(30 * time.Minute)
	l.Allow("192.0.2.2")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LimiterPeers), 0)

	clk.Advance(45 * time.Minute)
	l.Cleanup(time.Hour)

	assert.Equal(t, 1, l.Peers())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LimiterPeers), 0)
}

func TestLoginLimiter_CloseTwice(t *testing.T) {
	l := api.NewLoginLimiter(api.LimiterConfig{CleanupInterval: time.Millisecond})
	l.Close()
	assert.NotPanics(t, l.Close)
}

func TestLogin_Throttled(t *testing.T) {
	authn := &mockAuth{}
	user := &auth.User{ID: ulid.Make(), Username: "alice"}
	authn.On("Authenticate", mock.Anything, "alice", "s3cret").Return(&auth.Authenticated{
		User:      user,
		Token:     "tok",
		ExpiresAt: testNow.Add(time.Hour),
	}, nil).Once()
	t.Cleanup(func() { authn.AssertExpectations(t) })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	srv, err := api.NewServer(api.Config{
		Auth:         authn,
		Posts:        &mockPosts{},
		LoginLimiter: newLimiter(t, api.LimiterConfig{Burst: 1, Rate: 0.25, Clock: clock.NewFixed(testNow)}),
		Metrics:      metrics,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	login := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"alice","password":"s3cret"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, login().Code)

	rec := login()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "too many login attempts", body["error"])
	assert.Equal(t, "LOGIN_THROTTLED", body["code"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(observability.OutcomeThrottled)), 0)
}
