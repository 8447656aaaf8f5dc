// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package api

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dikser/dikser/internal/clock"
	"github.com/dikser/dikser/internal/observability"
)

// Login limiter defaults.
const (
	DefaultLoginBurst      = 10
	DefaultLoginRate       = 0.2
	DefaultCleanupInterval = 5 * time.Minute
	DefaultPeerMaxAge      = time.Hour
)

// LimiterConfig configures a LoginLimiter.
type LimiterConfig struct {
	// Burst is the number of attempts a client may make back to back.
	Burst int
	// Rate is the refill rate in attempts per second.
	Rate float64
	// CleanupInterval defaults to DefaultCleanupInterval.
	CleanupInterval time.Duration
	// PeerMaxAge is how long an idle client is remembered. Defaults to
	// DefaultPeerMaxAge.
	PeerMaxAge time.Duration
	// Clock defaults to the real clock.
	Clock clock.Clock
	// Metrics may be nil.
	Metrics *observability.Metrics
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// LoginLimiter throttles login attempts per client address with a token
// bucket. It is safe for concurrent use. Close stops the cleanup goroutine.
type LoginLimiter struct {
	mu      sync.Mutex
	peers   map[string]*bucket
	burst   float64
	rate    float64
	maxAge  time.Duration
	clock   clock.Clock
	metrics *observability.Metrics

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewLoginLimiter creates a limiter and starts its cleanup loop.
func NewLoginLimiter(cfg LimiterConfig) *LoginLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultLoginBurst
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultLoginRate
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := cfg.PeerMaxAge
	if maxAge <= 0 {
		maxAge = DefaultPeerMaxAge
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	l := &LoginLimiter{
		peers:   make(map[string]*bucket),
		burst:   float64(burst),
		rate:    rate,
		maxAge:  maxAge,
		clock:   clk,
		metrics: cfg.Metrics,
		stop:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.cleanupLoop(interval)
	return l
}

// Allow consumes one attempt for peer. When the bucket is empty it returns
// false and the wait until the next attempt is available.
func (l *LoginLimiter) Allow(peer string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.peers[peer]
	if !ok {
		b = &bucket{tokens: l.burst, lastCheck: now}
		l.peers[peer] = b
		l.metrics.SetLimiterPeers(len(l.peers))
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.burst, b.tokens+elapsed*l.rate)
	}
	b.lastCheck = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// Peers returns the number of tracked clients.
func (l *LoginLimiter) Peers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.peers)
}

// Cleanup forgets clients idle for longer than maxAge.
func (l *LoginLimiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := l.clock.Now().Add(-maxAge)
	for peer, b := range l.peers {
		if b.lastCheck.Before(threshold) {
			delete(l.peers, peer)
		}
	}
	l.metrics.SetLimiterPeers(len(l.peers))
}

func (l *LoginLimiter) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Cleanup(l.maxAge)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *LoginLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
	l.wg.Wait()
}

// peerOf keys a request by the remote host without its port.
func peerOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
