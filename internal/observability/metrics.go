// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
	OutcomeThrottled = "throttled"
)

// Metrics holds the application's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginsTotal     *prometheus.CounterVec
	PostOpsTotal    *prometheus.CounterVec
	LimiterPeers    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dikser_http_requests_total",
				Help: "HTTP API requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dikser_http_request_duration_seconds",
				Help:    "HTTP API request latency by route and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dikser_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		PostOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dikser_post_operations_total",
				Help: "Post create, update and remove calls by outcome",
			},
			[]string{"operation", "outcome"},
		),
		LimiterPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dikser_login_limiter_peers",
			Help: "Client addresses currently tracked by the login rate limiter",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.LoginsTotal, m.PostOpsTotal, m.LimiterPeers)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RecordLogin records a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordPostOperation records a post mutation.
func (m *Metrics) RecordPostOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.PostOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// SetLimiterPeers reports how many clients the login limiter tracks.
func (m *Metrics) SetLimiterPeers(n int) {
	if m == nil {
		return
	}
	m.LimiterPeers.Set(float64(n))
}
