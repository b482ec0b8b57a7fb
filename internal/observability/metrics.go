// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voro/voro/internal/auth"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics contains the auth metrics. A nil *Metrics records nothing.
type Metrics struct {
	TokensIssued     prometheus.Counter
	TokenValidations *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	Registrations    *prometheus.CounterVec
	PasswordHash     *prometheus.HistogramVec
}

// NewMetrics creates and registers the auth metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voro_tokens_issued_total",
			Help: "Total number of session tokens issued",
		}),
		TokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voro_token_validations_total",
				Help: "Total number of token validations by result (success or rejection reason)",
			},
			[]string{"result"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voro_rate_limited_total",
				Help: "Total number of requests refused by a rate limit, by route",
			},
			[]string{"route"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voro_registrations_total",
				Help: "Total number of registration attempts by result",
			},
			[]string{"result"},
		),
		PasswordHash: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voro_password_hash_seconds",
				Help:    "Duration of password hash and verify calls by algorithm",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"algorithm"},
		),
	}

	reg.MustRegister(m.TokensIssued, m.TokenValidations, m.RateLimited, m.Registrations, m.PasswordHash)
	return m
}

// RecordTokenIssued counts one issued token.
func (m *Metrics) RecordTokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssued.Inc()
}

// RecordValidation counts the outcome of TokenValidator.Validate: success,
// the rejection reason, or error when the check itself failed.
func (m *Metrics) RecordValidation(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
		if r := auth.RejectionOf(err); r != auth.RejectNone {
			result = string(r)
		}
	}
	m.TokenValidations.WithLabelValues(result).Inc()
}

// RecordRateLimited counts a refused request.
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// RecordRegistration counts a registration attempt.
func (m *Metrics) RecordRegistration(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

// ObserveHash matches auth.HashObserver.
func (m *Metrics) ObserveHash(alg auth.Algorithm, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PasswordHash.WithLabelValues(string(alg)).Observe(elapsed.Seconds())
}
