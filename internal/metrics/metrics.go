/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for KYC reviews and transaction checks.
type Metrics struct {
	// Transaction checks by outcome and verification level
	TransactDecisions *prometheus.CounterVec

	// Lifecycle transitions by source and target status
	Transitions *prometheus.CounterVec

	// Screening calls by provider and outcome
	Screenings *prometheus.CounterVec
	// Screening latency by provider
	ScreeningLatency *prometheus.HistogramVec

	// Records moved to expired by the sweep
	SweptExpired prometheus.Counter
}

// New registers the KYC metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransactDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nordlion_kyc_transact_decisions_total",
			Help: "Transaction eligibility checks by outcome and verification level",
		}, []string{"allowed", "level"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nordlion_kyc_transitions_total",
			Help: "KYC status transitions applied by reviewers or the expiry sweep",
		}, []string{"from", "to"}),

		Screenings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nordlion_kyc_screenings_total",
			Help: "Screening provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),

		ScreeningLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nordlion_kyc_screening_duration_seconds",
			Help:    "Duration of screening provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),

		SweptExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "nordlion_kyc_swept_expired_total",
			Help: "Approved records persisted as expired by the sweep",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered on the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) ObserveDecision(allowed bool, level string) {
	if m != nil {
		label := "false"
		if allowed {
			label = "true"
		}
		m.TransactDecisions.WithLabelValues(label, level).Inc()
	}
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) ObserveScreening(provider string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Screenings.WithLabelValues(provider, outcome).Inc()
	m.ScreeningLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveSwept(n int) {
	if m != nil && n > 0 {
		m.SweptExpired.Add(float64(n))
	}
}
