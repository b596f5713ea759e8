// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package metrics holds the Prometheus collectors for the batch pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blogbatch"

// Enrichment outcomes.
const (
	EnrichOK      = "ok"
	EnrichEmpty   = "empty"
	EnrichError   = "error"
	EnrichSkipped = "skipped"
)

// Generation attempt outcomes.
const (
	AttemptOK          = "ok"
	AttemptRateLimited = "rate_limited"
	AttemptTransport   = "transport"
	AttemptRejected    = "rejected"
)

type Metrics struct {
	registry *prometheus.Registry

	Rows               *prometheus.CounterVec
	RowDuration        prometheus.Histogram
	Enrichments        *prometheus.CounterVec
	GenerationAttempts *prometheus.CounterVec
	PersistFailures    prometheus.Counter
	Runs               *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows finished by the batch pipeline, by final status.",
		}, []string{"status"}),
		RowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Time spent driving one row through enrich, generate and persist.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		Enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Scrape service calls, by outcome.",
		}, []string{"outcome"}),
		GenerationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Calls to the generation backend, by outcome.",
		}, []string{"outcome"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Generated posts that could not be saved.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs finished, by final status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.Rows, m.RowDuration, m.Enrichments, m.GenerationAttempts, m.PersistFailures, m.Runs)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RowDone(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(status).Inc()
	m.RowDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Enrichment(outcome string) {
	if m == nil {
		return
	}
	m.Enrichments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GenerationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.GenerationAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) RunDone(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}
