// Package metrics exposes quiz session activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memory_palace"

// Metrics implements app.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	attempts          *prometheus.CounterVec
	evalFailures      *prometheus.CounterVec
	evalLatency       prometheus.Histogram
	activeSessions    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Quiz sessions completed, by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Recorded quiz attempts, by result.",
		}, []string{"result"}),
		evalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_failures_total",
			Help:      "Answer evaluations that produced no verdict, by kind.",
		}, []string{"kind"}),
		evalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Answer evaluator latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Quiz sessions currently in progress.",
		}),
	}
	m.registry.MustRegister(
		m.sessionsStarted,
		m.sessionsCompleted,
		m.attempts,
		m.evalFailures,
		m.evalLatency,
		m.activeSessions,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) SessionStarted() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionCompleted(aborted bool) {
	outcome := "finished"
	if aborted {
		outcome = "aborted"
	}
	m.sessionsCompleted.WithLabelValues(outcome).Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) AttemptRecorded(correct, skipped bool) {
	result := "incorrect"
	switch {
	case skipped:
		result = "skipped"
	case correct:
		result = "correct"
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) EvaluationObserved(d time.Duration) {
	m.evalLatency.Observe(d.Seconds())
}

func (m *Metrics) EvaluationFailed(kind string) {
	m.evalFailures.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
