// Package metrics exposes Prometheus collectors for image ingestion sessions.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anatolykoptev/go-imagegrab"
)

const namespace = "imagegrab"

// Metrics owns a private registry so tests and embedders can run several
// instances side by side.
type Metrics struct {
	registry        *prometheus.Registry
	candidates      *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram
	panics          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate images processed, by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Ingestion sessions, by result.",
		}, []string{"result"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time of one ingestion session.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_panics_total",
			Help:      "Panics recovered inside pipeline workers.",
		}, []string{"tag"}),
	}
	m.registry.MustRegister(
		m.candidates,
		m.sessions,
		m.sessionDuration,
		m.panics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCandidate matches imagegrab.Config.OnCandidate.
func (m *Metrics) ObserveCandidate(cr imagegrab.CandidateResult) {
	m.candidates.WithLabelValues(cr.Outcome.String()).Inc()
}

// ObservePanic matches imagegrab.Config.OnPanic and logs the panic value.
func (m *Metrics) ObservePanic(tag string, r any) {
	m.panics.WithLabelValues(tag).Inc()
	slog.Error("imagegrab: recovered panic", "tag", tag, "value", fmt.Sprint(r))
}

// ObserveSession records one finished session.
func (m *Metrics) ObserveSession(result string, d time.Duration) {
	m.sessions.WithLabelValues(result).Inc()
	m.sessionDuration.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
