package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests              *prometheus.CounterVec
	StageLatency          *prometheus.HistogramVec
	UpstreamErrors        *prometheus.CounterVec
	DegradedResults       *prometheus.CounterVec
	UploadCleanupFailures prometheus.Counter

	gatherer prometheus.Gatherer
	stages   *stageWindow
}

// NewMetrics registers instruments on the default Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry registers instruments on reg and serves them from gatherer.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Latency of each pipeline stage in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"stage"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Collaborator errors by provider and code.",
		}, []string{"provider", "code"}),
		DegradedResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_results_total",
			Help:      "Placeholder substitutions by kind.",
		}, []string{"kind"}),
		UploadCleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_cleanup_failures_total",
			Help:      "Temporary uploads that could not be removed.",
		}),
		gatherer: gatherer,
		stages:   newStageWindow(256),
	}
}

func (m *Metrics) ObserveRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.StageLatency.WithLabelValues(stage).Observe(ms)
	m.stages.Observe(stage, ms)
}

func (m *Metrics) ObserveUpstreamError(provider, code string) {
	if m == nil {
		return
	}
	m.UpstreamErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) ObserveDegraded(kind string) {
	if m == nil {
		return
	}
	m.DegradedResults.WithLabelValues(kind).Inc()
	m.stages.ObserveDegraded(kind)
}

func (m *Metrics) ObserveCleanupFailure() {
	if m == nil {
		return
	}
	m.UploadCleanupFailures.Inc()
}

// SetStageTargets installs the p95 latency budget of each timed stage.
func (m *Metrics) SetStageTargets(targets map[string]time.Duration) {
	if m == nil {
		return
	}
	m.stages.SetTargets(targets)
}

// SnapshotStages returns the rolling latency window.
func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.stages.Snapshot()
}

// Handler serves the Prometheus exposition for this metrics set.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
