package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const metricsNamespace = "flowengine"

// Metrics records run and node execution counters and latencies on its own
// registry.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	runDuration  *prometheus.HistogramVec
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		runsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_started_total",
				Help:      "Total number of flow runs started",
			},
			[]string{"flow_id"},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_finished_total",
				Help:      "Total number of flow runs that reached a terminal state",
			},
			[]string{"status"},
		),
		runsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "runs_active",
				Help:      "Number of flow runs currently executing",
			},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of flow runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"status"},
		),
		nodeRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "node_executions_total",
				Help:      "Total number of node executions",
			},
			[]string{"node_type", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "node_duration_seconds",
				Help:      "Duration of node executions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node_type"},
		),
	}
}

func (m *Metrics) RunStarted(flowID string) {
	m.runsStarted.WithLabelValues(flowID).Inc()
	m.runsActive.Inc()
}

func (m *Metrics) RunFinished(status domain.RunStatus, duration time.Duration) {
	m.runsFinished.WithLabelValues(string(status)).Inc()
	m.runsActive.Dec()
	m.runDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

func (m *Metrics) NodeFinished(nodeType domain.NodeType, status domain.NodeRunStatus, duration time.Duration) {
	m.nodeRuns.WithLabelValues(string(nodeType), string(status)).Inc()
	m.nodeDuration.WithLabelValues(string(nodeType)).Observe(duration.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
