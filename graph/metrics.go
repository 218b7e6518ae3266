package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine and pipeline counters via Prometheus.
//
// A nil *Metrics is valid and records nothing, so instrumentation can be
// left unwired in tests and small tools.
type Metrics struct {
	nodeLatency   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	researchRound prometheus.Counter
	revisionLoops *prometheus.CounterVec
	inflightTasks prometheus.Gauge
}

// NewMetrics registers the metric set on reg under the given namespace.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "researchflow"
	}
	factory := promauto.With(reg)
	return &Metrics{
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_latency_ms",
			Help:      "Node execution latency in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_retries_total",
			Help:      "Node retry attempts.",
		}, []string{"node_id"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "status"}),
		researchRound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_rounds_total",
			Help:      "Supervisor research rounds executed.",
		}),
		revisionLoops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revision_loops_total",
			Help:      "Validation-driven revision loops by stage.",
		}, []string{"stage"}),
		inflightTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "research_tasks_inflight",
			Help:      "Research tasks currently executing.",
		}),
	}
}

func (m *Metrics) observeNode(nodeID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(d) / float64(time.Millisecond))
}

func (m *Metrics) incRetry(nodeID string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(nodeID).Inc()
}

// IncToolCall records a tool invocation outcome ("ok" or "error").
func (m *Metrics) IncToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// IncResearchRound records one supervisor round.
func (m *Metrics) IncResearchRound() {
	if m == nil {
		return
	}
	m.researchRound.Inc()
}

// IncRevisionLoop records a validation failure that triggered a revision.
func (m *Metrics) IncRevisionLoop(stage string) {
	if m == nil {
		return
	}
	m.revisionLoops.WithLabelValues(stage).Inc()
}

// TaskStarted and TaskFinished bracket a research task for the inflight gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.inflightTasks.Inc()
}

// TaskFinished decrements the inflight task gauge.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.inflightTasks.Dec()
}
