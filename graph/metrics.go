package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus instrumentation for scheduler and runner
// activity, namespaced "weavegraph". All methods are no-ops while
// disabled so call sites don't need to guard them.
type Metrics struct {
	inflightNodes prometheus.Gauge
	queueDepth    prometheus.Gauge

	stepLatency *prometheus.HistogramVec

	nodeRuns       *prometheus.CounterVec
	mergeConflicts *prometheus.CounterVec
	checkpointOps  *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers weavegraph's metrics with registry (the global
// registerer if nil) and returns an enabled collector.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	m := &Metrics{enabled: true}

	m.inflightNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "weavegraph",
		Name:      "inflight_nodes",
		Help:      "Nodes currently executing within the active superstep",
	})

	m.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "weavegraph",
		Name:      "frontier_depth",
		Help:      "Size of the current frontier awaiting the next superstep",
	})

	m.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "weavegraph",
		Name:      "node_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"session_id", "node_id", "status"})

	m.nodeRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weavegraph",
		Name:      "node_runs_total",
		Help:      "Node executions by outcome",
	}, []string{"session_id", "node_id", "status"})

	m.mergeConflicts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weavegraph",
		Name:      "barrier_merge_conflicts_total",
		Help:      "Reducer application failures detected during barrier merge",
	}, []string{"session_id", "channel"})

	m.checkpointOps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weavegraph",
		Name:      "checkpoint_operations_total",
		Help:      "Checkpoint backend operations by outcome",
	}, []string{"op", "status"})

	return m
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// RecordNodeRun observes a single node's execution latency and outcome.
func (m *Metrics) RecordNodeRun(sessionID string, nodeID NodeKind, latency time.Duration, status string) {
	if m == nil || !m.isEnabled() {
		return
	}
	id := nodeID.Encode()
	m.stepLatency.WithLabelValues(sessionID, id, status).Observe(float64(latency.Milliseconds()))
	m.nodeRuns.WithLabelValues(sessionID, id, status).Inc()
}

// SetInflightNodes reports the number of nodes currently executing.
func (m *Metrics) SetInflightNodes(count int) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.inflightNodes.Set(float64(count))
}

// SetFrontierDepth reports the size of the frontier about to run.
func (m *Metrics) SetFrontierDepth(depth int) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// IncrementMergeConflicts records a reducer failure during barrier
// application for the given channel.
func (m *Metrics) IncrementMergeConflicts(sessionID string, channel ChannelKind) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.mergeConflicts.WithLabelValues(sessionID, channel.String()).Inc()
}

// IncrementCheckpointOp records a checkpoint backend call, op being one
// of "save", "save_with_concurrency_check", "load_latest", or
// "list_sessions", and status "ok" or "error".
func (m *Metrics) IncrementCheckpointOp(op, status string) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.checkpointOps.WithLabelValues(op, status).Inc()
}

// Disable turns off metric recording.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable turns metric recording back on after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
