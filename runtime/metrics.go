package runtime

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warriorguo/graphflow/types"
)

const (
	outcomeSuccess     = "success"
	outcomeFailed      = "failed"
	outcomeTimeout     = "timeout"
	outcomeUnsupported = "unsupported"
)

type engineMetrics struct {
	nodeExecutions *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	groupSize      prometheus.Histogram
}

// newEngineMetrics registers its collectors on registerer. A nil registerer
// keeps them unregistered.
func newEngineMetrics(namespace string, registerer prometheus.Registerer) *engineMetrics {
	factory := promauto.With(registerer)

	return &engineMetrics{
		nodeExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Total number of node executions",
			},
			[]string{"kind", "outcome"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_execution_duration_seconds",
				Help:      "Node execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of workflow runs by final status",
			},
			[]string{"status"},
		),
		groupSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "parallel_group_size",
				Help:      "Number of nodes executed together in one group",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
	}
}

func (m *engineMetrics) observeNode(kind types.NodeKind, outcome string, elapsed time.Duration) {
	m.nodeExecutions.WithLabelValues(string(kind), outcome).Inc()
	m.nodeDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *engineMetrics) observeRun(status types.ExecutionStatus) {
	m.runs.WithLabelValues(string(status)).Inc()
}

func (m *engineMetrics) observeGroup(size int) {
	m.groupSize.Observe(float64(size))
}

func outcomeOf(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	kind, _ := types.KindOf(err)
	switch kind {
	case types.NodeTimeout:
		return outcomeTimeout
	case types.UnsupportedNodeType:
		return outcomeUnsupported
	default:
		return outcomeFailed
	}
}
