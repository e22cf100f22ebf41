package taskengine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus instrumentation for engine runs: callback
// latency, halts, and errors, namespaced "taskengine_". Attach via
// WithMetrics; a nil *Metrics (the default) disables instrumentation
// entirely rather than recording into the global registry by accident.
//
// github.com/prometheus/client_golang is carried over from
// ethereum-go-ethereum's go.mod (the only repo in the pack that ships it) as
// a pull-based metrics surface alongside taskengine/emit's OTel push-based
// tracing; the counter/histogram/namespace shape is this engine's own,
// retargeted to the token/callback vocabulary it actually walks.
type Metrics struct {
	callbackLatency *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	haltsTotal      *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	callbackDepth   prometheus.Histogram
}

// NewMetrics registers the engine's metrics with registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		callbackLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskengine",
			Name:      "callback_latency_ms",
			Help:      "Duration of a single callback invocation in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"workflow_id", "status"}), // status: ok, transfer, error
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "tokens_processed_total",
			Help:      "Cumulative count of tokens advanced past by the outer loop",
		}, []string{"workflow_id"}),
		haltsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "halts_total",
			Help:      "Cumulative count of HaltProcessing transfers reaching the outer loop",
		}, []string{"workflow_id"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskengine",
			Name:      "errors_total",
			Help:      "Cumulative count of WorkflowError transfers and recovered panics",
		}, []string{"workflow_id"}),
		callbackDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskengine",
			Name:      "callback_depth",
			Help:      "Nesting depth of callback_pos when a callback executes",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
	}
}

func (m *Metrics) recordCallback(workflowID, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.callbackLatency.WithLabelValues(workflowID, status).Observe(float64(latency.Microseconds()) / 1000.0)
}

func (m *Metrics) recordDepth(depth int) {
	if m == nil {
		return
	}
	m.callbackDepth.Observe(float64(depth))
}

func (m *Metrics) recordToken(workflowID string) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(workflowID).Inc()
}

func (m *Metrics) recordHalt(workflowID string) {
	if m == nil {
		return
	}
	m.haltsTotal.WithLabelValues(workflowID).Inc()
}

func (m *Metrics) recordError(workflowID string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(workflowID).Inc()
}
