// Package metrics exposes Prometheus instrumentation for engine runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "codemap"

// Collector records engine activity. A nil *Collector is valid and records
// nothing.
type Collector struct {
	initDuration *prometheus.HistogramVec
	files        *prometheus.CounterVec
	elements     *prometheus.GaugeVec
	graphNodes   prometheus.Gauge
	graphEdges   prometheus.Gauge
	mappings     *prometheus.HistogramVec
	predictions  *prometheus.CounterVec
	initFailures prometheus.Counter
}

// New registers the codemap metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		// Labels: phase (index, semantic, graph, total)
		initDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "initialize_duration_seconds",
			Help:      "Time spent in each initialization phase",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),
		// Labels: outcome (indexed, failed, skipped)
		files: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "files_total",
			Help:      "Files visited by the indexer by outcome",
		}, []string{"outcome"}),
		// Labels: type (file, function, class)
		elements: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "elements",
			Help:      "Elements in the current index",
		}, []string{"type"}),
		graphNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Nodes in the current dependency graph",
		}),
		graphEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Edges in the current dependency graph",
		}),
		// Labels: confidence of the best result (high, medium, low, none)
		mappings: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mapping",
			Name:      "results",
			Help:      "Number of mapping results per task",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"confidence"}),
		// Labels: risk (high, medium, low)
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predict",
			Name:      "predictions_total",
			Help:      "Change predictions by risk level",
		}, []string{"risk"}),
		initFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "initialize_failures_total",
			Help:      "Initializations that returned an error",
		}),
	}
}

// ObservePhase records how long an initialization phase took.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.initDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// InitFailed counts a failed initialization.
func (c *Collector) InitFailed() {
	if c == nil {
		return
	}
	c.initFailures.Inc()
}

// IndexRun records the outcome counts and element totals of one index run.
func (c *Collector) IndexRun(indexed, failed, skipped, files, functions, classes int) {
	if c == nil {
		return
	}
	c.files.WithLabelValues("indexed").Add(float64(indexed))
	c.files.WithLabelValues("failed").Add(float64(failed))
	c.files.WithLabelValues("skipped").Add(float64(skipped))
	c.elements.WithLabelValues("file").Set(float64(files))
	c.elements.WithLabelValues("function").Set(float64(functions))
	c.elements.WithLabelValues("class").Set(float64(classes))
}

// GraphSize records the size of the current dependency graph.
func (c *Collector) GraphSize(nodes, edges int) {
	if c == nil {
		return
	}
	c.graphNodes.Set(float64(nodes))
	c.graphEdges.Set(float64(edges))
}

// Mapped records the result count of one task mapping, labeled by the
// confidence of the best result or "none".
func (c *Collector) Mapped(results int, best string) {
	if c == nil {
		return
	}
	if best == "" {
		best = "none"
	}
	c.mappings.WithLabelValues(best).Observe(float64(results))
}

// Predicted counts one change prediction.
func (c *Collector) Predicted(risk string) {
	if c == nil {
		return
	}
	c.predictions.WithLabelValues(risk).Inc()
}
