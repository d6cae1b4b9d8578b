// Package metrics exposes a Prometheus collector for the pipeline core:
// one struct field per series, built through promauto.With(registry), and
// a handful of Record*/Observe* methods covering chunk, run, and
// per-stage series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the process's pipeline metric series.
type Collector struct {
	chunksProcessed   *prometheus.CounterVec
	bytesIn           prometheus.Counter
	bytesOut          prometheus.Counter
	stageDuration     *prometheus.HistogramVec
	reorderWindowSize prometheus.Gauge
	runsTotal         *prometheus.CounterVec
	integrityFailures prometheus.Counter
	startTime         time.Time
}

// NewCollector registers the pipeline's series against registry. Passing a
// fresh *prometheus.Registry (rather than the global default) keeps tests
// isolated rather than polluting the global default registry.
func NewCollector(registry *prometheus.Registry) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		chunksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adapipe_chunks_processed_total",
			Help: "Chunks committed to the writer, by direction (forward/inverse).",
		}, []string{"direction"}),
		bytesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "adapipe_bytes_in_total",
			Help: "Total bytes read from run sources.",
		}),
		bytesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "adapipe_bytes_out_total",
			Help: "Total bytes committed to run sinks.",
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adapipe_stage_duration_seconds",
			Help:    "Per-chunk stage processing latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage_kind"}),
		reorderWindowSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adapipe_reorder_window_depth",
			Help: "Current depth of the executor's reorder window.",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adapipe_runs_total",
			Help: "Completed runs, by outcome (success/error kind).",
		}, []string{"outcome"}),
		integrityFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "adapipe_integrity_failures_total",
			Help: "Runs that failed with an integrity error.",
		}),
		startTime: time.Now(),
	}
}

// RecordChunk increments the chunk counter for direction ("forward" or
// "inverse") and adds n bytes to the in/out counters.
func (c *Collector) RecordChunk(direction string, bytesIn, bytesOut int) {
	c.chunksProcessed.WithLabelValues(direction).Inc()
	c.bytesIn.Add(float64(bytesIn))
	c.bytesOut.Add(float64(bytesOut))
}

// ObserveStageDuration records one stage invocation's latency.
func (c *Collector) ObserveStageDuration(stageKind string, d time.Duration) {
	c.stageDuration.WithLabelValues(stageKind).Observe(d.Seconds())
}

// SetReorderWindowDepth reports the writer's current reorder window size.
func (c *Collector) SetReorderWindowDepth(n int) {
	c.reorderWindowSize.Set(float64(n))
}

// RecordRunOutcome increments the run counter for the given outcome label
// ("success" or an errs.Kind string).
func (c *Collector) RecordRunOutcome(outcome string) {
	c.runsTotal.WithLabelValues(outcome).Inc()
	if outcome == "integrity_failure" {
		c.integrityFailures.Inc()
	}
}

// Uptime reports how long this collector has been alive.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}
