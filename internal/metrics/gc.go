package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GCMetrics holds metrics for the incremental collector.
type GCMetrics struct {
	// Cycles counts completed GC cycles, including empty ones.
	Cycles prometheus.Counter

	// FramesScanned counts frames inspected across all cycles.
	FramesScanned prometheus.Counter

	// FramesCollected counts frames whose local detail was dropped.
	FramesCollected prometheus.Counter

	// FramesProtected counts protection hits across all cycles.
	FramesProtected prometheus.Counter

	// CycleDuration observes cycle wall time in seconds.
	CycleDuration prometheus.Histogram

	// LastRunTime is the Unix timestamp of the most recent cycle.
	LastRunTime prometheus.Gauge
}

// NewGCMetrics creates and registers GC metrics with the default registry.
func NewGCMetrics() *GCMetrics {
	return newGCMetrics(nil)
}

// NewGCMetricsWithRegistry creates GC metrics registered with a custom
// registry. Useful for testing to avoid conflicts with the default registry.
func NewGCMetricsWithRegistry(reg prometheus.Registerer) *GCMetrics {
	return newGCMetrics(reg)
}

func newGCMetrics(reg prometheus.Registerer) *GCMetrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &GCMetrics{
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cairn",
			Subsystem: "gc",
			Name:      "cycles_total",
			Help:      "Number of completed GC cycles, including cycles that collected nothing.",
		}),
		FramesScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cairn",
			Subsystem: "gc",
			Name:      "frames_scanned_total",
			Help:      "Number of frames inspected across all cycles.",
		}),
		FramesCollected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cairn",
			Subsystem: "gc",
			Name:      "frames_collected_total",
			Help:      "Number of frames whose local detail was dropped.",
		}),
		FramesProtected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cairn",
			Subsystem: "gc",
			Name:      "frames_protected_total",
			Help:      "Number of protection hits (active frames or ancestors of active frames).",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cairn",
			Subsystem: "gc",
			Name:      "cycle_duration_seconds",
			Help:      "GC cycle wall time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		LastRunTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cairn",
			Subsystem: "gc",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the most recent GC cycle.",
		}),
	}
}
