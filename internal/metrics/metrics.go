// Package metrics exposes corefs's runtime counters and gauges as
// Prometheus collectors, registered against the default registry on
// package init the way the teacher's own metrics packages do.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SectorsAllocated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corefs",
		Subsystem: "freemap",
		Name:      "sectors_allocated_total",
		Help:      "Sectors handed out by freemap.Map.Allocate.",
	})

	SectorsReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corefs",
		Subsystem: "freemap",
		Name:      "sectors_released_total",
		Help:      "Sectors returned via freemap.Map.Release.",
	})

	PageFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corefs",
		Subsystem: "vm",
		Name:      "page_faults_total",
		Help:      "Calls to frame.Engine.GetFrame that installed a new mapping.",
	})

	Evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corefs",
		Subsystem: "vm",
		Name:      "evictions_total",
		Help:      "Frames reclaimed by the clock algorithm.",
	})

	SwapWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "corefs",
		Subsystem: "vm",
		Name:      "swap_writes_total",
		Help:      "Pages written out to the swap device during eviction.",
	})

	FramesInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "corefs",
		Subsystem: "vm",
		Name:      "frames_in_use",
		Help:      "Physical frames currently holding a resident page.",
	})

	OpenInodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "corefs",
		Subsystem: "inode",
		Name:      "open_inodes",
		Help:      "Entries in the open-inode table.",
	})
)

func init() {
	prometheus.MustRegister(
		SectorsAllocated,
		SectorsReleased,
		PageFaults,
		Evictions,
		SwapWrites,
		FramesInUse,
		OpenInodes,
	)
}
