package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stalemap_scan_seconds",
		Help:    "Time spent building the dependency graph.",
		Buckets: prometheus.DefBuckets,
	})

	GraphFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stalemap_graph_files_total",
		Help: "Total number of files in the dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stalemap_graph_edges_total",
		Help: "Total number of import edges in the dependency graph.",
	})

	GraphCycles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stalemap_graph_cycles_total",
		Help: "Number of module-level dependency cycles detected.",
	})

	DirectStaleFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stalemap_stale_direct_total",
		Help: "Number of directly changed files in the last staleness run.",
	})

	PropagatedStaleFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stalemap_stale_propagated_total",
		Help: "Number of files reached by staleness propagation in the last run.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stalemap_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stalemap_watcher_events_total",
		Help: "Total number of file system change batches received by the watcher.",
	})
)
