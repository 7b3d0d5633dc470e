// Package metrics holds the prometheus collectors of rbcheck.
//
// Collectors register with the default registry on init. A batch check can
// expose them over HTTP with Serve or dump them once with WriteText.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CFGBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbcheck_cfg_builds_total",
		Help: "Total number of method bodies lowered to a CFG.",
	})

	CFGInstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcheck_cfg_instructions_total",
		Help: "Instructions emitted by the CFG builder, by instruction kind.",
	}, []string{"kind"})

	CFGBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rbcheck_cfg_blocks",
		Help:    "Basic blocks per CFG after finalization.",
		Buckets: prometheus.ExponentialBuckets(2, 2, 10),
	})

	CFGSendArgs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rbcheck_cfg_send_args",
		Help:    "Argument count of Send instructions.",
		Buckets: prometheus.LinearBuckets(0, 1, 8),
	})

	CFGBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rbcheck_cfg_build_seconds",
		Help:    "Time spent building and finalizing one CFG.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})

	Substitutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcheck_substitutions_total",
		Help: "Global state substitutions, by path (fast or slow).",
	}, []string{"path"})

	PipelineFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcheck_pipeline_files_total",
		Help: "Files processed by the pipeline, by phase.",
	}, []string{"phase"})

	PipelinePhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbcheck_pipeline_phase_seconds",
		Help:    "Wall time of a pipeline phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	Diagnostics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcheck_diagnostics_total",
		Help: "Diagnostics reported after strictness filtering, by code.",
	}, []string{"code"})

	SnapshotCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbcheck_snapshot_cache_total",
		Help: "Snapshot disk cache lookups, by result (hit, miss, error).",
	}, []string{"result"})
)
