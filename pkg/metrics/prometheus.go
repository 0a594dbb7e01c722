// Package metrics provides Prometheus metrics for the calibration engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the calibration engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Ledger metrics
	snapshotsIngested prometheus.Counter
	snapshotsRejected prometheus.Counter
	ledgerSize        prometheus.Gauge

	// Calibration metrics
	baselineRecomputes    prometheus.Counter
	profileRecomputes     prometheus.Counter
	profileCacheHits      prometheus.Counter
	profileCacheMisses    prometheus.Counter
	singleflightCollapses prometheus.Counter
	recomputeLatency      prometheus.Histogram
	consensusComputations prometheus.Counter
	insufficientData      *prometheus.CounterVec
	readinessCompositions prometheus.Counter

	// Recalibration pipeline metrics
	recalibrationQueueSize prometheus.Gauge
	recalibrationEnqueued  prometheus.Counter
	recalibrationDropped   prometheus.Counter
	recalibrationProcessed prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "calibrate",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.snapshotsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_ingested_total",
		Help:      "Total number of assessment snapshots appended to the ledger",
	})

	m.snapshotsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_rejected_total",
		Help:      "Total number of snapshots rejected at ingestion (invalid keys or out-of-range values)",
	})

	m.ledgerSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_size",
		Help:      "Current number of snapshots in the assessment ledger",
	})

	m.baselineRecomputes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "baseline_recomputes_total",
		Help:      "Total number of contextual baseline recomputations",
	})

	m.profileRecomputes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profile_recomputes_total",
		Help:      "Total number of coach profile recomputations",
	})

	m.profileCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profile_cache_hits_total",
		Help:      "Total number of coach profile reads served from cache",
	})

	m.profileCacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "profile_cache_misses_total",
		Help:      "Total number of coach profile reads that required recomputation",
	})

	m.singleflightCollapses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "singleflight_collapses_total",
		Help:      "Total number of concurrent recomputation requests collapsed onto an in-flight one",
	})

	m.recomputeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recompute_latency_milliseconds",
		Help:      "Histogram of baseline/profile recomputation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.consensusComputations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consensus_computations_total",
		Help:      "Total number of multi-coach consensus computations",
	})

	m.insufficientData = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "insufficient_data_total",
			Help:      "Total number of typed insufficient-data/insufficient-raters results by surface",
		},
		[]string{"surface"},
	)

	m.readinessCompositions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "readiness_compositions_total",
		Help:      "Total number of readiness index compositions",
	})

	m.recalibrationQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalibration_queue_size",
		Help:      "Current number of pending recalibration jobs",
	})

	m.recalibrationEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalibration_jobs_enqueued_total",
		Help:      "Total number of recalibration jobs accepted by the queue",
	})

	m.recalibrationDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalibration_jobs_dropped_total",
		Help:      "Total number of recalibration jobs dropped by a full or closed queue",
	})

	m.recalibrationProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recalibration_jobs_processed_total",
		Help:      "Total number of recalibration jobs completed by workers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Package-level helpers against the global manager.

// RecordSnapshotIngested increments the ingestion counter.
func RecordSnapshotIngested() {
	if globalManager != nil && globalManager.enabled {
		globalManager.snapshotsIngested.Inc()
	}
}

// RecordSnapshotRejected increments the ingestion-rejection counter.
func RecordSnapshotRejected() {
	if globalManager != nil && globalManager.enabled {
		globalManager.snapshotsRejected.Inc()
	}
}

// UpdateLedgerSize sets the ledger size gauge.
func UpdateLedgerSize(size int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.ledgerSize.Set(float64(size))
	}
}

// RecordBaselineRecompute increments the baseline recompute counter.
func RecordBaselineRecompute() {
	if globalManager != nil && globalManager.enabled {
		globalManager.baselineRecomputes.Inc()
	}
}

// RecordProfileRecompute increments the profile recompute counter.
func RecordProfileRecompute() {
	if globalManager != nil && globalManager.enabled {
		globalManager.profileRecomputes.Inc()
	}
}

// RecordProfileCacheHit increments the profile cache hit counter.
func RecordProfileCacheHit() {
	if globalManager != nil && globalManager.enabled {
		globalManager.profileCacheHits.Inc()
	}
}

// RecordProfileCacheMiss increments the profile cache miss counter.
func RecordProfileCacheMiss() {
	if globalManager != nil && globalManager.enabled {
		globalManager.profileCacheMisses.Inc()
	}
}

// RecordSingleflightCollapse increments the collapse counter.
func RecordSingleflightCollapse() {
	if globalManager != nil && globalManager.enabled {
		globalManager.singleflightCollapses.Inc()
	}
}

// RecordRecomputeLatency observes one recomputation duration.
func RecordRecomputeLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.recomputeLatency.Observe(latencyMs)
	}
}

// RecordConsensusComputation increments the consensus counter.
func RecordConsensusComputation() {
	if globalManager != nil && globalManager.enabled {
		globalManager.consensusComputations.Inc()
	}
}

// RecordInsufficientData counts a typed not-enough-data result.
func RecordInsufficientData(surface string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.insufficientData.WithLabelValues(surface).Inc()
	}
}

// RecordReadinessComposition increments the readiness counter.
func RecordReadinessComposition() {
	if globalManager != nil && globalManager.enabled {
		globalManager.readinessCompositions.Inc()
	}
}

// UpdateRecalibrationQueueSize sets the pending-jobs gauge.
func UpdateRecalibrationQueueSize(size int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.recalibrationQueueSize.Set(float64(size))
	}
}

// RecordRecalibrationEnqueued increments the accepted-jobs counter.
func RecordRecalibrationEnqueued() {
	if globalManager != nil && globalManager.enabled {
		globalManager.recalibrationEnqueued.Inc()
	}
}

// RecordRecalibrationDropped increments the dropped-jobs counter.
func RecordRecalibrationDropped() {
	if globalManager != nil && globalManager.enabled {
		globalManager.recalibrationDropped.Inc()
	}
}

// RecordRecalibrationProcessed increments the completed-jobs counter.
func RecordRecalibrationProcessed() {
	if globalManager != nil && globalManager.enabled {
		globalManager.recalibrationProcessed.Inc()
	}
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration observes one HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// GetRegistry returns the custom registry backing the global manager, for
// exposing /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
