// Package metrics exposes the Prometheus collectors shared across the
// poller fleet, clipping pipeline, job broker, event bus, and browser pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog aggregator metrics.
var (
	CatalogRefreshTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipper_catalog_refresh_total",
			Help: "Total catalog refreshes performed",
		},
	)

	CatalogRefreshDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipper_catalog_refresh_duration_seconds",
			Help:    "Wall-clock duration of a full catalog refresh",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	CatalogStreamersLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipper_catalog_streamers_live",
			Help: "Number of streamers currently reported live in the catalog",
		},
	)

	AdapterFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipper_adapter_fetch_errors_total",
			Help: "Total adapter fetch failures by platform",
		},
		[]string{"platform"},
	)

	AdapterFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipper_adapter_fetch_duration_seconds",
			Help:    "Per-streamer adapter fetch duration by platform",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"platform"},
	)

	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipper_circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by platform and new state",
		},
		[]string{"platform", "state"},
	)
)

// Job pipeline metrics.
var (
	JobsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipper_jobs_created_total",
			Help: "Total jobs created by platform",
		},
		[]string{"platform"},
	)

	JobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipper_job_transitions_total",
			Help: "Total successful job state transitions by from/to state",
		},
		[]string{"from", "to"},
	)

	JobTransitionRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipper_job_transition_rejected_total",
			Help: "Total rejected job transitions (invalid_transition)",
		},
	)

	JobsByStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clipper_jobs_by_state",
			Help: "Current number of jobs in each state",
		},
		[]string{"state"},
	)

	JobStalledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipper_job_stalled_total",
			Help: "Total jobs force-transitioned to error by the stall watchdog",
		},
	)

	CaptureDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipper_capture_duration_seconds",
			Help:    "Wall-clock duration of segment capture runs",
			Buckets: []float64{10, 30, 60, 120, 240, 300},
		},
	)

	ClipExtractDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipper_clip_extract_duration_seconds",
			Help:    "Wall-clock duration of clip extraction runs",
			Buckets: []float64{1, 5, 10, 30, 60},
		},
	)

	UploadDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipper_upload_duration_seconds",
			Help:    "Wall-clock duration of clip uploads",
			Buckets: []float64{.5, 1, 5, 10, 30, 60},
		},
	)
)

// Event bus / websocket metrics, grounded on the teacher's broadcaster
// metrics (connected clients, slow-client drops).
var (
	EventBusConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipper_eventbus_connected_clients",
			Help: "Number of connected push-channel subscribers",
		},
	)

	EventBusSlowClientsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipper_eventbus_slow_clients_dropped_total",
			Help: "Total subscribers dropped for being too slow to drain",
		},
	)

	EventBusPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipper_eventbus_published_total",
			Help: "Total events published by kind",
		},
		[]string{"kind"},
	)
)

// Browser pool metrics.
var (
	BrowserPoolActivePages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipper_browser_pool_active_pages",
			Help: "Number of currently acquired browser pages",
		},
	)

	BrowserPoolAcquireDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipper_browser_pool_acquire_duration_seconds",
			Help:    "Time spent waiting to acquire a browser page",
			Buckets: []float64{.01, .05, .1, .5, 1, 5},
		},
	)
)

// Garbage collector metrics.
var (
	GCFilesDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipper_gc_files_deleted_total",
			Help: "Total files deleted by the garbage collector by sweep kind",
		},
		[]string{"sweep"},
	)

	GCDiskUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipper_gc_disk_usage_ratio",
			Help: "Most recently observed disk usage ratio on the clips filesystem",
		},
	)
)
