// Package metrics provides Prometheus metrics for the convoy tracking core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Cache layer
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheErrors    *prometheus.CounterVec
	cacheLatency   prometheus.Histogram
	cacheEvictions prometheus.Counter

	// Durable layer
	durableLatency prometheus.Histogram
	durableErrors  *prometheus.CounterVec

	// Strategy dispatcher
	strategyReads  *prometheus.CounterVec
	strategyWrites *prometheus.CounterVec

	// Leaderboard updater
	engagementUpdates  prometheus.Counter
	engagementFailures prometheus.Counter
	rankUpdateRetries  prometheus.Counter
	updateLatency      prometheus.Histogram

	// Reconciliation
	reconcileQueued prometheus.Counter
	reconcileDepth  prometheus.Gauge

	// Notifications and invalidation
	notificationsPublished prometheus.Counter
	notificationsDropped   prometheus.Counter
	notifyQueueSize        prometheus.Gauge
	invalidations          *prometheus.CounterVec

	// Operational HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process health
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	systemGCPause     prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "convoytrack",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
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

	m.cacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Cache hits by entity kind",
	}, []string{"entity"})

	m.cacheMisses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Cache misses by entity kind",
	}, []string{"entity"})

	m.cacheErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_errors_total",
		Help:      "Cache layer errors by operation; these degrade, never surface",
	}, []string{"op"})

	m.cacheLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_latency_milliseconds",
		Help:      "Histogram of cache call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_evictions_total",
		Help:      "Keys evicted by write-around writes and the invalidation coordinator",
	})

	m.durableLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "durable_latency_milliseconds",
		Help:      "Histogram of durable store call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.durableErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "durable_errors_total",
		Help:      "Durable store errors by operation",
	}, []string{"op"})

	m.strategyReads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "strategy_reads_total",
		Help:      "Read executions by strategy name",
	}, []string{"strategy"})

	m.strategyWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "strategy_writes_total",
		Help:      "Write executions by strategy name",
	}, []string{"strategy"})

	m.engagementUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "engagement_updates_total",
		Help:      "Atomic leaderboard updates committed",
	})

	m.engagementFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "engagement_failures_total",
		Help:      "Atomic leaderboard updates rejected before the counter step",
	})

	m.rankUpdateRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_update_retries_total",
		Help:      "Score-set retries after the counter step already committed",
	})

	m.updateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "engagement_update_latency_milliseconds",
		Help:      "Histogram of full atomic update latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.reconcileQueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_enqueued_total",
		Help:      "Score sets queued for reconciliation after retry exhaustion",
	})

	m.reconcileDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_queue_depth",
		Help:      "Current depth of the reconciliation queue",
	})

	m.notificationsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_published_total",
		Help:      "Change notifications published by write strategies",
	})

	m.notificationsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_dropped_total",
		Help:      "Change notifications dropped on queue backpressure",
	})

	m.notifyQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_queue_size",
		Help:      "Current size of the change notification queue",
	})

	m.invalidations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invalidations_total",
		Help:      "Cache invalidations executed by the coordinator, by entity kind",
	}, []string{"entity"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Operational HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Operational HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Allocated heap bytes sampled from the runtime",
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current goroutine count",
	})

	m.systemGCPause = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level recording helpers backed by the global manager.

func RecordCacheHit(entity string)  { globalManager.cacheHits.WithLabelValues(entity).Inc() }
func RecordCacheMiss(entity string) { globalManager.cacheMisses.WithLabelValues(entity).Inc() }
func RecordCacheError(op string)    { globalManager.cacheErrors.WithLabelValues(op).Inc() }
func RecordCacheLatency(ms float64) { globalManager.cacheLatency.Observe(ms) }
func RecordCacheEviction()          { globalManager.cacheEvictions.Inc() }

func RecordDurableLatency(ms float64) { globalManager.durableLatency.Observe(ms) }
func RecordDurableError(op string)    { globalManager.durableErrors.WithLabelValues(op).Inc() }

func RecordStrategyRead(name string)  { globalManager.strategyReads.WithLabelValues(name).Inc() }
func RecordStrategyWrite(name string) { globalManager.strategyWrites.WithLabelValues(name).Inc() }

func RecordEngagementUpdate()        { globalManager.engagementUpdates.Inc() }
func RecordEngagementFailure()       { globalManager.engagementFailures.Inc() }
func RecordRankUpdateRetry()         { globalManager.rankUpdateRetries.Inc() }
func RecordUpdateLatency(ms float64) { globalManager.updateLatency.Observe(ms) }

func RecordReconcileEnqueued()          { globalManager.reconcileQueued.Inc() }
func UpdateReconcileQueueDepth(n int)   { globalManager.reconcileDepth.Set(float64(n)) }
func RecordNotificationPublished()      { globalManager.notificationsPublished.Inc() }
func RecordNotificationDropped()        { globalManager.notificationsDropped.Inc() }
func UpdateNotificationQueueSize(n int) { globalManager.notifyQueueSize.Set(float64(n)) }
func RecordInvalidation(entity string)  { globalManager.invalidations.WithLabelValues(entity).Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryBytes.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutines.Set(float64(n)) }
func RecordSystemGCPauseTime(ms float64)   { globalManager.systemGCPause.Observe(ms) }
