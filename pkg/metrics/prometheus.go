// Package metrics provides Prometheus metrics for the whovapes voting service.
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
	registry         prometheus.Registerer

	// Voting
	votesRecorded    prometheus.Counter
	votesRejected    *prometheus.CounterVec
	ratingSwing      prometheus.Histogram
	confirmVotes     *prometheus.CounterVec
	skipsRecorded    prometheus.Counter
	skipsDropped     prometheus.Counter
	rateLimited      *prometheus.CounterVec
	totalCelebrities prometheus.Gauge

	// Pair snapshot
	snapshotRefreshes       prometheus.Counter
	snapshotRefreshDuration prometheus.Histogram
	snapshotSize            prometheus.Gauge

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Wikipedia upstream
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	upstreamCacheHit prometheus.Counter

	// Skip queue and workers
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "whovapes",
		subsystem:        "api",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every series
	m.votesRecorded = m.counter("votes_recorded_total", "Total number of head-to-head votes committed")
	m.votesRejected = m.counterVec("votes_rejected_total", "Votes rejected before or during commit", "reason")
	m.ratingSwing = m.histogram("rating_swing_points", "Absolute rating change applied to the winner per vote",
		[]float64{1, 2, 4, 8, 12, 16, 24, 32, 48, 64})
	m.confirmVotes = m.counterVec("confirm_votes_total", "Community confirmation votes by answer", "answer")
	m.skipsRecorded = m.counter("skips_recorded_total", "Skip events appended to the log")
	m.skipsDropped = m.counter("skips_dropped_total", "Skip events dropped because the queue was full or closed")
	m.rateLimited = m.counterVec("rate_limited_total", "Calls rejected by a rate limiter", "scope")
	m.totalCelebrities = m.gauge("celebrities", "Number of celebrities in the latest pair snapshot")

	m.snapshotRefreshes = m.counter("snapshot_refresh_total", "Pair snapshot refreshes from the store")
	m.snapshotRefreshDuration = m.histogram("snapshot_refresh_duration_milliseconds",
		"Duration of a pair snapshot refresh in milliseconds", m.histogramBuckets)
	m.snapshotSize = m.gauge("snapshot_size", "Entries held by the pair snapshot")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "op")

	m.upstreamRequests = m.counterVec("wikipedia_requests_total", "Wikipedia summary requests by outcome", "outcome")
	m.upstreamLatency = m.histogram("wikipedia_latency_milliseconds", "Wikipedia summary latency in milliseconds",
		[]float64{25, 50, 100, 250, 500, 1000, 2500, 5000})
	m.upstreamCacheHit = m.counter("wikipedia_cache_hits_total", "Wikipedia summaries served from cache")

	m.queueSize = m.gauge("skip_queue_size", "Current size of the skip event queue")
	m.workerCount = m.gauge("skip_worker_count", "Number of skip event workers")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("http_errors_total", "HTTP error responses by endpoint and type",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordVote counts a committed vote and the winner's rating swing.
func RecordVote(swing int) {
	globalManager.votesRecorded.Inc()
	if swing < 0 {
		swing = -swing
	}
	globalManager.ratingSwing.Observe(float64(swing))
}

// RecordVoteRejected counts a vote that did not commit.
func RecordVoteRejected(reason string) {
	globalManager.votesRejected.WithLabelValues(reason).Inc()
}

// RecordConfirmVote counts a community confirmation vote.
func RecordConfirmVote(yes bool) {
	answer := "no"
	if yes {
		answer = "yes"
	}
	globalManager.confirmVotes.WithLabelValues(answer).Inc()
}

// RecordSkip counts a persisted skip event.
func RecordSkip() { globalManager.skipsRecorded.Inc() }

// RecordSkipDropped counts a skip event that never reached the log.
func RecordSkipDropped() { globalManager.skipsDropped.Inc() }

// RecordRateLimited counts a limiter rejection for the given scope.
func RecordRateLimited(scope string) {
	globalManager.rateLimited.WithLabelValues(scope).Inc()
}

// RecordSnapshotRefresh records a pair snapshot refresh.
func RecordSnapshotRefresh(durationMs float64, size int) {
	globalManager.snapshotRefreshes.Inc()
	globalManager.snapshotRefreshDuration.Observe(durationMs)
	globalManager.snapshotSize.Set(float64(size))
	globalManager.totalCelebrities.Set(float64(size))
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordUpstreamRequest records a Wikipedia request outcome and latency.
func RecordUpstreamRequest(outcome string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(outcome).Inc()
	globalManager.upstreamLatency.Observe(latencyMs)
}

// RecordUpstreamCacheHit counts a Wikipedia cache hit.
func RecordUpstreamCacheHit() { globalManager.upstreamCacheHit.Inc() }

// UpdateQueueSize sets the skip queue size gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateWorkerCount sets the skip worker gauge.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
