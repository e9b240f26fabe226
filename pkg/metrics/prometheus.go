// Package metrics provides Prometheus metrics for the bareme report service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds, reaching past the default portal timeout.
var defaultLatencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager manages all Prometheus metrics for the report service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Report outcomes
	reportsComputed prometheus.Counter
	reportsNotFound prometheus.Counter
	reportFailures  prometheus.Counter
	reportLatency   prometheus.Histogram

	// Aggregation volume
	periodsFetched       prometheus.Counter
	evaluationsProcessed prometheus.Counter
	skillsAggregated     prometheus.Counter
	skillsSkipped        prometheus.Counter

	// Portal gateway calls
	portalRequests *prometheus.CounterVec
	portalLatency  *prometheus.HistogramVec
	portalRetries  *prometheus.CounterVec

	// Report cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
// Without WithPrometheusRegistry the metrics land on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bareme",
		subsystem:        "report",
		histogramBuckets: defaultLatencyBucketsMs,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.reportsComputed = m.counter("reports_computed_total", "Total number of reports successfully aggregated")
	m.reportsNotFound = m.counter("reports_not_found_total", "Total number of requests where the portal returned no periods")
	m.reportFailures = m.counter("report_failures_total", "Total number of requests that failed during authentication, fetch or aggregation")
	m.reportLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "report_latency_milliseconds",
		Help:      "End-to-end report latency in milliseconds, portal calls included",
		Buckets:   m.histogramBuckets,
	})

	m.periodsFetched = m.counter("periods_fetched_total", "Total number of grading periods fetched from the portal")
	m.evaluationsProcessed = m.counter("evaluations_processed_total", "Total number of evaluations fed into aggregation")
	m.skillsAggregated = m.counter("skills_aggregated_total", "Total number of (skill, prefix) contributions aggregated")
	m.skillsSkipped = m.counter("skills_skipped_total", "Total number of skills skipped for lack of a category prefix")

	m.portalRequests = m.counterVec("portal_requests_total", "Portal gateway calls by operation and outcome", "operation", "outcome")
	m.portalLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "portal_latency_milliseconds",
		Help:      "Portal gateway call latency in milliseconds, retries included",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})
	m.portalRetries = m.counterVec("portal_retries_total", "Portal gateway retry attempts by operation", "operation")

	m.cacheHits = m.counter("cache_hits_total", "Report cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Report cache misses")
	m.cacheErrors = m.counterVec("cache_errors_total", "Report cache errors by operation", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds (user experience)",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordReportComputed counts a successful report and its latency.
func RecordReportComputed(latencyMs float64) {
	globalManager.reportsComputed.Inc()
	globalManager.reportLatency.Observe(latencyMs)
}

// RecordReportNotFound counts a report request that yielded no periods.
func RecordReportNotFound() {
	globalManager.reportsNotFound.Inc()
}

// RecordReportFailure counts a failed report request.
func RecordReportFailure() {
	globalManager.reportFailures.Inc()
}

// RecordPeriodsFetched adds n fetched periods.
func RecordPeriodsFetched(n int) {
	globalManager.periodsFetched.Add(float64(n))
}

// RecordEvaluationsProcessed adds n aggregated evaluations.
func RecordEvaluationsProcessed(n int) {
	globalManager.evaluationsProcessed.Add(float64(n))
}

// RecordSkillsAggregated adds aggregated contributions and skipped skills.
func RecordSkillsAggregated(contributions, skipped int) {
	globalManager.skillsAggregated.Add(float64(contributions))
	globalManager.skillsSkipped.Add(float64(skipped))
}

// RecordPortalRequest records one portal operation with its outcome and latency.
func RecordPortalRequest(operation, outcome string, latencyMs float64) {
	globalManager.portalRequests.WithLabelValues(operation, outcome).Inc()
	globalManager.portalLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordPortalRetry counts a retry attempt for operation.
func RecordPortalRetry(operation string) {
	globalManager.portalRetries.WithLabelValues(operation).Inc()
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheError counts a cache failure for operation ("get" or "set").
func RecordCacheError(operation string) {
	globalManager.cacheErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
