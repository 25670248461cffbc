// Package metrics provides Prometheus metrics for the matchday scoring service.
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
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoring
	finalizations      *prometheus.CounterVec
	finalizeDuplicates prometheus.Counter
	scoringLatency     prometheus.Histogram
	substitutions      *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	standingsUpdates   prometheus.Counter
	managersTotal      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    prometheus.Counter
	queueWaitLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Notifications
	notificationsPublished prometheus.Counter
	notificationErrors     prometheus.Counter

	// Scheduler
	schedulerSweeps         prometheus.Counter
	schedulerGamesFinalized prometheus.Counter

	errorsByComponent *prometheus.CounterVec

	// System
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
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchday",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.finalizations = auto.NewCounterVec(m.counterOpts("finalizations_total",
		"Manager results finalized, by outcome"), []string{"outcome"})
	m.finalizeDuplicates = auto.NewCounter(m.counterOpts("finalize_duplicates_total",
		"Finalize requests dropped because the same manager and game were already in flight"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds",
		"Time to score one squad including autosubs", m.histogramBuckets))
	m.substitutions = auto.NewCounterVec(m.counterOpts("substitutions_total",
		"Automatic substitutions made, by incoming position"), []string{"position"})
	m.rejections = auto.NewCounterVec(m.counterOpts("substitution_rejections_total",
		"Bench players who played but were refused, by reason"), []string{"reason"})
	m.standingsUpdates = auto.NewCounter(m.counterOpts("standings_updates_total",
		"Season standings updates"))
	m.managersTotal = auto.NewGauge(m.gaugeOpts("managers_total",
		"Managers tracked in the standings"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_operation_latency_milliseconds",
		"Store operation latency in milliseconds", m.histogramBuckets), []string{"driver", "operation"})
	m.storeErrors = auto.NewCounterVec(m.counterOpts("store_errors_total",
		"Store operation errors"), []string{"driver", "operation"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting in the finalization queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Finalization queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Jobs dequeued"))
	m.queueRejected = auto.NewCounter(m.counterOpts("queue_rejected_total", "Jobs refused on backpressure"))
	m.queueWaitLatency = auto.NewHistogram(m.histogramOpts("queue_wait_milliseconds",
		"Time a job spent queued before a worker picked it up", m.histogramBuckets))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently processing a job"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time to finalize one job", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Jobs that failed"))

	m.notificationsPublished = auto.NewCounter(m.counterOpts("notifications_published_total",
		"Result notifications published"))
	m.notificationErrors = auto.NewCounter(m.counterOpts("notification_errors_total",
		"Result notifications that failed to publish"))

	m.schedulerSweeps = auto.NewCounter(m.counterOpts("scheduler_sweeps_total",
		"Scheduled sweeps for closed games"))
	m.schedulerGamesFinalized = auto.NewCounter(m.counterOpts("scheduler_games_finalized_total",
		"Games finalized by the scheduler"))

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total",
		"Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Scoring.

// RecordFinalization counts one finalized result; outcome is success or failure.
func RecordFinalization(outcome string) {
	globalManager.finalizations.WithLabelValues(outcome).Inc()
}

// RecordFinalizeDuplicate counts a finalize request dropped as already in flight.
func RecordFinalizeDuplicate() {
	globalManager.finalizeDuplicates.Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordSubstitution counts an automatic substitution.
func RecordSubstitution(position string) {
	globalManager.substitutions.WithLabelValues(position).Inc()
}

// RecordSubstitutionRejection counts a refused bench player.
func RecordSubstitutionRejection(reason string) {
	globalManager.rejections.WithLabelValues(reason).Inc()
}

// RecordStandingsUpdate counts a standings write.
func RecordStandingsUpdate() {
	globalManager.standingsUpdates.Inc()
}

// UpdateManagersTotal sets the number of managers in the standings.
func UpdateManagersTotal(count int) {
	globalManager.managersTotal.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Store.

// RecordStoreLatency records how long a store operation took.
func RecordStoreLatency(driver, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(driver, operation string) {
	globalManager.storeErrors.WithLabelValues(driver, operation).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected counts a job refused because the queue was full or closed.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// RecordQueueWait records how long a job waited in the queue.
func RecordQueueWait(latencyMs float64) {
	globalManager.queueWaitLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Notifications.

// RecordNotificationPublished counts a published result notification.
func RecordNotificationPublished() {
	globalManager.notificationsPublished.Inc()
}

// RecordNotificationError counts a failed notification.
func RecordNotificationError() {
	globalManager.notificationErrors.Inc()
}

// Scheduler.

// RecordSchedulerSweep counts one sweep and the games it finalized.
func RecordSchedulerSweep(gamesFinalized int) {
	globalManager.schedulerSweeps.Inc()
	globalManager.schedulerGamesFinalized.Add(float64(gamesFinalized))
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

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
