// Package metrics provides Prometheus metrics for the beacon telemetry SDK.
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

// Manager manages all Prometheus metrics for the beacon SDK.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Producer metrics
	recordsEnqueued prometheus.Counter
	queueSize       prometheus.Gauge

	// Batch metrics
	batchesAssembled prometheus.Counter
	batchRecordCount prometheus.Histogram

	// Delivery metrics
	deliveryAttempts  prometheus.Counter
	deliveryRetries   prometheus.Counter
	batchesDelivered  prometheus.Counter
	terminalFailures  prometheus.Counter
	retryableFailures prometheus.Counter
	deliveryLatency   prometheus.Histogram

	// Spool metrics
	spoolPersisted prometheus.Counter
	spoolDeleted   prometheus.Counter
	spoolSize      prometheus.Gauge
	spoolErrors    prometheus.Counter

	// Reconciler metrics
	reconcilePasses    prometheus.Counter
	reconcileDelivered prometheus.Counter

	// Crash path metrics
	crashCaptures prometheus.Counter

	// Dispatcher metrics
	dispatcherActiveCount prometheus.Gauge

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
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
		namespace:        "beacon",
		subsystem:        "telemetry",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.recordsEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_enqueued_total",
		Help:      "Total number of telemetry records enqueued",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of records waiting in the queue",
	})

	m.batchesAssembled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_assembled_total",
		Help:      "Total number of batches drained from the queue",
	})

	m.batchRecordCount = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_record_count",
		Help:      "Histogram of records per assembled batch",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
	})

	m.deliveryAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_attempts_total",
		Help:      "Total number of network delivery attempts",
	})

	m.deliveryRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_retries_total",
		Help:      "Total number of delivery attempts beyond the first",
	})

	m.batchesDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_delivered_total",
		Help:      "Total number of batches acknowledged by the collector",
	})

	m.terminalFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_terminal_failures_total",
		Help:      "Total number of batches rejected with a client error",
	})

	m.retryableFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_retryable_failures_total",
		Help:      "Total number of batches that exhausted in-process retries",
	})

	m.deliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_latency_milliseconds",
		Help:      "Histogram of end-to-end Send latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.spoolPersisted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spool_persisted_total",
		Help:      "Total number of batches written to the durable spool",
	})

	m.spoolDeleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spool_deleted_total",
		Help:      "Total number of spool entries removed after confirmed delivery",
	})

	m.spoolSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spool_size",
		Help:      "Current number of undelivered batches in the spool",
	})

	m.spoolErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spool_errors_total",
		Help:      "Total number of spool read/write failures",
	})

	m.reconcilePasses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_passes_total",
		Help:      "Total number of reconciliation passes started",
	})

	m.reconcileDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_delivered_total",
		Help:      "Total number of spooled batches delivered by reconciliation",
	})

	m.crashCaptures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "crash_captures_total",
		Help:      "Total number of crash records captured",
	})

	m.dispatcherActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatcher_active_count",
		Help:      "Current number of running dispatcher workers",
	})

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)
}

// RecordEnqueued increments the enqueued records counter.
func RecordEnqueued() {
	globalManager.recordsEnqueued.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordBatchAssembled records one drained batch and its record count.
func RecordBatchAssembled(records int) {
	globalManager.batchesAssembled.Inc()
	globalManager.batchRecordCount.Observe(float64(records))
}

// RecordDeliveryAttempt increments the delivery attempts counter.
func RecordDeliveryAttempt() {
	globalManager.deliveryAttempts.Inc()
}

// RecordDeliveryRetry increments the delivery retries counter.
func RecordDeliveryRetry() {
	globalManager.deliveryRetries.Inc()
}

// RecordBatchDelivered increments the delivered batches counter.
func RecordBatchDelivered() {
	globalManager.batchesDelivered.Inc()
}

// RecordTerminalFailure increments the terminal failure counter.
func RecordTerminalFailure() {
	globalManager.terminalFailures.Inc()
}

// RecordRetryableFailure increments the retryable failure counter.
func RecordRetryableFailure() {
	globalManager.retryableFailures.Inc()
}

// RecordDeliveryLatency records end-to-end Send latency in milliseconds.
func RecordDeliveryLatency(latencyMs float64) {
	globalManager.deliveryLatency.Observe(latencyMs)
}

// RecordSpoolPersisted increments the spool persist counter.
func RecordSpoolPersisted() {
	globalManager.spoolPersisted.Inc()
}

// RecordSpoolDeleted increments the spool delete counter.
func RecordSpoolDeleted() {
	globalManager.spoolDeleted.Inc()
}

// UpdateSpoolSize sets the current number of spooled batches.
func UpdateSpoolSize(size int) {
	globalManager.spoolSize.Set(float64(size))
}

// RecordSpoolError increments the spool error counter.
func RecordSpoolError() {
	globalManager.spoolErrors.Inc()
}

// RecordReconcilePass increments the reconciliation pass counter.
func RecordReconcilePass() {
	globalManager.reconcilePasses.Inc()
}

// RecordReconcileDelivered increments the reconciled-delivery counter.
func RecordReconcileDelivered() {
	globalManager.reconcileDelivered.Inc()
}

// RecordCrashCapture increments the crash capture counter.
func RecordCrashCapture() {
	globalManager.crashCaptures.Inc()
}

// UpdateDispatcherActiveCount sets the number of running dispatcher workers.
func UpdateDispatcherActiveCount(count int) {
	globalManager.dispatcherActiveCount.Set(float64(count))
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
