// Package metrics provides Prometheus metrics for the funbet exchange service.
package metrics

import (
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the exchange.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Wager book
	wagersPlaced   *prometheus.CounterVec
	wagersRejected *prometheus.CounterVec
	wagersReplaced prometheus.Counter
	bookSize       prometheus.Gauge
	poolAmount     *prometheus.GaugeVec

	// Match lifecycle
	transitions  *prometheus.CounterVec
	matchStatus  *prometheus.GaugeVec
	matchUpdates prometheus.Counter

	// Settlement
	settlementRuns     *prometheus.CounterVec
	settlementDuration prometheus.Histogram
	settlementCredits  prometheus.Counter
	settlementDebits   prometheus.Counter
	settlementSkipped  prometheus.Counter
	ledgerBailouts     prometheus.Counter

	// Ledger
	accountsOpened prometheus.Counter
	paymentsTotal  prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Notifications
	notifyPublished *prometheus.CounterVec

	// Repository
	repositoryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

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

// Configure replaces the package manager with one built from opts on a
// fresh registry. Call it once at startup, before any handler captures
// GetRegistry and before recorders run.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	opts = append(slices.Clone(opts), WithPrometheusRegistry(reg))
	customRegistry = reg
	globalManager = NewManager(opts...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "funbet",
		subsystem:        "exchange",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval reports how often gauge updaters should sample.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string { return m.metricPrefix + n }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.wagersPlaced = m.counterVec("wagers_placed_total", "Accepted wagers by participant", "participant")
	m.wagersRejected = m.counterVec("wagers_rejected_total", "Rejected wagers by reason", "reason")
	m.wagersReplaced = m.counter("wagers_replaced_total", "Wagers that replaced an earlier wager of the same account")
	m.bookSize = m.gauge("book_size", "Number of outstanding wagers")
	m.poolAmount = m.gaugeVec("pool_amount", "Pool per participant at the last close", "participant")

	m.transitions = m.counterVec("transitions_total", "Match transitions by from/to/result", "from", "to", "result")
	m.matchStatus = m.gaugeVec("match_status", "1 for the current match status", "status")
	m.matchUpdates = m.counter("match_updates_total", "Persisted match document writes")

	m.settlementRuns = m.counterVec("settlement_runs_total", "Settlement passes by result", "result")
	m.settlementDuration = m.histogram("settlement_duration_milliseconds", "Settlement pass duration in milliseconds",
		[]float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000})
	m.settlementCredits = m.counter("settlement_credits_total", "Credit deltas applied during settlement")
	m.settlementDebits = m.counter("settlement_debits_total", "Debit deltas applied during settlement")
	m.settlementSkipped = m.counter("settlement_skipped_total", "Wagers skipped because the balance drifted below the wager")
	m.ledgerBailouts = m.counter("ledger_bailouts_total", "Debits that reset a balance to the bailout floor")

	m.accountsOpened = m.counter("accounts_opened_total", "Accounts opened")
	m.paymentsTotal = m.counter("payments_total", "Ranked payments accepted")

	m.queueSize = m.gauge("queue_size", "Current size of the settlement queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the settlement queue")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Settlement jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Settlement jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Settlement enqueue failures")

	m.notifyPublished = m.counterVec("notify_published_total", "Match notifications by driver and result", "driver", "result")

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Repository operation latency",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250}, "operation")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordWagerPlaced increments the accepted wager counter.
func RecordWagerPlaced(participant string, replaced bool) {
	if !globalManager.enabled {
		return
	}
	globalManager.wagersPlaced.WithLabelValues(participant).Inc()
	if replaced {
		globalManager.wagersReplaced.Inc()
	}
}

// RecordWagerRejected increments the rejection counter for reason.
func RecordWagerRejected(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.wagersRejected.WithLabelValues(reason).Inc()
}

// UpdateBookSize sets the number of outstanding wagers.
func UpdateBookSize(size int) {
	globalManager.bookSize.Set(float64(size))
}

// UpdatePools replaces the pool gauges with the given totals.
func UpdatePools(pools map[string]int64) {
	globalManager.poolAmount.Reset()
	for k, v := range pools {
		globalManager.poolAmount.WithLabelValues(k).Set(float64(v))
	}
}

// RecordTransition counts a proposed transition and its result.
func RecordTransition(from, to, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.transitions.WithLabelValues(from, to, result).Inc()
}

// UpdateMatchStatus marks status as the current one.
func UpdateMatchStatus(status string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}
		globalManager.matchStatus.WithLabelValues(s).Set(v)
	}
}

// RecordMatchUpdate counts a persisted match document write.
func RecordMatchUpdate() {
	globalManager.matchUpdates.Inc()
}

// RecordSettlement records one settlement pass.
func RecordSettlement(result string, duration time.Duration, credits, debits, skipped int) {
	if !globalManager.enabled {
		return
	}
	globalManager.settlementRuns.WithLabelValues(result).Inc()
	globalManager.settlementDuration.Observe(float64(duration.Microseconds()) / 1000)
	globalManager.settlementCredits.Add(float64(credits))
	globalManager.settlementDebits.Add(float64(debits))
	globalManager.settlementSkipped.Add(float64(skipped))
}

// RecordBailout counts a debit that hit the bailout floor.
func RecordBailout() {
	globalManager.ledgerBailouts.Inc()
}

// RecordAccountOpened counts an opened account.
func RecordAccountOpened() {
	globalManager.accountsOpened.Inc()
}

// RecordPayment counts a ranked payment.
func RecordPayment() {
	globalManager.paymentsTotal.Inc()
}

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
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordNotification counts a published match notification.
func RecordNotification(driver, result string) {
	globalManager.notifyPublished.WithLabelValues(driver, result).Inc()
}

// RecordRepositoryLatency records a repository operation latency in milliseconds.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
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

// RefreshInterval reports the global manager's gauge refresh interval.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// Sum gathers the custom registry and returns the summed value of every
// counter or gauge series in the family with the given fully qualified name.
func Sum(family string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total, nil
}
