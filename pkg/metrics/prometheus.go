// Package metrics provides Prometheus metrics for the loot tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the tracker.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Snapshot service
	snapshotsTaken       *prometheus.CounterVec
	snapshotErrors       prometheus.Counter
	snapshotThrottleWait prometheus.Histogram

	// Pricing
	pricingLookups  prometheus.Counter
	pricingLatency  prometheus.Histogram
	unpricedItems   prometheus.Counter

	// Unit flow
	unitsCompleted prometheus.Counter
	unitsAborted   *prometheus.CounterVec
	unitValue      prometheus.Histogram
	unitRuntime    prometheus.Histogram

	// Session ledger
	sessionMapsCompleted prometheus.Gauge
	sessionTotalValue    prometheus.Gauge
	sessionValuePerHour  prometheus.Gauge

	// Sinks
	runlogAppends  prometheus.Counter
	runlogErrors   prometheus.Counter
	notifyErrors   prometheus.Counter
	overlayClients prometheus.Gauge
	overlayPushes  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Init builds the global manager and registers all collectors.
func Init(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "lootledger",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.snapshotsTaken = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshots_taken_total",
		Help: "Inventory snapshots taken, by kind (pre/post/check).",
	}, []string{"kind"})
	m.snapshotErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshot_errors_total",
		Help: "Failed inventory snapshot attempts.",
	})
	m.snapshotThrottleWait = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "snapshot_throttle_wait_seconds",
		Help:    "Time spent blocked in the snapshot throttle.",
		Buckets: m.histogramBuckets,
	})

	m.pricingLookups = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "pricing_lookups_total",
		Help: "Batch pricing calls to the market feed.",
	})
	m.pricingLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "pricing_latency_seconds",
		Help:    "Latency of batch pricing calls.",
		Buckets: m.histogramBuckets,
	})
	m.unpricedItems = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "unpriced_items_total",
		Help: "Items the market feed had no price for (valued at zero).",
	})

	m.unitsCompleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "units_completed_total",
		Help: "Map runs committed to the session ledger.",
	})
	m.unitsAborted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "units_aborted_total",
		Help: "End-unit flows aborted before commit, by reason.",
	}, []string{"reason"})
	m.unitValue = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "unit_value",
		Help:    "Value of a completed map run in the major denomination.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250},
	})
	m.unitRuntime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "unit_runtime_seconds",
		Help:    "Runtime of a completed map run.",
		Buckets: []float64{60, 120, 180, 300, 450, 600, 900, 1800},
	})

	m.sessionMapsCompleted = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "session_maps_completed",
		Help: "Maps completed in the current session.",
	})
	m.sessionTotalValue = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "session_total_value",
		Help: "Total value of the current session in the major denomination.",
	})
	m.sessionValuePerHour = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "session_value_per_hour",
		Help: "Value per hour of the current session.",
	})

	m.runlogAppends = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "runlog_appends_total",
		Help: "Records appended to the run/session logs.",
	})
	m.runlogErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "runlog_errors_total",
		Help: "Failed log appends.",
	})
	m.notifyErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "notify_errors_total",
		Help: "Failed notification dispatches.",
	})
	m.overlayClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "overlay_clients",
		Help: "Connected overlay websocket clients.",
	})
	m.overlayPushes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "overlay_pushes_total",
		Help: "Variable-bag pushes to overlay clients.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Overlay HTTP requests, by endpoint and status.",
	}, []string{"endpoint", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_seconds",
		Help:    "Overlay HTTP request duration, by endpoint.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint"})

	globalManager = m
	return m
}

func get() *Manager {
	return globalManager
}

// Package-level recording helpers. All are no-ops before Init or when
// metrics are disabled, so domain code never has to guard its calls.

func RecordSnapshot(kind string) {
	if m := get(); m != nil && m.enabled {
		m.snapshotsTaken.WithLabelValues(kind).Inc()
	}
}

func RecordSnapshotError() {
	if m := get(); m != nil && m.enabled {
		m.snapshotErrors.Inc()
	}
}

func RecordThrottleWait(seconds float64) {
	if m := get(); m != nil && m.enabled {
		m.snapshotThrottleWait.Observe(seconds)
	}
}

func RecordPricingLookup(seconds float64) {
	if m := get(); m != nil && m.enabled {
		m.pricingLookups.Inc()
		m.pricingLatency.Observe(seconds)
	}
}

func RecordUnpricedItems(n int) {
	if m := get(); m != nil && m.enabled {
		m.unpricedItems.Add(float64(n))
	}
}

func RecordUnitCompleted(value, runtimeSeconds float64) {
	if m := get(); m != nil && m.enabled {
		m.unitsCompleted.Inc()
		m.unitValue.Observe(value)
		if runtimeSeconds > 0 {
			m.unitRuntime.Observe(runtimeSeconds)
		}
	}
}

func RecordUnitAborted(reason string) {
	if m := get(); m != nil && m.enabled {
		m.unitsAborted.WithLabelValues(reason).Inc()
	}
}

func UpdateSession(mapsCompleted int, totalValue, valuePerHour float64) {
	if m := get(); m != nil && m.enabled {
		m.sessionMapsCompleted.Set(float64(mapsCompleted))
		m.sessionTotalValue.Set(totalValue)
		m.sessionValuePerHour.Set(valuePerHour)
	}
}

func RecordRunlogAppend() {
	if m := get(); m != nil && m.enabled {
		m.runlogAppends.Inc()
	}
}

func RecordRunlogError() {
	if m := get(); m != nil && m.enabled {
		m.runlogErrors.Inc()
	}
}

func RecordNotifyError() {
	if m := get(); m != nil && m.enabled {
		m.notifyErrors.Inc()
	}
}

func UpdateOverlayClients(n int) {
	if m := get(); m != nil && m.enabled {
		m.overlayClients.Set(float64(n))
	}
}

func RecordOverlayPush() {
	if m := get(); m != nil && m.enabled {
		m.overlayPushes.Inc()
	}
}

func RecordHTTPRequest(endpoint, status string, seconds float64) {
	if m := get(); m != nil && m.enabled {
		m.httpRequests.WithLabelValues(endpoint, status).Inc()
		m.httpRequestDuration.WithLabelValues(endpoint).Observe(seconds)
	}
}
