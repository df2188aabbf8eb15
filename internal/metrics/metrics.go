package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

// Metrics holds every collector the server exports. Collectors are bound to
// the registry passed to New, so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// Engine
	EventsProcessed *prometheus.CounterVec // status
	PersistFailures prometheus.Counter
	PendingRetries  prometheus.Gauge
	MalformedRows   *prometheus.CounterVec // table
	ManualSyncs     *prometheus.CounterVec // result
	PassDuration    prometheus.Histogram

	// Fan-out
	Notifications  *prometheus.CounterVec // result
	FeedClients    prometheus.Gauge
	FeedPublishErr prometheus.Counter

	// Devices
	Heartbeats     *prometheus.CounterVec // known
	DevicesOffline prometheus.Counter

	// HTTP
	HTTPRequests *prometheus.CounterVec   // method, route, status
	HTTPDuration *prometheus.HistogramVec // method, route
}

// New registers all collectors on reg. A nil reg gets a fresh registry
// with the Go and process collectors attached.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		EventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_processed_total",
			Help:      "Access events committed to the aggregation store.",
		}, []string{"status"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "persist_failures_total",
			Help:      "SaveLog calls that failed and were queued for retry.",
		}),
		PendingRetries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pending_retries",
			Help:      "Events waiting to be persisted again.",
		}),
		MalformedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "malformed_rows_total",
			Help:      "Durable rows skipped because they could not be decoded.",
		}, []string{"table"}),
		ManualSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "manual_syncs_total",
			Help:      "Manual sync requests by outcome.",
		}, []string{"result"}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pass_duration_seconds",
			Help:      "Time spent processing one event, persistence included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Notification dispatch attempts by result.",
		}, []string{"result"}),
		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected live feed clients.",
		}),
		FeedPublishErr: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "publish_errors_total",
			Help:      "Events that could not be published to the redis channel.",
		}),

		Heartbeats: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "heartbeats_total",
			Help:      "Terminal heartbeats by whether the device is registered.",
		}, []string{"known"}),
		DevicesOffline: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "marked_offline_total",
			Help:      "Devices flipped offline by the presence sweeper.",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "route"}),
	}
}

// MalformedHook adapts MalformedRows to the sqlite store's skip callback.
func (m *Metrics) MalformedHook() func(table string) {
	return func(table string) { m.MalformedRows.WithLabelValues(table).Inc() }
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
