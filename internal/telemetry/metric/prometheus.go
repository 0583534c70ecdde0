package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jsonkeep"

// Registry holds all application metrics on a private Prometheus
// registry.
//
// @design DS-0402
type Registry struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Store metrics
	StoresAttached prometheus.Gauge
	StoreOpsTotal  *prometheus.CounterVec

	// Snapshot metrics
	SnapshotsTotal   *prometheus.CounterVec
	SnapshotFailures prometheus.Counter

	// Auth metrics
	AuthValidations *prometheus.CounterVec
	RateLimited     prometheus.Counter

	// RESP metrics
	RESPCommands    *prometheus.CounterVec
	RESPConnections prometheus.Gauge
}

// NewRegistry creates the metrics registry and registers every metric.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	r.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served",
	})

	r.StoresAttached = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "attached",
		Help:      "Number of attached stores",
	})

	r.StoreOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "ops_total",
		Help:      "Data operations by store and operation",
	}, []string{"store", "op"})

	r.SnapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "created_total",
		Help:      "Snapshots written by store",
	}, []string{"store"})

	r.SnapshotFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "failures_total",
		Help:      "Snapshot attempts that failed",
	})

	r.AuthValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "validations_total",
		Help:      "API key validations by outcome",
	}, []string{"outcome"})

	r.RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by per-key rate limiting",
	})

	r.RESPCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resp",
		Name:      "commands_total",
		Help:      "RESP commands by name",
	}, []string{"command"})

	r.RESPConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "resp",
		Name:      "connections_active",
		Help:      "Open RESP client connections",
	})

	r.registry.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RequestsInFlight,
		r.StoresAttached,
		r.StoreOpsTotal,
		r.SnapshotsTotal,
		r.SnapshotFailures,
		r.AuthValidations,
		r.RateLimited,
		r.RESPCommands,
		r.RESPConnections,
	)

	return r
}

// Register adds a custom collector to the registry.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// MustRegister adds custom collectors to the registry and panics on
// duplicate registration.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for tests and custom
// handlers.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
