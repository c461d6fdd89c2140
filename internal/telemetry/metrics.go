package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Role resolution sources, used as the "source" label.
const (
	SourceCache      = "cache"
	SourcePrivileged = "privileged"
	SourceDatabase   = "database"
)

// Metrics holds the Prometheus collectors for the API.
// Each instance owns its registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups       *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Counter: role cache lookups by result (hit, miss, error)
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumen_role_cache_lookups_total",
				Help: "Role cache lookups by result.",
			},
			[]string{"result"},
		),

		// Counter: role resolutions by source and outcome
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumen_role_resolutions_total",
				Help: "Role resolutions by source (cache, privileged, database) and outcome.",
			},
			[]string{"source", "outcome"},
		),

		// Histogram: time spent resolving roles on a cache miss
		resolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumen_role_resolution_duration_seconds",
				Help:    "Role resolution latency by source.",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"source"},
		),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumen_http_requests_total",
				Help: "HTTP requests by method, route pattern and status.",
			},
			[]string{"method", "route", "status"},
		),

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumen_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCacheLookup records one cache lookup. result is "hit", "miss" or "error".
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveResolution records a completed role resolution.
func (m *Metrics) ObserveResolution(source string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.resolutions.WithLabelValues(source, outcome).Inc()
	m.resolutionDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveRequest records an HTTP request. route is the router pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
