// Package metrics provides Prometheus metrics for the service.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the service.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	Replies       *prometheus.CounterVec
	DomainMatches *prometheus.CounterVec
	HostRewrites  prometheus.Counter
	DeferredJobs  *prometheus.CounterVec
	StatsErrors   prometheus.Counter
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballast_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballast_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ballast_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballast_ajax_replies_total",
			Help: "AJAX replies rendered, by resolved format and status code.",
		}, []string{"format", "status_code"}),

		DomainMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballast_domain_matches_total",
			Help: "Domain matcher decisions by result.",
		}, []string{"result"}),

		HostRewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ballast_host_rewrites_total",
			Help: "Requests whose IP host was rewritten to the environment's default host.",
		}),

		DeferredJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ballast_deferred_jobs_total",
			Help: "Deferred jobs handled by the reactor pool, by result.",
		}, []string{"result"}),

		StatsErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ballast_stats_errors_total",
			Help: "Failed writes to the host stats store.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.Replies,
		m.DomainMatches,
		m.HostRewrites,
		m.DeferredJobs,
		m.StatsErrors,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes lists the allowed path label values (bounded cardinality).
var knownPrefixes = []string{"/api/host", "/healthz", "/status", "/metrics"}

// NormalizePath returns a bounded path label for Prometheus metrics.
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+".") {
			return prefix
		}
	}
	return "other"
}

// knownFormats lists the allowed reply format label values.
var knownFormats = map[string]bool{
	"json": true, "jsonp": true, "pretty_jsonp": true, "text": true, "yaml": true,
}

// NormalizeFormat returns a bounded reply format label. Formats come from
// query parameters, so anything unknown is mapped to "other".
func NormalizeFormat(format string) string {
	if knownFormats[format] {
		return format
	}
	return "other"
}
