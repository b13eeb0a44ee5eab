// Package metrics defines the Prometheus collectors of the server. Every
// Metrics value owns its own registry so tests and multiple servers in one
// process never collide.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	TransformsTotal   *prometheus.CounterVec
	ValidationsFailed *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheEntries      prometheus.Gauge
	CacheRejected     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prompt2json_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prompt2json_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prompt2json_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prompt2json_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prompt2json_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		TransformsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prompt2json_transforms_total",
				Help: "Prompts transformed, by detected output format",
			},
			[]string{"output_format"},
		),
		ValidationsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prompt2json_validation_failures_total",
				Help: "Prompts rejected by validation, by reason",
			},
			[]string{"reason"},
		),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "prompt2json_cache_hits_total",
			Help: "Transform requests answered from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "prompt2json_cache_misses_total",
			Help: "Transform requests not found in the cache",
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "prompt2json_cache_entries",
			Help: "Number of results currently cached",
		}),
		CacheRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "prompt2json_cache_rejected_total",
			Help: "Results not stored because the cache was full",
		}),
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/transform", "200").Add(0)

	return m
}

// Registry exposes the registry for components that register their own
// collectors, such as the circuit breaker.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
