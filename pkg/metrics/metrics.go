// Package metrics exposes Prometheus metrics for scans, transformations,
// the graph cache and the HTTP server.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Scanner Metrics
	ScansTotal *prometheus.CounterVec

	// Transform Metrics
	TransformsTotal    *prometheus.CounterVec
	TransformDuration  *prometheus.HistogramVec
	TransformRows      *prometheus.HistogramVec
	TransformNodes     *prometheus.HistogramVec
	TransformEdges     *prometheus.HistogramVec

	// Cache Metrics
	CacheRequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initHTTPMetrics()
	r.initTransformMetrics()
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparqlgraph_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparqlgraph_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sparqlgraph_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)
}

func (r *Registry) initTransformMetrics() {
	sizeBuckets := prometheus.ExponentialBuckets(1, 4, 10)

	r.ScansTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparqlgraph_scans_total",
			Help: "Total number of query scans",
		},
		[]string{"status"},
	)

	r.TransformsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparqlgraph_transforms_total",
			Help: "Total number of transformations",
		},
		[]string{"flavour", "status"},
	)

	r.TransformDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparqlgraph_transform_duration_seconds",
			Help:    "Transformation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flavour"},
	)

	r.TransformRows = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparqlgraph_transform_rows",
			Help:    "Result rows per transformation",
			Buckets: sizeBuckets,
		},
		[]string{"flavour"},
	)

	r.TransformNodes = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparqlgraph_transform_nodes",
			Help:    "Nodes produced per transformation",
			Buckets: sizeBuckets,
		},
		[]string{"flavour"},
	)

	r.TransformEdges = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparqlgraph_transform_edges",
			Help:    "Edges produced per transformation",
			Buckets: sizeBuckets,
		},
		[]string{"flavour"},
	)

	r.CacheRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparqlgraph_cache_requests_total",
			Help: "Graph cache lookups by result",
		},
		[]string{"table", "result"},
	)
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordScan records a query scan
func (r *Registry) RecordScan(status string) {
	r.ScansTotal.WithLabelValues(status).Inc()
}

// RecordTransform records a transformation. Sizes are only observed for
// successful runs.
func (r *Registry) RecordTransform(flavour, status string, duration time.Duration, rows, nodes, edges int) {
	r.TransformsTotal.WithLabelValues(flavour, status).Inc()
	r.TransformDuration.WithLabelValues(flavour).Observe(duration.Seconds())
	if status != "success" {
		return
	}
	r.TransformRows.WithLabelValues(flavour).Observe(float64(rows))
	r.TransformNodes.WithLabelValues(flavour).Observe(float64(nodes))
	r.TransformEdges.WithLabelValues(flavour).Observe(float64(edges))
}

// RecordCache records a cache lookup
func (r *Registry) RecordCache(table string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheRequestsTotal.WithLabelValues(table, result).Inc()
}
