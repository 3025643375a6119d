package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics tracks Prometheus series for one HTTP surface (the
// monitoring dashboard's /dashboard/* and /metrics endpoints).
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// NewHTTPMetrics registers a fresh set of HTTP series under namespace/subsystem.
func NewHTTPMetrics(namespace, subsystem string) *HTTPMetrics {
	return &HTTPMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status_code"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "path", "status_code"},
		),
		activeRequests: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_requests",
				Help:      "Number of HTTP requests currently being served",
			},
		),
	}
}

// RecordRequest observes one completed request's outcome and latency.
func (h *HTTPMetrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	if h == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	h.requestsTotal.WithLabelValues(method, path, status).Inc()
	h.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// Track wraps fn, incrementing activeRequests for its duration and
// recording the outcome under method/path/statusCode when it returns.
func (h *HTTPMetrics) Track(method, path string, fn func() int) {
	if h == nil {
		fn()
		return
	}
	h.activeRequests.Inc()
	defer h.activeRequests.Dec()
	start := time.Now()
	status := fn()
	h.RecordRequest(method, path, status, time.Since(start))
}

// MetricsRegistry is the central registry for the dashboard's HTTP
// surface metrics, lazily initialized and safe for concurrent use.
type MetricsRegistry struct {
	namespace string

	httpOnce sync.Once
	http     *HTTPMetrics
}

var (
	defaultRegistry     *MetricsRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton MetricsRegistry.
func DefaultRegistry() *MetricsRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewMetricsRegistry("packetflow")
	})
	return defaultRegistry
}

// NewMetricsRegistry creates a new MetricsRegistry under namespace.
func NewMetricsRegistry(namespace string) *MetricsRegistry {
	if namespace == "" {
		namespace = "packetflow"
	}
	return &MetricsRegistry{namespace: namespace}
}

// HTTP returns the HTTP metrics manager, lazy-initialized on first access.
func (r *MetricsRegistry) HTTP() *HTTPMetrics {
	r.httpOnce.Do(func() {
		r.http = NewHTTPMetrics(r.namespace, "dashboard")
	})
	return r.http
}

// Namespace returns the configured namespace for this registry.
func (r *MetricsRegistry) Namespace() string {
	return r.namespace
}
