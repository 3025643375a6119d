package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics exposes the monitoring layer's own Prometheus
// series, namespaced "packetflow_monitoring" following the category
// taxonomy the rest of the runtime's metrics use.
type PrometheusMetrics struct {
	HealthChecksTotal   *prometheus.CounterVec
	ComponentHealth     *prometheus.GaugeVec
	MetricsCollected    *prometheus.CounterVec
	AlertsActive        *prometheus.GaugeVec
	QueueLength         *prometheus.GaugeVec
	MemoryBytes         *prometheus.GaugeVec
}

// NewPrometheusMetrics registers every series against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the
// global default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		HealthChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetflow_monitoring",
			Name:      "health_checks_total",
			Help:      "Number of health checks run, by component id and resulting band.",
		}, []string{"component_id", "health"}),
		ComponentHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "packetflow_monitoring",
			Name:      "component_health",
			Help:      "Current health band as an ordinal: 0=unknown 1=unhealthy 2=degraded 3=healthy.",
		}, []string{"component_id"}),
		MetricsCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "packetflow_monitoring",
			Name:      "metrics_collected_total",
			Help:      "Number of component metric samples collected.",
		}, []string{"component_id"}),
		AlertsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "packetflow_monitoring",
			Name:      "alerts_active",
			Help:      "Currently active monitoring alerts, by severity.",
		}, []string{"severity"}),
		QueueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "packetflow_monitoring",
			Name:      "message_queue_length",
			Help:      "Reported message_queue_length base metric, by component id.",
		}, []string{"component_id"}),
		MemoryBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "packetflow_monitoring",
			Name:      "memory_bytes",
			Help:      "Reported memory_bytes base metric, by component id.",
		}, []string{"component_id"}),
	}
}

func healthOrdinal(h string) float64 {
	switch h {
	case "healthy":
		return 3
	case "degraded":
		return 2
	case "unhealthy":
		return 1
	default:
		return 0
	}
}
