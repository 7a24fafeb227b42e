package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts lifecycle operations per entity and outcome
type Metrics struct {
	operations *prometheus.CounterVec
}

// NewMetrics registers the lifecycle collectors.
// If registry is nil, uses the default Prometheus registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rhesis_lifecycle_operations_total",
				Help: "Total number of lifecycle operations",
			},
			[]string{"entity", "operation", "outcome"},
		),
	}
}

func (m *Metrics) record(entity, operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(entity, operation, outcome).Inc()
}
