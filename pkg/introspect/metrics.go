// pkg/introspect/metrics.go
package introspect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for token validation, labeled by outcome
// (ok, denied, bad_status, bad_body, transport_error, cache_hit).
type Metrics struct {
	Validations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantgate_token_validations_total",
			Help: "Token validation attempts by outcome.",
		}, []string{"outcome"}),
	}
}
