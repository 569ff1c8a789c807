package middleware

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/auth"
	"github.com/ocruz/athlete-performance-tracker-backend-sub001/internal/policy"
)

// Metrics counts authentication outcomes and authorization decisions. A nil
// *Metrics records nothing.
type Metrics struct {
	authentications *prometheus.CounterVec
	authorizations  *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitapi",
			Name:      "authentication_total",
			Help:      "Authentication attempts by scheme and outcome (authenticated or the failure reason).",
		}, []string{"scheme", "outcome"}),
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitapi",
			Name:      "authorization_total",
			Help:      "Authorization decisions by chain.",
		}, []string{"chain", "decision"}),
	}
	for _, c := range []prometheus.Collector{m.authentications, m.authorizations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeAuthentication(scheme auth.Scheme, result auth.Result) {
	if m == nil {
		return
	}
	m.authentications.WithLabelValues(string(scheme), result.Outcome()).Inc()
}

func (m *Metrics) observeAuthorization(chain string, decision policy.Decision) {
	if m == nil {
		return
	}
	m.authorizations.WithLabelValues(chain, decision.String()).Inc()
}
