package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	AuthOutcomes *prometheus.CounterVec
	Sessions     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		AuthOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "outcomes_total",
			Help:      "Authentication steps by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "sessions_total",
			Help:      "Session lifecycle events.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuthOutcomes,
		m.Sessions,
	)

	return m
}

func (m *Metrics) Outcome(provider, outcome string) {
	m.AuthOutcomes.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Session(event string) {
	m.Sessions.WithLabelValues(event).Inc()
}
