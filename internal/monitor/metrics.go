package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one process. Each instance
// owns its registry so several hubs can coexist in tests.
type Metrics struct {
	Registry     *prometheus.Registry
	Sent         *prometheus.CounterVec
	Received     *prometheus.CounterVec
	Bursts       *prometheus.CounterVec
	ActiveBursts prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Sent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pingpong_datagrams_sent_total",
			Help: "Datagrams sent, by role and payload.",
		}, []string{"role", "payload"}),
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pingpong_datagrams_received_total",
			Help: "Datagrams received, by role.",
		}, []string{"role"}),
		Bursts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pingpong_bursts_total",
			Help: "Reply bursts finished, by outcome.",
		}, []string{"outcome"}),
		ActiveBursts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pingpong_active_bursts",
			Help: "Reply bursts currently in progress.",
		}),
	}
}

func (m *Metrics) observe(ev Event) {
	switch ev.Kind {
	case EventSent:
		m.Sent.WithLabelValues(ev.Role, ev.Payload).Inc()
	case EventReceived:
		m.Received.WithLabelValues(ev.Role).Inc()
	case EventBurstStarted:
		m.ActiveBursts.Inc()
	case EventBurstFinished:
		m.ActiveBursts.Dec()
		m.Bursts.WithLabelValues(ev.Outcome).Inc()
	}
}
