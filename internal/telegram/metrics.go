package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer.
type Metrics struct {
	updates *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		updates: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_updates_total",
			Help: "Inbound bot updates by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}
