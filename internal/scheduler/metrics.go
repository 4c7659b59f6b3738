package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer.
type Metrics struct {
	dispatches   *prometheus.CounterVec
	tickDuration prometheus.Histogram
}

// NewMetrics registers the dispatcher collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbot_plan_dispatches_total",
			Help: "Daily plan dispatch attempts by result.",
		}, []string{"result"}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitbot_dispatch_tick_seconds",
			Help:    "Duration of one dispatch tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeTick(rep Report, took time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues("sent").Add(float64(rep.Sent))
	m.dispatches.WithLabelValues("failed").Add(float64(rep.Failed))
	m.dispatches.WithLabelValues("skipped").Add(float64(rep.Skipped))
	m.tickDuration.Observe(took.Seconds())
}
