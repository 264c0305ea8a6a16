// Package metrics exposes ledger operation metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coffer_ledger_operations_total",
			Help: "Ledger operations by outcome kind.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coffer_ledger_operation_seconds",
			Help:    "Ledger operation latency, store round trips included.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
	reg.MustRegister(r.ops, r.duration)
	return r
}

func (r *Recorder) ObserveOperation(op, outcome string, elapsed time.Duration) {
	r.ops.WithLabelValues(op, outcome).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
