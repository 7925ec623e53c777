// Package metrics exports pool activity as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fredo838/sparp/pool"
)

// PrometheusObserver implements pool.Observer.
type PrometheusObserver struct {
	attempts     *prometheus.CounterVec
	dispositions *prometheus.CounterVec
	inflight     prometheus.Gauge
	duration     prometheus.Histogram
}

var _ pool.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the collectors and registers them on reg.
// It panics if they are already registered, like prometheus.MustRegister.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sparp_attempts_total",
			Help: "Request attempts by result.",
		}, []string{"outcome"}),
		dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sparp_dispositions_total",
			Help: "Retries and terminal dispositions by kind.",
		}, []string{"kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sparp_inflight_requests",
			Help: "Requests currently in flight.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sparp_attempt_duration_seconds",
			Help:    "Duration of one attempt, parsing included.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
	}

	reg.MustRegister(o.attempts, o.dispositions, o.inflight, o.duration)
	return o
}

func (o *PrometheusObserver) OnAttemptStart(context.Context) {
	o.inflight.Inc()
}

func (o *PrometheusObserver) OnAttempt(_ context.Context, rec pool.AttemptRecord) {
	o.inflight.Dec()
	o.attempts.WithLabelValues(rec.Label()).Inc()
	o.duration.Observe(rec.Duration.Seconds())
}

func (o *PrometheusObserver) OnDisposition(_ context.Context, ev pool.Event) {
	o.dispositions.WithLabelValues(ev.String()).Inc()
}
