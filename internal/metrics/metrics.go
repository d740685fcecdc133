// Package metrics exposes workflow counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ContentPipeline/internal/ports"
)

const namespace = "contentpipeline"

// Registry records tick and action outcomes on a private registry.
type Registry struct {
	reg          *prometheus.Registry
	ticks        *prometheus.CounterVec
	tickFailures prometheus.Counter
	tickDuration prometheus.Histogram
	actions      *prometheus.CounterVec
}

var _ ports.Metrics = (*Registry)(nil)

// New builds a registry with the workflow collectors plus Go runtime stats.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Workflow ticks by resulting action.",
		}, []string{"action"}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_failures_total",
			Help:      "Workflow ticks that returned an error.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a workflow tick.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Email action links handled, by action and result.",
		}, []string{"action", "result"}),
	}
	r.reg.MustRegister(
		r.ticks,
		r.tickFailures,
		r.tickDuration,
		r.actions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) ObserveTick(action string, elapsed time.Duration, err error) {
	r.ticks.WithLabelValues(action).Inc()
	r.tickDuration.Observe(elapsed.Seconds())
	if err != nil {
		r.tickFailures.Inc()
	}
}

func (r *Registry) ObserveAction(action, result string) {
	r.actions.WithLabelValues(action, result).Inc()
}

// Handler serves the registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
