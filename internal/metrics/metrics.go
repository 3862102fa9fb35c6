// Package metrics exposes search progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tsp-search/internal/models"
)

const namespace = "tsp_search"

// Metrics holds the search collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	steps           prometheus.Counter
	improvements    prometheus.Counter
	stepErrors      prometheus.Counter
	incumbentLength prometheus.Gauge
	iteration       prometheus.Gauge
	cities          prometheus.Gauge
	stepDuration    prometheus.Histogram
}

// New creates and registers the collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Committed search steps.",
		}),
		improvements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvements_total",
			Help:      "Steps that replaced the incumbent tour.",
		}),
		stepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Steps aborted by an evaluation error.",
		}),
		incumbentLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incumbent_length",
			Help:      "Length of the best tour found so far.",
		}),
		iteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration",
			Help:      "Current iteration of the active run.",
		}),
		cities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cities",
			Help:      "Number of cities in the loaded instance.",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent sampling and evaluating one candidate.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}

	m.registry.MustRegister(
		m.steps, m.improvements, m.stepErrors,
		m.incumbentLength, m.iteration, m.cities, m.stepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveInit resets the per-run gauges for a freshly initialized run
func (m *Metrics) ObserveInit(snap models.Snapshot) {
	if m == nil {
		return
	}
	m.cities.Set(float64(snap.CityCount))
	m.iteration.Set(float64(snap.Iteration))
	m.incumbentLength.Set(snap.Length)
}

// ObserveStep records a committed step
func (m *Metrics) ObserveStep(snap models.Snapshot, took time.Duration) {
	if m == nil {
		return
	}
	m.steps.Inc()
	if snap.Improved {
		m.improvements.Inc()
	}
	m.iteration.Set(float64(snap.Iteration))
	m.incumbentLength.Set(snap.Length)
	m.stepDuration.Observe(took.Seconds())
}

// ObserveError records an aborted step
func (m *Metrics) ObserveError() {
	if m == nil {
		return
	}
	m.stepErrors.Inc()
}
