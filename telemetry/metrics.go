package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes run counters on a private Prometheus registry so several
// simulations can live in one process. A nil *Metrics ignores every call.
type Metrics struct {
	registry *prometheus.Registry

	steps        prometheus.Counter
	resets       prometheus.Counter
	dispatches   *prometheus.CounterVec
	stepDuration prometheus.Histogram
	burning      prometheus.Gauge
	allocated    prometheus.Gauge
	events       *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Completed simulation steps.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Simulation resets.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Kernel dispatches by kernel name.",
		}, []string{"kernel"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall time of one simulation step.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		burning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "particles_burning",
			Help:      "Fuel particles above the burn threshold at the last census.",
		}),
		allocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "allocated_bytes",
			Help:      "Bytes held by live device buffers.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Telemetry events by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(m.steps, m.resets, m.dispatches, m.stepDuration, m.burning, m.allocated, m.events)
	return m
}

// ObserveStep records one completed step and the kernels it dispatched.
func (m *Metrics) ObserveStep(d time.Duration, dispatches map[string]int) {
	if m == nil {
		return
	}
	m.steps.Inc()
	m.stepDuration.Observe(d.Seconds())
	for kernel, n := range dispatches {
		m.dispatches.WithLabelValues(kernel).Add(float64(n))
	}
}

// ObserveReset counts a simulation reset.
func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

// ObserveEvent counts a telemetry event.
func (m *Metrics) ObserveEvent(e Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(e.Type)).Inc()
}

// SetBurning sets the burning particle gauge.
func (m *Metrics) SetBurning(n int) {
	if m == nil {
		return
	}
	m.burning.Set(float64(n))
}

// SetAllocated sets the allocated bytes gauge.
func (m *Metrics) SetAllocated(bytes int64) {
	if m == nil {
		return
	}
	m.allocated.Set(float64(bytes))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
