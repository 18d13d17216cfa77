// Package metrics bundles the Prometheus collectors exported by the agent.
// A nil *Metrics is valid and records nothing, so the callback path never has
// to check whether metrics were requested.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Metrics bundles prometheus collectors used by the agent.
type Metrics struct {
	Pauses            prometheus.Counter
	PauseSeconds      prometheus.Counter
	WindowResets      prometheus.Counter
	Classification    prometheus.Gauge
	Warnings          prometheus.Counter
	WarnErrors        prometheus.Counter
	Enforcements      prometheus.Counter
	EnforcementErrors prometheus.Counter
}

// New creates the agent collectors and registers them. accumulated is sampled
// on every scrape to export the current epoch's GC time.
func New(registry prometheus.Registerer, accumulated func() float64) *Metrics {
	m := &Metrics{
		Pauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_gc_pauses_total",
			Help: "Total number of GC pauses observed by the agent.",
		}),
		PauseSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_gc_pause_seconds_total",
			Help: "Total GC time observed by the agent in seconds.",
		}),
		WindowResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_window_resets_total",
			Help: "Total number of measurement window epoch resets.",
		}),
		Classification: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gcquake_classification",
			Help: "Current detector classification (0 normal, 1 warning, 2 enforcing).",
		}),
		Warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_warnings_total",
			Help: "Total number of warning episodes that touched the marker file.",
		}),
		WarnErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_warning_errors_total",
			Help: "Total number of failed marker file touches.",
		}),
		Enforcements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_enforcements_total",
			Help: "Total number of enforcement actions taken.",
		}),
		EnforcementErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gcquake_enforcement_errors_total",
			Help: "Total number of failed enforcement actions.",
		}),
	}

	collectors := []prometheus.Collector{
		m.Pauses,
		m.PauseSeconds,
		m.WindowResets,
		m.Classification,
		m.Warnings,
		m.WarnErrors,
		m.Enforcements,
		m.EnforcementErrors,
	}
	if accumulated != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gcquake_window_accumulated_seconds",
			Help: "GC time accumulated in the current measurement window in seconds.",
		}, accumulated))
	}
	registry.MustRegister(collectors...)

	return m
}

// ObservePause records one GC pause.
func (m *Metrics) ObservePause(seconds float64) {
	if m == nil {
		return
	}
	m.Pauses.Inc()
	m.PauseSeconds.Add(seconds)
}

// ObserveReset records a window epoch reset.
func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.WindowResets.Inc()
}

// SetClassification exports the detector's latest verdict.
func (m *Metrics) SetClassification(c types.Classification) {
	if m == nil {
		return
	}
	m.Classification.Set(float64(c))
}

// ObserveWarning records a warning episode; failed reports a touch error.
func (m *Metrics) ObserveWarning(failed bool) {
	if m == nil {
		return
	}
	m.Warnings.Inc()
	if failed {
		m.WarnErrors.Inc()
	}
}

// ObserveEnforcement records an enforcement action; failed reports a
// delivery error.
func (m *Metrics) ObserveEnforcement(failed bool) {
	if m == nil {
		return
	}
	m.Enforcements.Inc()
	if failed {
		m.EnforcementErrors.Inc()
	}
}
