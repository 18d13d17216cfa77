package gcquake

import (
	"io"

	"github.com/kyungseok-lee/go-gcquake/internal/analysis"
	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/internal/reporting"
)

// Re-export simulation and reporting types
type (
	Trace             = analysis.Trace
	TracePause        = analysis.TracePause
	Simulation        = analysis.Simulation
	PauseStats        = analysis.PauseStats
	HealthCheckStatus = reporting.HealthCheckStatus
)

// ParseOptions parses an option string without attaching.
func ParseOptions(options string) (*Options, error) {
	return config.Parse(options)
}

// LoadTrace reads a YAML or JSON pause trace.
func LoadTrace(path string) (*Trace, error) {
	return analysis.LoadTrace(path)
}

// Simulate replays trace through a detector configured by options.
func Simulate(options string, trace *Trace) (*Simulation, error) {
	opts, err := config.Parse(options)
	if err != nil {
		return nil, err
	}
	return analysis.Simulate(opts, trace)
}

// PauseStatistics summarizes GC events.
func PauseStatistics(events []GCEvent) PauseStats {
	return analysis.EventStats(events)
}

// GenerateTextReport writes a human-readable status report.
func GenerateTextReport(status *Status, events []GCEvent, w io.Writer) error {
	return reporting.New(status, events).GenerateTextReport(w)
}

// GenerateJSONReport writes the status as JSON.
func GenerateJSONReport(status *Status, events []GCEvent, w io.Writer, indent bool) error {
	return reporting.New(status, events).GenerateJSONReport(w, indent)
}

// GenerateEventsReport writes GC events as a table.
func GenerateEventsReport(events []GCEvent, w io.Writer) error {
	return reporting.New(nil, events).GenerateEventsReport(w)
}

// GenerateHealthCheck scores a status.
func GenerateHealthCheck(status *Status) *HealthCheckStatus {
	return reporting.New(status, nil).GenerateHealthCheck()
}

// GenerateSimulationReport writes a simulation as text.
func GenerateSimulationReport(sim *Simulation, w io.Writer) error {
	return reporting.GenerateSimulationReport(w, sim)
}

// GenerateSimulationJSON writes a simulation as JSON.
func GenerateSimulationJSON(sim *Simulation, w io.Writer, indent bool) error {
	return reporting.GenerateSimulationJSON(w, sim, indent)
}
