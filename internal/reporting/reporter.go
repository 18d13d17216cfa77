// Package reporting renders agent status, recent GC events and detector
// simulations as text, tables and JSON.
package reporting

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/kyungseok-lee/go-gcquake/internal/analysis"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Report generation errors
var (
	ErrNoStatusData     = errors.New("no status data available")
	ErrNoEventsData     = errors.New("no events data available")
	ErrNoSimulationData = errors.New("no simulation data available")
)

// Health scoring
const (
	HealthScoreHealthy = 80
	HealthScoreWarning = 50

	PenaltyWarning      = 30
	PenaltyEnforced     = 100
	PenaltyEnforceError = 20
	PenaltyLostPauses   = 10
)

// builderPool provides reusable strings.Builder to reduce allocations
var builderPool = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

func getBuilder() *strings.Builder {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	return b
}

func putBuilder(b *strings.Builder) {
	if b.Cap() > 64*1024 { // Don't pool very large builders
		return
	}
	builderPool.Put(b)
}

// HealthCheckStatus is a coarse verdict on an agent's status.
type HealthCheckStatus struct {
	Status      string    `json:"status"`
	Score       int       `json:"score"`
	Issues      []string  `json:"issues"`
	Summary     string    `json:"summary"`
	LastUpdated time.Time `json:"last_updated"`
}

// Reporter renders one agent status and, optionally, its recent GC events.
type Reporter struct {
	status *types.Status
	events []types.GCEvent
}

// New creates a reporter. events may be nil.
func New(status *types.Status, events []types.GCEvent) *Reporter {
	return &Reporter{
		status: status,
		events: events,
	}
}

// GenerateTextReport writes a human-readable status report.
func (r *Reporter) GenerateTextReport(w io.Writer) error {
	if r.status == nil {
		return ErrNoStatusData
	}
	s := r.status

	b := getBuilder()
	defer putBuilder(b)
	b.Grow(1024)

	b.WriteString("=== gcquake Agent Status ===\n\n")
	b.WriteString("Agent: ")
	b.WriteString(s.AgentID)
	b.WriteString(" (pid ")
	b.WriteString(strconv.Itoa(s.PID))
	b.WriteString(")\n")
	b.WriteString("Attached: ")
	b.WriteString(s.AttachedAt.Format("2006-01-02 15:04:05"))
	b.WriteString(" (uptime ")
	b.WriteString(s.Uptime.Round(time.Second).String())
	b.WriteString(")\n")
	b.WriteString("Options: ")
	b.WriteString(s.Options)
	b.WriteString("\n\n")

	b.WriteString("=== Measurement Window ===\n")
	b.WriteString("Classification: ")
	b.WriteString(s.Classification.String())
	b.WriteString("\n")
	b.WriteString("Epoch: ")
	b.WriteString(strconv.FormatUint(s.State.Epoch, 10))
	b.WriteString(" (started at +")
	b.WriteString(s.State.Start.Round(time.Second).String())
	b.WriteString(")\n")
	b.WriteString("Accumulated GC Time: ")
	b.WriteString(types.FormatSeconds(s.State.Accumulated))
	b.WriteString(" of ")
	b.WriteString(types.FormatSeconds(s.GCThreshold))
	b.WriteString(" (")
	b.WriteString(formatFloat(types.Percent(s.State.Accumulated, s.GCThreshold), 1))
	b.WriteString("%)\n")
	b.WriteString("Pauses This Epoch: ")
	b.WriteString(strconv.FormatUint(s.State.PausesInEpoch, 10))
	b.WriteString("\n")
	if s.State.InFlight {
		b.WriteString("Collection In Flight: yes\n")
	}
	b.WriteString("\n")

	b.WriteString("=== Totals ===\n")
	b.WriteString("GC Pauses: ")
	b.WriteString(strconv.FormatUint(s.TotalPauses, 10))
	if s.LostPauses > 0 {
		b.WriteString(" (")
		b.WriteString(strconv.FormatUint(s.LostPauses, 10))
		b.WriteString(" lost)")
	}
	b.WriteString("\n")
	b.WriteString("GC Time: ")
	b.WriteString(types.FormatSeconds(s.TotalGCTime))
	b.WriteString(" (")
	b.WriteString(formatFloat(types.Percent(s.TotalGCTime, s.Uptime), 2))
	b.WriteString("% of uptime)\n")
	b.WriteString("Warnings: ")
	b.WriteString(strconv.FormatUint(s.Warnings, 10))
	b.WriteString("\n")
	b.WriteString("Enforced: ")
	b.WriteString(strconv.FormatBool(s.Enforced))
	b.WriteString("\n")
	if s.EnforceErrors > 0 {
		b.WriteString("Enforcement Errors: ")
		b.WriteString(strconv.FormatUint(s.EnforceErrors, 10))
		b.WriteString("\n")
	}
	if s.RSS > 0 {
		b.WriteString("RSS: ")
		b.WriteString(types.FormatBytes(s.RSS))
		b.WriteString("\n")
	}

	if len(r.events) > 0 {
		stats := analysis.EventStats(r.events)
		b.WriteString("\n=== Recent Pauses ===\n")
		writeStats(b, stats)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeStats(b *strings.Builder, s analysis.PauseStats) {
	b.WriteString("Count: ")
	b.WriteString(strconv.Itoa(s.Count))
	b.WriteString(" | Total: ")
	b.WriteString(s.Total.Round(time.Microsecond).String())
	b.WriteString("\n")
	b.WriteString("Avg: ")
	b.WriteString(s.Avg.Round(time.Microsecond).String())
	b.WriteString(" | Max: ")
	b.WriteString(s.Max.Round(time.Microsecond).String())
	b.WriteString(" | P95: ")
	b.WriteString(s.P95.Round(time.Microsecond).String())
	b.WriteString(" | P99: ")
	b.WriteString(s.P99.Round(time.Microsecond).String())
	b.WriteString("\n")
}

// formatFloat formats a float with the specified number of decimal places
func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// GenerateJSONReport writes the status, and events if any, as JSON.
func (r *Reporter) GenerateJSONReport(w io.Writer, indent bool) error {
	if r.status == nil {
		return ErrNoStatusData
	}

	report := struct {
		Status *types.Status      `json:"status"`
		Health *HealthCheckStatus `json:"health"`
		Events []types.GCEvent    `json:"events,omitempty"`
	}{
		Status: r.status,
		Health: r.GenerateHealthCheck(),
		Events: r.events,
	}

	encoder := json.NewEncoder(w)
	if indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(report)
}

// GenerateEventsReport writes the recent GC events as a table.
func (r *Reporter) GenerateEventsReport(w io.Writer) error {
	if len(r.events) == 0 {
		return ErrNoEventsData
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	defer tw.Flush()

	b := getBuilder()
	defer putBuilder(b)

	b.WriteString("=== GC Events Report ===\n\n")
	b.WriteString("Seq#\tStart Time\tEnd Time\tDuration\t\n")
	b.WriteString("----\t----------\t--------\t--------\t\n")
	io.WriteString(tw, b.String())
	b.Reset()

	for _, event := range r.events {
		b.WriteString(strconv.FormatUint(uint64(event.Sequence), 10))
		b.WriteByte('\t')
		b.WriteString(event.StartTime.Format("15:04:05.000"))
		b.WriteByte('\t')
		b.WriteString(event.EndTime.Format("15:04:05.000"))
		b.WriteByte('\t')
		b.WriteString(event.Duration.Round(time.Microsecond).String())
		b.WriteString("\t\n")

		io.WriteString(tw, b.String())
		b.Reset()
	}

	return nil
}

// GenerateHealthCheck scores the status: a window approaching its threshold
// degrades the score and an enforced agent is critical.
func (r *Reporter) GenerateHealthCheck() *HealthCheckStatus {
	if r.status == nil {
		return &HealthCheckStatus{
			Status:      "unknown",
			Score:       0,
			Issues:      []string{"No status data available"},
			Summary:     "Unable to determine agent health",
			LastUpdated: time.Now(),
		}
	}
	s := r.status

	status := &HealthCheckStatus{
		Status:      "healthy",
		Score:       100,
		Issues:      make([]string, 0, 4),
		LastUpdated: time.Now(),
	}

	if s.Enforced || s.Classification == types.Enforcing {
		status.Score -= PenaltyEnforced
		status.Issues = append(status.Issues, "GC death spiral enforced")
	} else if s.Classification == types.Warning {
		status.Score -= PenaltyWarning
		status.Issues = append(status.Issues, "GC time above warning threshold")
	}

	if s.EnforceErrors > 0 {
		status.Score -= PenaltyEnforceError
		status.Issues = append(status.Issues, "Enforcement side effects failed")
	}

	if s.LostPauses > 0 {
		status.Score -= PenaltyLostPauses
		status.Issues = append(status.Issues, "GC pauses were not observed")
	}

	if status.Score < 0 {
		status.Score = 0
	}

	switch {
	case status.Score >= HealthScoreHealthy:
		status.Status = "healthy"
		status.Summary = "GC time is within limits"
	case status.Score >= HealthScoreWarning:
		status.Status = "warning"
		status.Summary = "GC time needs attention"
	default:
		status.Status = "critical"
		status.Summary = "GC death spiral detected"
	}

	return status
}
