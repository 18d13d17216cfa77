package reporting

import (
	"encoding/json"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/kyungseok-lee/go-gcquake/internal/analysis"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// GenerateSimulationReport writes a replay outcome followed by its
// per-pause timeline.
func GenerateSimulationReport(w io.Writer, sim *analysis.Simulation) error {
	if sim == nil {
		return ErrNoSimulationData
	}

	b := getBuilder()
	defer putBuilder(b)
	b.Grow(1024)

	b.WriteString("=== gcquake Simulation ===\n\n")
	b.WriteString("Options: ")
	b.WriteString(sim.Options)
	b.WriteString("\n")
	b.WriteString("Outcome: ")
	if sim.Enforced {
		b.WriteString("enforced (")
		b.WriteString(sim.Action)
		b.WriteString(") at +")
		b.WriteString(types.FormatSeconds(sim.EnforcedAt))
	} else {
		b.WriteString("not enforced, final classification ")
		b.WriteString(sim.Final.String())
	}
	b.WriteString("\n")
	b.WriteString("Epoch Resets: ")
	b.WriteString(strconv.FormatUint(sim.Epochs, 10))
	b.WriteString("\n")
	if len(sim.Warnings) > 0 {
		b.WriteString("Warnings At:")
		for _, at := range sim.Warnings {
			b.WriteString(" +")
			b.WriteString(types.FormatSeconds(at))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n=== Pauses ===\n")
	writeStats(b, sim.Stats)

	recommendations := analysis.Recommendations(sim.Stats)
	if len(recommendations) > 0 {
		b.WriteString("\n=== Recommendations ===\n")
		for i, rec := range recommendations {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(rec)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	b.Reset()

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	b.WriteString("At\tPause\tAccumulated\tEpoch\tClassification\t\n")
	b.WriteString("--\t-----\t-----------\t-----\t--------------\t\n")
	for _, step := range sim.Steps {
		b.WriteString(types.FormatSeconds(step.At))
		b.WriteByte('\t')
		b.WriteString(step.Duration.Round(time.Millisecond).String())
		b.WriteByte('\t')
		b.WriteString(types.FormatSeconds(step.Accumulated))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(step.Epoch, 10))
		b.WriteByte('\t')
		b.WriteString(step.Classification.String())
		b.WriteString("\t\n")
	}
	if _, err := io.WriteString(tw, b.String()); err != nil {
		return err
	}
	return tw.Flush()
}

// GenerateSimulationJSON writes a replay outcome as JSON.
func GenerateSimulationJSON(w io.Writer, sim *analysis.Simulation, indent bool) error {
	if sim == nil {
		return ErrNoSimulationData
	}

	encoder := json.NewEncoder(w)
	if indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(sim)
}
