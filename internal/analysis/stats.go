package analysis

import (
	"slices"
	"time"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Pause duration thresholds used for summaries
const (
	LongAvgPauseTimeThreshold = 100 * time.Millisecond
	VeryLongP99PauseThreshold = 500 * time.Millisecond
)

// PauseStats summarizes a set of GC pauses.
type PauseStats struct {
	Count int           `json:"count" yaml:"count"`
	Total time.Duration `json:"total" yaml:"total"`
	Min   time.Duration `json:"min" yaml:"min"`
	Avg   time.Duration `json:"avg" yaml:"avg"`
	Max   time.Duration `json:"max" yaml:"max"`
	P95   time.Duration `json:"p95" yaml:"p95"`
	P99   time.Duration `json:"p99" yaml:"p99"`
}

// Stats computes pause statistics. durations is not modified.
func Stats(durations []time.Duration) PauseStats {
	if len(durations) == 0 {
		return PauseStats{}
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	s := PauseStats{
		Count: len(sorted),
		Total: total,
		Min:   sorted[0],
		Avg:   total / time.Duration(len(sorted)),
		Max:   sorted[len(sorted)-1],
	}

	p95Index := int(float64(len(sorted)) * 0.95)
	p99Index := int(float64(len(sorted)) * 0.99)
	if p95Index < len(sorted) {
		s.P95 = sorted[p95Index]
	}
	if p99Index < len(sorted) {
		s.P99 = sorted[p99Index]
	}
	return s
}

// EventStats computes pause statistics for GC events.
func EventStats(events []types.GCEvent) PauseStats {
	durations := make([]time.Duration, len(events))
	for i, ev := range events {
		durations[i] = ev.Duration
	}
	return Stats(durations)
}

// DistributionBuckets lists the Distribution keys in ascending order.
var DistributionBuckets = []string{"0-1ms", "1-5ms", "5-10ms", "10-50ms", "50-100ms", "100ms-1s", "1s+"}

// Distribution buckets pause durations.
func Distribution(durations []time.Duration) map[string]int {
	distribution := make(map[string]int, len(DistributionBuckets))
	for _, b := range DistributionBuckets {
		distribution[b] = 0
	}

	for _, d := range durations {
		switch {
		case d < time.Millisecond:
			distribution["0-1ms"]++
		case d < 5*time.Millisecond:
			distribution["1-5ms"]++
		case d < 10*time.Millisecond:
			distribution["5-10ms"]++
		case d < 50*time.Millisecond:
			distribution["10-50ms"]++
		case d < 100*time.Millisecond:
			distribution["50-100ms"]++
		case d < time.Second:
			distribution["100ms-1s"]++
		default:
			distribution["1s+"]++
		}
	}

	return distribution
}

// Recommendations returns operator hints for a pause summary.
func Recommendations(s PauseStats) []string {
	recommendations := make([]string, 0)

	if s.Avg > LongAvgPauseTimeThreshold {
		recommendations = append(recommendations,
			"Long GC pause times detected. Consider reducing heap size or optimizing allocation patterns.")
	}
	if s.P99 > VeryLongP99PauseThreshold {
		recommendations = append(recommendations,
			"Very long P99 pause times detected. This may impact application responsiveness.")
	}

	return recommendations
}
