package analysis

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// TracePause is one recorded collection. At is when it ended, measured from
// the start of the trace.
type TracePause struct {
	At       time.Duration `yaml:"at" json:"at"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// Trace is a recorded sequence of GC pauses. Durations are Go duration
// strings ("250ms", "1m30s"). JSON traces are accepted as YAML.
type Trace struct {
	Pauses []TracePause `yaml:"pauses" json:"pauses"`
	// End extends evaluation past the last pause.
	End time.Duration `yaml:"end,omitempty" json:"end,omitempty"`
}

// ReadTrace decodes a trace from r.
func ReadTrace(r io.Reader) (*Trace, error) {
	var t Trace
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		if err == io.EOF {
			return nil, types.ErrEmptyTrace
		}
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTrace reads a trace file.
func LoadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTrace(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate checks that the trace has pauses with sane times.
func (t *Trace) Validate() error {
	if len(t.Pauses) == 0 {
		return types.ErrEmptyTrace
	}
	for i, p := range t.Pauses {
		if p.Duration < 0 {
			return fmt.Errorf("pause %d: negative duration %s", i, p.Duration)
		}
		if p.At < p.Duration {
			return fmt.Errorf("pause %d: ends at %s before its %s duration elapsed", i, p.At, p.Duration)
		}
	}
	return nil
}

// Sorted returns the pauses ordered by end time.
func (t *Trace) Sorted() []TracePause {
	pauses := slices.Clone(t.Pauses)
	slices.SortStableFunc(pauses, func(a, b TracePause) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		default:
			return 0
		}
	})
	return pauses
}

// Durations returns the pause durations in trace order.
func (t *Trace) Durations() []time.Duration {
	durations := make([]time.Duration, len(t.Pauses))
	for i, p := range t.Pauses {
		durations[i] = p.Duration
	}
	return durations
}
