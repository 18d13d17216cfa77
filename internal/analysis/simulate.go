package analysis

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/internal/enforce"
	"github.com/kyungseok-lee/go-gcquake/internal/monitor"
	"github.com/kyungseok-lee/go-gcquake/internal/window"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Step is the detector state right after one pause of a simulation.
type Step struct {
	At             time.Duration        `json:"at" yaml:"at"`
	Duration       time.Duration        `json:"duration" yaml:"duration"`
	Accumulated    time.Duration        `json:"accumulated" yaml:"accumulated"`
	Epoch          uint64               `json:"epoch" yaml:"epoch"`
	Classification types.Classification `json:"classification" yaml:"classification"`
}

// Simulation is the outcome of replaying a trace through the detector.
type Simulation struct {
	Options     string               `json:"options" yaml:"options"`
	Stats       PauseStats           `json:"stats" yaml:"stats"`
	Steps       []Step               `json:"steps" yaml:"steps"`
	Transitions []types.Transition   `json:"transitions" yaml:"transitions"`
	Warnings    []time.Duration      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Enforced    bool                 `json:"enforced" yaml:"enforced"`
	EnforcedAt  time.Duration        `json:"enforced_at,omitempty" yaml:"enforced_at,omitempty"`
	Action      string               `json:"action" yaml:"action"`
	Final       types.Classification `json:"final" yaml:"final"`
	Epochs      uint64               `json:"epochs" yaml:"epochs"`
}

// replay holds the simulated clock and stands in for every side effect the
// enforcement policy would take in a live process.
type replay struct {
	origin time.Time
	now    time.Time
	sim    *Simulation
}

func (r *replay) Touch() error {
	r.sim.Warnings = append(r.sim.Warnings, r.now.Sub(r.origin))
	return nil
}

func (r *replay) Signal(unix.Signal) error {
	r.fire()
	return nil
}

func (r *replay) Trigger() {
	r.fire()
}

func (r *replay) fire() {
	if r.sim.Enforced {
		return
	}
	r.sim.Enforced = true
	r.sim.EnforcedAt = r.now.Sub(r.origin)
}

// Simulate replays trace through a private window, monitor and enforcement
// policy configured by opts. Evaluation stops at the first enforcement,
// since a live process would not survive it.
func Simulate(opts *config.Options, trace *Trace) (*Simulation, error) {
	if err := trace.Validate(); err != nil {
		return nil, err
	}

	origin := time.Unix(0, 0)
	sim := &Simulation{
		Options: opts.String(),
		Stats:   Stats(trace.Durations()),
		Action:  opts.Action.String(),
	}
	r := &replay{origin: origin, now: origin, sim: sim}

	w := window.New(opts, origin)
	policy, err := enforce.New(opts, w,
		enforce.WithLogger(zap.NewNop()),
		enforce.WithToucher(r),
		enforce.WithSignaler(r),
		enforce.WithInjector(r),
		enforce.WithEscalator(nopTrigger{}))
	if err != nil {
		return nil, err
	}
	m := monitor.New(w, policy, monitor.OnTransition(func(t types.Transition) {
		sim.Transitions = append(sim.Transitions, t)
	}))

	for _, p := range trace.Sorted() {
		r.now = origin.Add(p.At)
		class := m.Record(r.now.Add(-p.Duration), r.now)

		state := m.State()
		sim.Steps = append(sim.Steps, Step{
			At:             p.At,
			Duration:       p.Duration,
			Accumulated:    state.Accumulated,
			Epoch:          state.Epoch,
			Classification: class,
		})
		if sim.Enforced {
			break
		}
	}

	if !sim.Enforced && trace.End > 0 {
		r.now = origin.Add(trace.End)
		m.Poll(r.now)
	}

	sim.Final = m.Classification()
	sim.Epochs = w.Epoch()
	return sim, nil
}

type nopTrigger struct{}

func (nopTrigger) Trigger() {}
