// Package monitor receives GC begin/end notifications from the host runtime,
// accumulates their durations into the measurement window and hands every
// verdict to the enforcement policy.
//
// The notification path uses atomics and integer arithmetic only. Logging
// happens on classification transitions, which occur a handful of times in a
// process lifetime.
package monitor

import (
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kyungseok-lee/go-gcquake/internal/metrics"
	"github.com/kyungseok-lee/go-gcquake/internal/window"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

const noBegin = math.MinInt64

// Applier performs the side effects of a classification.
type Applier interface {
	Apply(class types.Classification, now time.Time)
}

// Monitor is the GC event entry point for one attached agent.
type Monitor struct {
	window  *window.Window
	policy  Applier
	logger  *zap.Logger
	metrics *metrics.Metrics

	onTransition func(types.Transition)

	begin     atomic.Int64 // window offset of the in-flight collection
	last      atomic.Uint32
	lastEpoch atomic.Uint64
	pauses    atomic.Uint64
	gcTime    atomic.Int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithMetrics sets the collectors updated by the monitor.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// OnTransition registers fn to run, on the notifying goroutine, whenever the
// classification changes.
func OnTransition(fn func(types.Transition)) Option {
	return func(m *Monitor) { m.onTransition = fn }
}

// New creates a monitor feeding w and applying verdicts through policy.
func New(w *window.Window, policy Applier, opts ...Option) *Monitor {
	m := &Monitor{
		window: w,
		policy: policy,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	m.begin.Store(noBegin)
	return m
}

// OnGCBegin records the start of a collection.
func (m *Monitor) OnGCBegin(ts time.Time) {
	m.begin.Store(m.window.Offset(ts))
}

// OnGCEnd closes the collection opened by OnGCBegin and returns the
// resulting classification. An end without a matching begin, or one that
// precedes its begin, is evaluated without accumulating anything.
func (m *Monitor) OnGCEnd(ts time.Time) types.Classification {
	begin := m.begin.Swap(noBegin)
	end := m.window.Offset(ts)
	if begin == noBegin || end < begin {
		return m.evaluate(ts, 0)
	}
	return m.record(ts, time.Duration(end-begin))
}

// Record accounts for a collection that is already over. It is used by
// sources that learn about pauses only after the fact.
func (m *Monitor) Record(begin, end time.Time) types.Classification {
	d := end.Sub(begin)
	if d < 0 {
		return m.evaluate(end, 0)
	}
	return m.record(end, d)
}

// Poll evaluates the window at now without a GC event. Time spent in a
// collection that has begun but not ended counts toward the thresholds.
func (m *Monitor) Poll(now time.Time) types.Classification {
	var pending time.Duration
	if begin := m.begin.Load(); begin != noBegin {
		if off := m.window.Offset(now); off > begin {
			pending = time.Duration(off - begin)
		}
	}
	return m.evaluate(now, pending)
}

func (m *Monitor) record(end time.Time, d time.Duration) types.Classification {
	// A pause that straddles an epoch boundary belongs to the new epoch.
	m.window.Expire(m.window.Offset(end))
	m.window.Add(d)

	m.pauses.Add(1)
	m.gcTime.Add(int64(d))
	m.metrics.ObservePause(d.Seconds())

	return m.evaluate(end, 0)
}

func (m *Monitor) evaluate(now time.Time, pending time.Duration) types.Classification {
	class := m.window.EvaluatePending(now, pending)

	if epoch := m.window.Epoch(); m.lastEpoch.Swap(epoch) != epoch {
		m.metrics.ObserveReset()
	}
	if prev := types.Classification(m.last.Swap(uint32(class))); prev != class {
		m.transition(now, prev, class)
	}

	m.policy.Apply(class, now)
	return class
}

func (m *Monitor) transition(now time.Time, from, to types.Classification) {
	t := types.Transition{
		At:          time.Duration(m.window.Offset(now)),
		From:        from,
		To:          to,
		Accumulated: m.window.Accumulated(),
		Epoch:       m.window.Epoch(),
	}

	m.metrics.SetClassification(to)
	m.logger.Info("GC classification changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Duration("accumulated", t.Accumulated),
		zap.Uint64("epoch", t.Epoch))

	if m.onTransition != nil {
		m.onTransition(t)
	}
}

// Classification returns the most recent verdict.
func (m *Monitor) Classification() types.Classification {
	return types.Classification(m.last.Load())
}

// TotalPauses returns the number of collections recorded since attach.
func (m *Monitor) TotalPauses() uint64 {
	return m.pauses.Load()
}

// TotalGCTime returns the GC time recorded since attach.
func (m *Monitor) TotalGCTime() time.Duration {
	return time.Duration(m.gcTime.Load())
}

// State returns the window state, including whether a collection is in
// flight.
func (m *Monitor) State() types.WindowState {
	s := m.window.State()
	s.InFlight = m.begin.Load() != noBegin
	return s
}

// Window returns the measurement window fed by the monitor.
func (m *Monitor) Window() *window.Window {
	return m.window
}
