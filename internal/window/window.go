// Package window implements the measurement window and the death-spiral
// detector that classifies it.
//
// A window is a fixed-length, non-overlapping epoch. GC time accumulates
// until the epoch elapses without a breach, at which point the window slides
// forward to the evaluation time and the accumulator is cleared. Once the hard
// threshold is reached the window never resets again.
//
// All state is held in atomics so the window can be updated from GC
// notification goroutines and read by a poll goroutine without locks or
// allocation.
package window

import (
	"sync/atomic"
	"time"

	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Window is the measurement window for one attached agent. Times are stored
// as nanosecond offsets from the origin passed to New.
type Window struct {
	origin    time.Time
	length    int64
	threshold int64
	warn      int64 // 0 when no warning threshold is configured

	start       atomic.Int64
	accumulated atomic.Int64
	lastWarn    atomic.Int64
	epoch       atomic.Uint64
	pauses      atomic.Uint64
	warned      atomic.Bool
	breached    atomic.Bool
}

// New creates a window whose first epoch starts at origin.
func New(opts *config.Options, origin time.Time) *Window {
	w := &Window{
		origin:    origin,
		length:    int64(opts.Window),
		threshold: int64(opts.GCThreshold),
	}
	if opts.WarnEnabled {
		w.warn = int64(opts.WarnThreshold)
	}
	return w
}

// Origin returns the attach time the window measures from.
func (w *Window) Origin() time.Time {
	return w.origin
}

// Offset converts a timestamp into the window's nanosecond time base.
func (w *Window) Offset(t time.Time) int64 {
	return int64(t.Sub(w.origin))
}

// Expire slides the window forward to now if the current epoch has elapsed
// and no breach was recorded in it. It reports whether a reset happened.
//
// The accumulator is read before the start time is swapped and that amount is
// subtracted afterwards, so a pause that races the reset is carried into the
// new epoch rather than lost.
func (w *Window) Expire(now int64) bool {
	start := w.start.Load()
	if now-start <= w.length || w.breached.Load() {
		return false
	}

	acc := w.accumulated.Load()
	if !w.start.CompareAndSwap(start, now) {
		return false
	}
	w.accumulated.Add(-acc)
	w.pauses.Store(0)
	w.warned.Store(false)
	w.epoch.Add(1)
	return true
}

// Add accumulates one GC pause into the current epoch.
func (w *Window) Add(d time.Duration) {
	if d <= 0 {
		return
	}
	w.accumulated.Add(int64(d))
	w.pauses.Add(1)
}

// Evaluate classifies the window at now. An elapsed epoch without a breach is
// reset and classified Normal. Evaluating again without new GC activity
// returns the same classification.
func (w *Window) Evaluate(now time.Time) types.Classification {
	return w.EvaluatePending(now, 0)
}

// EvaluatePending is Evaluate with an in-flight collection's elapsed time
// counted toward the thresholds without being committed.
func (w *Window) EvaluatePending(now time.Time, pending time.Duration) types.Classification {
	if w.Expire(w.Offset(now)) {
		return types.Normal
	}

	acc := w.accumulated.Load()
	if pending > 0 {
		acc += int64(pending)
	}

	switch {
	case acc >= w.threshold:
		w.breached.Store(true)
		return types.Enforcing
	case w.warn > 0 && acc >= w.warn:
		return types.Warning
	default:
		return types.Normal
	}
}

// MarkWarned records a warning action at now. It returns false if a warning
// was already recorded in the current epoch.
func (w *Window) MarkWarned(now time.Time) bool {
	if !w.warned.CompareAndSwap(false, true) {
		return false
	}
	w.lastWarn.Store(w.Offset(now))
	return true
}

// Accumulated returns the GC time accumulated in the current epoch.
func (w *Window) Accumulated() time.Duration {
	return time.Duration(w.accumulated.Load())
}

// Epoch returns the number of resets since the window was created.
func (w *Window) Epoch() uint64 {
	return w.epoch.Load()
}

// Breached reports whether the hard threshold was ever reached.
func (w *Window) Breached() bool {
	return w.breached.Load()
}

// State returns a copy of the window's current state.
func (w *Window) State() types.WindowState {
	return types.WindowState{
		Epoch:         w.epoch.Load(),
		Start:         time.Duration(w.start.Load()),
		Accumulated:   time.Duration(w.accumulated.Load()),
		LastWarnAt:    time.Duration(w.lastWarn.Load()),
		Warned:        w.warned.Load(),
		Breached:      w.breached.Load(),
		PausesInEpoch: w.pauses.Load(),
	}
}
