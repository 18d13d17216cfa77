// Package enforce maps detector verdicts to their side effects: touching the
// warning marker, delivering a signal to the current process, or handing off
// to the out-of-memory injector.
//
// Everything Apply needs is prepared when the policy is built. The goroutines
// that finish an enforcement are started up front, so the notification path
// only performs a syscall or a non-blocking channel send.
package enforce

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/internal/metrics"
	"github.com/kyungseok-lee/go-gcquake/internal/window"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Trigger is a pre-started worker woken by a non-blocking send.
type Trigger interface {
	Trigger()
}

// Policy applies a classification to the attached process.
type Policy struct {
	opts    *config.Options
	window  *window.Window
	logger  *zap.Logger
	metrics *metrics.Metrics

	marker    Toucher
	signaler  Signaler
	injector  Trigger
	escalator Trigger

	fired    atomic.Bool
	warnings atomic.Uint64
	errors   atomic.Uint64
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets the policy logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

// WithMetrics sets the collectors updated by the policy.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// WithToucher replaces the warning marker.
func WithToucher(t Toucher) Option {
	return func(p *Policy) { p.marker = t }
}

// WithSignaler replaces the self-signaler.
func WithSignaler(s Signaler) Option {
	return func(p *Policy) { p.signaler = s }
}

// WithInjector replaces the out-of-memory injector.
func WithInjector(t Trigger) Option {
	return func(p *Policy) { p.injector = t }
}

// WithEscalator replaces the SIGKILL escalator.
func WithEscalator(t Trigger) Option {
	return func(p *Policy) { p.escalator = t }
}

// New builds a policy for w. Workers that are not replaced by options are
// created here and must be started with Start before the first GC
// notification.
func New(opts *config.Options, w *window.Window, options ...Option) (*Policy, error) {
	p := &Policy{
		opts:   opts,
		window: w,
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(p)
	}

	if p.marker == nil && opts.WarnEnabled {
		m, err := NewMarker(opts.WarnPath)
		if err != nil {
			return nil, err
		}
		p.marker = m
	}
	if p.signaler == nil {
		p.signaler = NewSelfSignaler()
	}

	if opts.Action.IsOOM() {
		if p.injector == nil {
			p.injector = NewInjector(opts, p.logger)
		}
	} else if sig, _ := opts.Action.Signal(); p.escalator == nil && opts.KillGrace > 0 && sig != sigKill {
		p.escalator = NewEscalator(opts.KillGrace, p.signaler, p.logger)
	}

	return p, nil
}

// Start launches the pre-started enforcement workers owned by the policy.
func (p *Policy) Start(ctx context.Context) {
	if s, ok := p.injector.(interface{ Start(context.Context) }); ok {
		s.Start(ctx)
	}
	if s, ok := p.escalator.(interface{ Start(context.Context) }); ok {
		s.Start(ctx)
	}
}

// Apply performs the side effect for class observed at now.
func (p *Policy) Apply(class types.Classification, now time.Time) {
	switch class {
	case types.Warning:
		p.warn(now)
	case types.Enforcing:
		p.enforce()
	}
}

func (p *Policy) warn(now time.Time) {
	if p.marker == nil || !p.window.MarkWarned(now) {
		return
	}

	err := p.marker.Touch()
	p.warnings.Add(1)
	p.metrics.ObserveWarning(err != nil)
	if err != nil {
		p.errors.Add(1)
		p.logger.Error("failed to touch warning marker",
			zap.String("path", p.opts.WarnPath),
			zap.Error(err))
		return
	}
	p.logger.Warn("GC time above warning threshold, touched marker",
		zap.Duration("accumulated", p.window.Accumulated()),
		zap.Duration("warn_threshold", p.opts.WarnThreshold),
		zap.String("path", p.opts.WarnPath))
}

func (p *Policy) enforce() {
	if !p.fired.CompareAndSwap(false, true) {
		return
	}

	p.logger.Error("GC death spiral detected",
		zap.Duration("accumulated", p.window.Accumulated()),
		zap.Duration("threshold", p.opts.GCThreshold),
		zap.Duration("window", p.opts.Window),
		zap.Stringer("action", p.opts.Action))

	sig, ok := p.opts.Action.Signal()
	if !ok {
		p.metrics.ObserveEnforcement(false)
		p.injector.Trigger()
		return
	}

	if err := p.signaler.Signal(sig); err != nil {
		p.errors.Add(1)
		p.metrics.ObserveEnforcement(true)
		p.logger.Error("failed to deliver enforcement signal",
			zap.Stringer("signal", sig),
			zap.Error(err))
		return
	}
	p.metrics.ObserveEnforcement(false)
	if p.escalator != nil {
		p.escalator.Trigger()
	}
}

// Fired reports whether the terminal action was taken.
func (p *Policy) Fired() bool {
	return p.fired.Load()
}

// Warnings returns the number of warning episodes acted on.
func (p *Policy) Warnings() uint64 {
	return p.warnings.Load()
}

// Errors returns the number of failed side effects.
func (p *Policy) Errors() uint64 {
	return p.errors.Load()
}
