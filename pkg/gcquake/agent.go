// Package gcquake detects and ends garbage-collection death spirals in the
// current process.
//
// An attached agent measures the time the Go runtime spends collecting
// garbage inside fixed, non-overlapping windows. When the cumulative GC time
// in one window reaches the configured threshold the agent takes a terminal
// action: it either delivers a signal to the process or drives the runtime
// into its own out-of-memory failure so the usual crash diagnostics run.
// An optional lower threshold touches a marker file first.
//
// Basic usage:
//
//	// Kill the process with SIGKILL once 20s of GC time accrue within 2 minutes
//	agent, err := gcquake.Attach("20,120,9")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer agent.Detach()
//
// Or attach from the GCQUAKE_OPTIONS environment variable by importing
// the auto package for its side effect:
//
//	import _ "github.com/kyungseok-lee/go-gcquake/pkg/gcquake/auto"
package gcquake

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/kyungseok-lee/go-gcquake/internal/collector"
	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/internal/enforce"
	"github.com/kyungseok-lee/go-gcquake/internal/metrics"
	"github.com/kyungseok-lee/go-gcquake/internal/monitor"
	"github.com/kyungseok-lee/go-gcquake/internal/window"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Re-export commonly used types for convenience
type (
	Classification = types.Classification
	Status         = types.Status
	GCEvent        = types.GCEvent
	Transition     = types.Transition
	Options        = config.Options
	Source         = collector.Source
)

// Classifications
const (
	Normal    = types.Normal
	Warning   = types.Warning
	Enforcing = types.Enforcing
)

// GC time sources
const (
	SourcePause = collector.SourcePause
	SourceCPU   = collector.SourceCPU
)

// Re-export commonly used errors
var (
	ErrInvalidOptions = types.ErrInvalidOptions
)

// Monitor accepts GC notifications for an agent attached WithoutCollector.
type Monitor interface {
	OnGCBegin(ts time.Time)
	OnGCEnd(ts time.Time) Classification
	Record(begin, end time.Time) Classification
	Poll(now time.Time) Classification
}

// Agent is one attached death-spiral detector.
type Agent struct {
	id         string
	pid        int
	attachedAt time.Time
	opts       *config.Options
	logger     *zap.Logger

	window    *window.Window
	policy    *enforce.Policy
	monitor   *monitor.Monitor
	collector *collector.Collector

	cancel   context.CancelFunc
	detached atomic.Bool
}

type settings struct {
	logger       *zap.Logger
	registry     prometheus.Registerer
	source       collector.Source
	interval     time.Duration
	noCollector  bool
	onTransition func(Transition)
}

// Option configures Attach.
type Option func(*settings)

// WithLogger sets the agent logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithRegistry registers the agent's Prometheus collectors with r.
func WithRegistry(r prometheus.Registerer) Option {
	return func(s *settings) { s.registry = r }
}

// WithSource selects how GC time is measured.
func WithSource(src Source) Option {
	return func(s *settings) { s.source = src }
}

// WithInterval sets how often the window is evaluated without a GC event.
func WithInterval(d time.Duration) Option {
	return func(s *settings) { s.interval = d }
}

// WithoutCollector leaves the agent unconnected to the Go runtime. GC
// activity must be fed through Agent.Monitor.
func WithoutCollector() Option {
	return func(s *settings) { s.noCollector = true }
}

// OnTransition registers fn to run whenever the classification changes.
func OnTransition(fn func(Transition)) Option {
	return func(s *settings) { s.onTransition = fn }
}

// Attach parses options and starts watching the current process. A malformed
// option string is an error; the caller must not run with undefined
// thresholds.
func Attach(options string, opts ...Option) (*Agent, error) {
	s := &settings{logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}

	parsed, err := config.Parse(options)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		id:         uuid.NewString(),
		pid:        os.Getpid(),
		attachedAt: time.Now(),
		opts:       parsed,
	}
	a.logger = s.logger.With(zap.String("agent_id", a.id))

	for _, note := range parsed.Notes {
		a.logger.Warn("option string: " + note)
	}
	if enforce.EnableCoreDump(parsed.Action) {
		a.logger.Debug("traceback level set to crash for core-dumping action",
			zap.Stringer("action", parsed.Action))
	}

	a.window = window.New(parsed, a.attachedAt)

	var m *metrics.Metrics
	if s.registry != nil {
		m = metrics.New(s.registry, func() float64 {
			return a.window.Accumulated().Seconds()
		})
	}

	a.policy, err = enforce.New(parsed, a.window,
		enforce.WithLogger(a.logger),
		enforce.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	monitorOpts := []monitor.Option{monitor.WithLogger(a.logger), monitor.WithMetrics(m)}
	if s.onTransition != nil {
		monitorOpts = append(monitorOpts, monitor.OnTransition(s.onTransition))
	}
	a.monitor = monitor.New(a.window, a.policy, monitorOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.policy.Start(ctx)

	if !s.noCollector {
		a.collector = collector.New(a.monitor, &collector.Config{
			Interval: s.interval,
			Source:   s.source,
			Logger:   a.logger,
		})
		if err := a.collector.Start(ctx); err != nil {
			cancel()
			return nil, err
		}
	}

	a.logger.Info("gcquake attached",
		zap.String("options", parsed.String()),
		zap.Int("pid", a.pid))
	return a, nil
}

// AttachFromEnv attaches with the options in GCQUAKE_OPTIONS, loading a .env
// file first if present. It returns a nil agent and no error when the
// variable is unset.
func AttachFromEnv(opts ...Option) (*Agent, error) {
	options, ok := config.FromEnv()
	if !ok {
		return nil, nil
	}
	return Attach(options, opts...)
}

// NewLogger builds the production logger used by the auto package, at the
// level named by GCQUAKE_LOG_LEVEL.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(config.LogLevel())
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("gcquake"), nil
}

// Detach stops the collector and the enforcement workers. A breach already
// being enforced is not cancelled by the runtime, only by process exit.
func (a *Agent) Detach() {
	if !a.detached.CompareAndSwap(false, true) {
		return
	}
	if a.collector != nil {
		a.collector.Stop()
	}
	a.cancel()
	a.logger.Info("gcquake detached")
}

// ID returns the agent instance id.
func (a *Agent) ID() string {
	return a.id
}

// Options returns the parsed options.
func (a *Agent) Options() *Options {
	return a.opts
}

// Monitor returns the GC event entry points of the agent.
func (a *Agent) Monitor() Monitor {
	return a.monitor
}

// Classification returns the most recent verdict.
func (a *Agent) Classification() Classification {
	return a.monitor.Classification()
}

// Events returns the most recent GC events seen by the collector.
func (a *Agent) Events() []GCEvent {
	if a.collector == nil {
		return nil
	}
	return a.collector.Events()
}

// Status returns a snapshot of the agent state.
func (a *Agent) Status() *Status {
	now := time.Now()
	s := &Status{
		AgentID:        a.id,
		PID:            a.pid,
		AttachedAt:     a.attachedAt,
		Uptime:         now.Sub(a.attachedAt),
		Options:        a.opts.String(),
		GCThreshold:    a.opts.GCThreshold,
		Window:         a.opts.Window,
		Classification: a.monitor.Classification(),
		State:          a.monitor.State(),
		TotalPauses:    a.monitor.TotalPauses(),
		TotalGCTime:    a.monitor.TotalGCTime(),
		Warnings:       a.policy.Warnings(),
		Enforced:       a.policy.Fired(),
		EnforceErrors:  a.policy.Errors(),
		Timestamp:      now,
	}
	if a.opts.WarnEnabled {
		s.WarnThreshold = a.opts.WarnThreshold
	}
	if a.collector != nil {
		s.LostPauses = a.collector.Lost()
	}
	if proc, err := process.NewProcess(int32(a.pid)); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			s.RSS = mem.RSS
		}
	}
	return s
}
