// Package collector adapts the Go runtime's garbage collector to the GC
// event monitor. A finalizer-rearming sentinel wakes the collector once per
// completed cycle; the collector then turns the runtime's GC CPU accounting
// (or its pause ring) into completed-collection notifications and polls the
// monitor on a ticker so in-flight time and epoch expiry are observed even
// when no collection finishes.
package collector

import (
	"context"
	"runtime"
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Source selects how GC time is measured.
type Source string

const (
	// SourceCPU feeds the GC CPU time of each cycle, scaled to wall-clock
	// time by GOMAXPROCS. It includes concurrent mark work that pauses omit
	// and is the default.
	SourceCPU Source = "cpu"
	// SourcePause feeds every stop-the-world pause from the MemStats ring.
	// Go's pauses stay short even while the collector saturates the CPU.
	SourcePause Source = "pause"
)

const gcCPUMetric = "/cpu/classes/gc/total:cpu-seconds"

// Sink receives collections and periodic evaluations.
type Sink interface {
	Record(begin, end time.Time) types.Classification
	Poll(now time.Time) types.Classification
	State() types.WindowState
}

// Collector feeds GC activity of the current process into a Sink.
type Collector struct {
	mu        sync.RWMutex
	running   atomic.Bool
	sink      Sink
	interval  time.Duration
	source    Source
	maxEvents int
	logger    *zap.Logger
	stopCh    chan struct{}
	wakeCh    chan struct{}
	wg        sync.WaitGroup

	onGCEvent func(types.GCEvent)

	// owned by the collection loop
	lastNumGC uint32
	lastCPU   float64
	scratch   []types.GCEvent
	samples   []metrics.Sample
	status    rate.Sometimes

	events []types.GCEvent
	cycles atomic.Uint64
	lost   atomic.Uint64

	// generation identifies the current run's sentinel
	generation atomic.Uint64
}

// Config holds configuration for the collector
type Config struct {
	// Poll interval (default: 1 second)
	Interval time.Duration

	// Source of GC time (default: SourceCPU)
	Source Source

	// Maximum number of recent events kept for reporting (default: 1000)
	MaxEvents int

	// How often the loop logs a status line (default: 1 minute)
	StatusEvery time.Duration

	Logger *zap.Logger

	// OnGCEvent is called on the collection loop for every pause fed to the sink.
	OnGCEvent func(types.GCEvent)
}

// New creates a collector feeding sink.
func New(sink Sink, config *Config) *Collector {
	if config == nil {
		config = &Config{}
	}

	interval := config.Interval
	if interval <= 0 {
		interval = types.DefaultPollInterval
	}

	source := config.Source
	if source == "" {
		source = SourceCPU
	}

	maxEvents := config.MaxEvents
	if maxEvents <= 0 {
		maxEvents = types.DefaultMaxEvents
	}

	statusEvery := config.StatusEvery
	if statusEvery <= 0 {
		statusEvery = types.DefaultStatusEvery
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		sink:      sink,
		interval:  interval,
		source:    source,
		maxEvents: maxEvents,
		logger:    logger,
		stopCh:    make(chan struct{}),
		wakeCh:    make(chan struct{}, 1),
		onGCEvent: config.OnGCEvent,
		scratch:   make([]types.GCEvent, 0, 256),
		samples:   []metrics.Sample{{Name: gcCPUMetric}},
		status:    rate.Sometimes{Interval: statusEvery},
		events:    make([]types.GCEvent, 0, min(maxEvents, 256)),
	}
}

// Start begins feeding GC activity to the sink.
// Returns ErrCollectorAlreadyRunning if the collector is already running.
// The collector will stop when the context is cancelled or Stop() is called.
func (c *Collector) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return types.ErrCollectorAlreadyRunning
	}

	c.mu.Lock()
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	// Collections that finished before Start are not replayed.
	snap := types.NewGCSnapshotPooled()
	c.lastNumGC = snap.NumGC
	snap.Release()
	c.lastCPU = c.readGCCPU()

	armSentinel(c, c.generation.Add(1))

	c.wg.Add(1)
	go c.collectLoop(ctx)

	return nil
}

// Stop stops the collection loop and waits for it to finish.
// It is safe to call Stop multiple times.
func (c *Collector) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.mu.Lock()
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}

// IsRunning returns whether the collector is currently running
func (c *Collector) IsRunning() bool {
	return c.running.Load()
}

// Source returns the configured GC time source.
func (c *Collector) Source() Source {
	return c.source
}

// Cycles returns the number of GC cycles the collector was woken for.
func (c *Collector) Cycles() uint64 {
	return c.cycles.Load()
}

// Lost returns the number of pauses that rotated out of the runtime's ring
// before the collector could read them.
func (c *Collector) Lost() uint64 {
	return c.lost.Load()
}

// Events returns a copy of the most recent events fed to the sink.
func (c *Collector) Events() []types.GCEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.events) == 0 {
		return nil
	}

	result := make([]types.GCEvent, len(c.events))
	copy(result, c.events)
	return result
}

// wake is called from the finalizer goroutine after every GC cycle.
func (c *Collector) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Collector) collectLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.mu.RLock()
	stopCh := c.stopCh
	c.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			c.running.Store(false)
			return
		case <-stopCh:
			return
		case <-c.wakeCh:
			c.cycles.Add(1)
			c.collect(time.Now())
		case now := <-ticker.C:
			// Cycles may finish without the sentinel being finalized yet.
			c.collect(now)
			c.sink.Poll(now)
			c.status.Do(c.logStatus)
		}
	}
}

func (c *Collector) collect(now time.Time) {
	if c.source == SourceCPU {
		c.collectCPU(now)
		return
	}

	snap := types.NewGCSnapshotPooled()
	c.collectPauses(snap)
	snap.Release()
}

// collectPauses feeds every pause in snap newer than the last one seen.
func (c *Collector) collectPauses(snap *types.GCSnapshot) {
	events, truncated := snap.Pauses(c.lastNumGC, c.scratch)
	c.scratch = events[:0]

	if truncated {
		lost := snap.NumGC - c.lastNumGC - uint32(len(events))
		c.lost.Add(uint64(lost))
		c.logger.Warn("GC pause ring overflowed, pauses were not observed",
			zap.Uint32("lost", lost))
	}
	c.lastNumGC = snap.NumGC

	for _, ev := range events {
		c.sink.Record(ev.StartTime, ev.EndTime)
		if c.onGCEvent != nil {
			c.onGCEvent(ev)
		}
	}
	c.addEvents(events)
}

// collectCPU feeds the GC CPU time spent since the last call as one
// collection ending at now.
func (c *Collector) collectCPU(now time.Time) {
	total := c.readGCCPU()
	delta := total - c.lastCPU
	c.lastCPU = total
	if delta <= 0 {
		return
	}

	wall := time.Duration(delta / float64(runtime.GOMAXPROCS(0)) * float64(time.Second))
	if wall <= 0 {
		return
	}

	ev := types.GCEvent{StartTime: now.Add(-wall), EndTime: now, Duration: wall}
	c.sink.Record(ev.StartTime, ev.EndTime)
	if c.onGCEvent != nil {
		c.onGCEvent(ev)
	}
	c.scratch = append(c.scratch[:0], ev)
	c.addEvents(c.scratch)
	c.scratch = c.scratch[:0]
}

func (c *Collector) readGCCPU() float64 {
	metrics.Read(c.samples)
	if c.samples[0].Value.Kind() != metrics.KindFloat64 {
		return 0
	}
	return c.samples[0].Value.Float64()
}

// addEvents appends events to the recent history
func (c *Collector) addEvents(events []types.GCEvent) {
	if len(events) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, events...)

	// Keep only the last maxEvents events
	if len(c.events) > c.maxEvents {
		excess := len(c.events) - c.maxEvents
		c.events = append(c.events[:0], c.events[excess:]...)
	}
}

func (c *Collector) logStatus() {
	state := c.sink.State()
	c.logger.Debug("gcquake status",
		zap.Uint64("epoch", state.Epoch),
		zap.Duration("accumulated", state.Accumulated),
		zap.Uint64("pauses_in_epoch", state.PausesInEpoch),
		zap.Bool("breached", state.Breached),
		zap.Uint64("cycles", c.cycles.Load()))
}

// sentinel is an unreachable object whose finalizer runs once per GC cycle
// and re-arms itself while the run that armed it is current.
type sentinel struct {
	c   *Collector
	gen uint64
}

func armSentinel(c *Collector, gen uint64) {
	runtime.SetFinalizer(&sentinel{c: c, gen: gen}, sentinelFinalizer)
}

func sentinelFinalizer(s *sentinel) {
	if !s.c.running.Load() || s.c.generation.Load() != s.gen {
		return
	}
	s.c.wake()
	runtime.SetFinalizer(s, sentinelFinalizer)
}
