package enforce

import (
	"context"
	"math"
	"os"
	"os/exec"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/kyungseok-lee/go-gcquake/internal/config"
)

// Injector routes enforcement through the runtime's own out-of-memory
// failure. It runs on a goroutine started at attach time so the notification
// path only has to wake it.
type Injector struct {
	pid      int
	dumpPath string
	command  string
	logger   *zap.Logger
	trigger  chan struct{}
	done     chan struct{}

	// exhaust never returns in production; tests replace it.
	exhaust func()
}

// NewInjector creates an injector for opts; call Start before triggering it.
func NewInjector(opts *config.Options, logger *zap.Logger) *Injector {
	pid := os.Getpid()
	inj := &Injector{
		pid:     pid,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
		exhaust: exhaustHeap,
	}
	if opts.HeapDumpPath != "" {
		inj.dumpPath = config.ExpandPID(opts.HeapDumpPath, pid)
	}
	if opts.OOMCommand != "" {
		inj.command = config.ExpandPID(opts.OOMCommand, pid)
	}
	return inj
}

// Start launches the injector goroutine.
func (i *Injector) Start(ctx context.Context) {
	go i.run(ctx)
}

// Trigger wakes the injector without blocking.
func (i *Injector) Trigger() {
	select {
	case i.trigger <- struct{}{}:
	default:
	}
}

// Done is closed when the goroutine exits.
func (i *Injector) Done() <-chan struct{} {
	return i.done
}

func (i *Injector) run(ctx context.Context) {
	defer close(i.done)

	select {
	case <-ctx.Done():
		return
	case <-i.trigger:
	}

	i.logger.Error("inducing out-of-memory failure", zap.Int("pid", i.pid))
	i.logProcess()
	if i.dumpPath != "" {
		i.writeHeapDump()
	}
	if i.command != "" {
		i.runCommand()
	}
	i.exhaust()
}

func (i *Injector) logProcess() {
	proc, err := process.NewProcess(int32(i.pid))
	if err != nil {
		i.logger.Warn("failed to inspect process", zap.Error(err))
		return
	}

	fields := []zap.Field{zap.Int("pid", i.pid)}
	if mem, err := proc.MemoryInfo(); err == nil {
		fields = append(fields, zap.Uint64("rss", mem.RSS), zap.Uint64("vms", mem.VMS))
	}
	if threads, err := proc.NumThreads(); err == nil {
		fields = append(fields, zap.Int32("threads", threads))
	}
	i.logger.Info("process state before out-of-memory", fields...)
}

func (i *Injector) writeHeapDump() {
	f, err := os.Create(i.dumpPath)
	if err != nil {
		i.logger.Error("failed to create heap dump", zap.String("path", i.dumpPath), zap.Error(err))
		return
	}
	defer f.Close()

	debug.WriteHeapDump(f.Fd())
	i.logger.Info("wrote heap dump", zap.String("path", i.dumpPath))
}

func (i *Injector) runCommand() {
	cmd := exec.Command("/bin/sh", "-c", i.command)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		i.logger.Error("out-of-memory command failed", zap.String("command", i.command), zap.Error(err))
		return
	}
	i.logger.Info("ran out-of-memory command", zap.String("command", i.command))
}

// exhaustHeap allocates until the runtime aborts with
// "fatal error: runtime: out of memory". The memory limit is lifted first so
// the collector cannot stall the allocation loop.
func exhaustHeap() {
	debug.SetMemoryLimit(math.MaxInt64)
	debug.SetGCPercent(-1)

	var ballast [][]byte
	for {
		ballast = append(ballast, make([]byte, exhaustChunk))
	}
}

// exhaustChunk is the size of each allocation made by exhaustHeap. It stays
// within int on 32-bit platforms.
var exhaustChunk = min(1<<34, math.MaxInt/2)
