package enforce

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

const sigKill = unix.SIGKILL

// dumpsCore reports whether sig terminates with a core dump under its default
// disposition. The Go runtime catches these signals and exits with status 2
// unless the traceback level is "crash".
func dumpsCore(sig unix.Signal) bool {
	switch sig {
	case unix.SIGQUIT, unix.SIGILL, unix.SIGTRAP, unix.SIGABRT,
		unix.SIGBUS, unix.SIGFPE, unix.SIGSEGV, unix.SIGSYS:
		return true
	}
	return false
}

// EnableCoreDump raises the traceback level to "crash" when action delivers
// a core-dumping signal, so the runtime re-raises the signal with the default
// handler after printing its traceback. It reports whether it did so.
func EnableCoreDump(action config.Action) bool {
	sig, ok := action.Signal()
	if !ok || !dumpsCore(sig) {
		return false
	}
	debug.SetTraceback("crash")
	return true
}

// Signaler delivers a signal to the attached process.
type Signaler interface {
	Signal(sig unix.Signal) error
}

// SelfSignaler signals the process it was created in.
type SelfSignaler struct {
	pid int
}

// NewSelfSignaler caches the current pid.
func NewSelfSignaler() *SelfSignaler {
	return &SelfSignaler{pid: os.Getpid()}
}

// Signal sends sig to the cached pid.
func (s *SelfSignaler) Signal(sig unix.Signal) error {
	if err := unix.Kill(s.pid, sig); err != nil {
		return fmt.Errorf("%w: kill(%d, %s): %w", types.ErrSignalDelivery, s.pid, unix.SignalName(sig), err)
	}
	return nil
}

// Escalator sends SIGKILL once a grace period has passed after it is
// triggered. It stands behind signals the runtime may handle or ignore.
type Escalator struct {
	grace    time.Duration
	signaler Signaler
	logger   *zap.Logger
	trigger  chan struct{}
	done     chan struct{}
}

// NewEscalator creates an escalator; call Start before triggering it.
func NewEscalator(grace time.Duration, signaler Signaler, logger *zap.Logger) *Escalator {
	return &Escalator{
		grace:    grace,
		signaler: signaler,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the escalation goroutine. It exits when ctx is cancelled or
// after one escalation.
func (e *Escalator) Start(ctx context.Context) {
	go e.run(ctx)
}

// Trigger arms the escalation without blocking.
func (e *Escalator) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Done is closed when the goroutine exits.
func (e *Escalator) Done() <-chan struct{} {
	return e.done
}

func (e *Escalator) run(ctx context.Context) {
	defer close(e.done)

	select {
	case <-ctx.Done():
		return
	case <-e.trigger:
	}

	timer := time.NewTimer(e.grace)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	e.logger.Error("process still alive after enforcement signal, sending SIGKILL",
		zap.Duration("grace", e.grace))
	if err := e.signaler.Signal(sigKill); err != nil {
		e.logger.Error("failed to deliver SIGKILL", zap.Error(err))
	}
}
