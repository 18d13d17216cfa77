package config

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Action is the terminal enforcement reaction. The zero value induces a
// runtime-level allocation failure; any other value delivers a signal to the
// current process. The variant is fixed when the option string is parsed.
type Action struct {
	signal unix.Signal
}

// InduceOOM returns the action that routes enforcement through the runtime's
// own out-of-memory path.
func InduceOOM() Action {
	return Action{}
}

// DeliverSignal returns the action that sends sig to the current process.
// A zero signal is the same as InduceOOM.
func DeliverSignal(sig unix.Signal) Action {
	return Action{signal: sig}
}

// IsOOM reports whether the action induces an allocation failure.
func (a Action) IsOOM() bool {
	return a.signal == 0
}

// Signal returns the signal to deliver and whether the action is a signal.
func (a Action) Signal() (unix.Signal, bool) {
	return a.signal, a.signal != 0
}

func (a Action) String() string {
	if a.IsOOM() {
		return "oom"
	}
	if name := unix.SignalName(a.signal); name != "" {
		return "signal " + strconv.Itoa(int(a.signal)) + " (" + name + ")"
	}
	return "signal " + strconv.Itoa(int(a.signal))
}

// MarshalYAML renders the action by name.
func (a Action) MarshalYAML() (any, error) {
	return a.String(), nil
}

func parseAction(field string) (Action, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return Action{}, fmt.Errorf("action %q is not a signal number", field)
	}
	if n < 0 || n > types.MaxSignal {
		return Action{}, fmt.Errorf("action %d is outside 0..%d", n, types.MaxSignal)
	}
	return DeliverSignal(unix.Signal(n)), nil
}
