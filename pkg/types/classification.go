package types

import (
	"strconv"
	"time"
)

// Classification is the detector's verdict for the current measurement window.
type Classification uint8

const (
	// Normal means accumulated GC time is below every configured threshold.
	Normal Classification = iota
	// Warning means the soft threshold was reached but the hard one was not.
	Warning
	// Enforcing means the hard threshold was reached; the terminal action fires.
	Enforcing
)

func (c Classification) String() string {
	switch c {
	case Normal:
		return "normal"
	case Warning:
		return "warning"
	case Enforcing:
		return "enforcing"
	default:
		return "classification(" + strconv.Itoa(int(c)) + ")"
	}
}

// MarshalText lets classifications render by name in JSON and YAML.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// GCEvent represents a single garbage collection pause fed to the monitor
type GCEvent struct {
	Sequence  uint32        `json:"sequence" yaml:"sequence"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Transition records a change of classification.
type Transition struct {
	At          time.Duration  `json:"at"` // offset from the window origin
	From        Classification `json:"from"`
	To          Classification `json:"to"`
	Accumulated time.Duration  `json:"accumulated"`
	Epoch       uint64         `json:"epoch"`
}

// WindowState is a point-in-time copy of a measurement window.
type WindowState struct {
	Epoch         uint64        `json:"epoch"`
	Start         time.Duration `json:"start"`
	Accumulated   time.Duration `json:"accumulated"`
	LastWarnAt    time.Duration `json:"last_warn_at,omitempty"`
	Warned        bool          `json:"warned"`
	Breached      bool          `json:"breached"`
	InFlight      bool          `json:"in_flight"`
	PausesInEpoch uint64        `json:"pauses_in_epoch"`
}

// Status represents the externally visible state of an attached agent
type Status struct {
	AgentID        string         `json:"agent_id"`
	PID            int            `json:"pid"`
	AttachedAt     time.Time      `json:"attached_at"`
	Uptime         time.Duration  `json:"uptime"`
	Options        string         `json:"options"`
	GCThreshold    time.Duration  `json:"gc_threshold"`
	Window         time.Duration  `json:"window"`
	WarnThreshold  time.Duration  `json:"warn_threshold,omitempty"`
	Classification Classification `json:"classification"`
	State          WindowState    `json:"state"`
	TotalPauses    uint64         `json:"total_pauses"`
	LostPauses     uint64         `json:"lost_pauses,omitempty"`
	TotalGCTime    time.Duration  `json:"total_gc_time"`
	Warnings       uint64         `json:"warnings"`
	Enforced       bool           `json:"enforced"`
	EnforceErrors  uint64         `json:"enforce_errors"`
	RSS            uint64         `json:"rss,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
