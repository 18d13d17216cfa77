// Package config turns the agent's attach-time option string into an
// immutable Options value.
//
// The option string has the form
//
//	<threshold>,<window>,<action>[,warn=<t>][,touch=<path>][,grace=<t>][,dump=<path>][,oomcmd=<cmd>]
//
// Positional fields may be omitted from the right. Times are integer seconds
// or Go durations ("500ms", "2m").
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

// Keyword option names
const (
	KeyWarn   = "warn"
	KeyTouch  = "touch"
	KeyGrace  = "grace"
	KeyDump   = "dump"
	KeyOOMCmd = "oomcmd"
)

// Options holds the parsed agent configuration. It is built once by Parse
// and never mutated afterwards.
type Options struct {
	Raw string `yaml:"raw"`

	GCThreshold time.Duration `yaml:"gc_threshold"`
	Window      time.Duration `yaml:"window"`
	Action      Action        `yaml:"action"`

	WarnEnabled   bool          `yaml:"warn_enabled"`
	WarnThreshold time.Duration `yaml:"warn_threshold,omitempty"`
	WarnPath      string        `yaml:"warn_path"`

	// KillGrace is how long a delivered signal may take before SIGKILL follows.
	KillGrace time.Duration `yaml:"kill_grace"`

	// HeapDumpPath and OOMCommand run before a synthetic allocation failure.
	// "%p" expands to the process id.
	HeapDumpPath string `yaml:"heap_dump_path,omitempty"`
	OOMCommand   string `yaml:"oom_command,omitempty"`

	// Notes are non-fatal problems found while parsing.
	Notes []string `yaml:"notes,omitempty"`
}

// ParseError describes a malformed option string.
type ParseError struct {
	Input  string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid options %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("invalid options %q: field %s: %s", e.Input, e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return types.ErrInvalidOptions
}

// Default returns the options used for an empty option string.
func Default() *Options {
	return &Options{
		GCThreshold: types.DefaultGCThreshold,
		Window:      types.DefaultWindow,
		Action:      InduceOOM(),
		WarnPath:    types.DefaultWarnPath,
		KillGrace:   types.DefaultKillGrace,
	}
}

// Parse parses an option string. Any error is fatal: the agent must refuse to
// attach rather than run with undefined thresholds.
func Parse(s string) (*Options, error) {
	opts := Default()
	opts.Raw = s

	s = strings.TrimSpace(s)
	if s == "" {
		return opts, nil
	}

	fields := strings.Split(s, ",")
	positional := 0
	for _, field := range fields {
		field = strings.TrimSpace(field)

		key, value, keyed := strings.Cut(field, "=")
		if !keyed {
			if positional >= 3 {
				opts.Notes = append(opts.Notes, fmt.Sprintf("no equals in key=value pair [%s], ignored", field))
				continue
			}
			if err := opts.setPositional(positional, field); err != nil {
				return nil, &ParseError{Input: s, Field: positionalNames[positional], Reason: err.Error()}
			}
			positional++
			continue
		}

		if err := opts.setKeyword(strings.TrimSpace(key), value); err != nil {
			return nil, &ParseError{Input: s, Field: key, Reason: err.Error()}
		}
	}

	if opts.WarnEnabled && opts.WarnThreshold >= opts.GCThreshold {
		opts.Notes = append(opts.Notes, fmt.Sprintf(
			"warn threshold %s is not below gc threshold %s; the warning can never fire",
			opts.WarnThreshold, opts.GCThreshold))
	}

	return opts, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) *Options {
	opts, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return opts
}

var positionalNames = [3]string{"threshold", "window", "action"}

func (o *Options) setPositional(i int, field string) error {
	if field == "" {
		return errors.New("empty value")
	}

	switch i {
	case 0:
		d, err := parseSeconds(field)
		if err != nil {
			return err
		}
		if d <= 0 {
			return errors.New("must be positive")
		}
		o.GCThreshold = d
	case 1:
		d, err := parseSeconds(field)
		if err != nil {
			return err
		}
		if d <= 0 {
			return errors.New("must be positive")
		}
		o.Window = d
	case 2:
		a, err := parseAction(field)
		if err != nil {
			return err
		}
		o.Action = a
	}
	return nil
}

func (o *Options) setKeyword(key, value string) error {
	switch key {
	case KeyWarn:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		if d <= 0 {
			return errors.New("must be positive")
		}
		o.WarnEnabled = true
		o.WarnThreshold = d
	case KeyTouch:
		if value == "" {
			return errors.New("empty path")
		}
		o.WarnPath = value
	case KeyGrace:
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		if d < 0 {
			return errors.New("must not be negative")
		}
		o.KillGrace = d
	case KeyDump:
		o.HeapDumpPath = value
	case KeyOOMCmd:
		o.OOMCommand = value
	default:
		o.Notes = append(o.Notes, fmt.Sprintf("unknown option %q, ignored", key))
	}
	return nil
}

// parseSeconds accepts integer seconds or a Go duration string.
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > int64(time.Duration(1<<63-1)/time.Second) {
			return 0, fmt.Errorf("%q seconds overflows", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither seconds nor a duration", s)
	}
	return d, nil
}

// String renders the options in the agent's startup log format.
func (o *Options) String() string {
	var b strings.Builder
	b.WriteString("threshold=[")
	b.WriteString(o.GCThreshold.String())
	b.WriteString("],window=[")
	b.WriteString(o.Window.String())
	b.WriteString("],action=[")
	b.WriteString(o.Action.String())
	b.WriteString("]")
	if o.WarnEnabled {
		b.WriteString(",warn_threshold=[")
		b.WriteString(o.WarnThreshold.String())
		b.WriteString("],touch_path=[")
		b.WriteString(o.WarnPath)
		b.WriteString("]")
	}
	return b.String()
}

// ExpandPID replaces every "%p" in s with pid.
func ExpandPID(s string, pid int) string {
	return strings.ReplaceAll(s, "%p", strconv.Itoa(pid))
}
