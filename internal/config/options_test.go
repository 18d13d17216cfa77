package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantThresh  time.Duration
		wantWindow  time.Duration
		wantOOM     bool
		wantSignal  unix.Signal
		wantWarn    time.Duration
		wantPath    string
		wantNoteHas string
	}{
		{
			name:       "empty uses defaults",
			input:      "",
			wantThresh: types.DefaultGCThreshold,
			wantWindow: types.DefaultWindow,
			wantOOM:    true,
			wantPath:   types.DefaultWarnPath,
		},
		{
			name:       "threshold only",
			input:      "10",
			wantThresh: 10 * time.Second,
			wantWindow: types.DefaultWindow,
			wantOOM:    true,
			wantPath:   types.DefaultWarnPath,
		},
		{
			name:       "signal action",
			input:      "1,1,9",
			wantThresh: time.Second,
			wantWindow: time.Second,
			wantSignal: unix.SIGKILL,
			wantPath:   types.DefaultWarnPath,
		},
		{
			name:       "explicit oom",
			input:      "5,60,0",
			wantThresh: 5 * time.Second,
			wantWindow: time.Minute,
			wantOOM:    true,
			wantPath:   types.DefaultWarnPath,
		},
		{
			name:       "warn and touch",
			input:      "10,60,6,warn=3,touch=/tmp/marker",
			wantThresh: 10 * time.Second,
			wantWindow: time.Minute,
			wantSignal: unix.SIGABRT,
			wantWarn:   3 * time.Second,
			wantPath:   "/tmp/marker",
		},
		{
			name:       "durations",
			input:      "500ms,2m,15",
			wantThresh: 500 * time.Millisecond,
			wantWindow: 2 * time.Minute,
			wantSignal: unix.SIGTERM,
			wantPath:   types.DefaultWarnPath,
		},
		{
			name:        "kwarg without equals is ignored",
			input:       "10,60,9,bogus",
			wantThresh:  10 * time.Second,
			wantWindow:  time.Minute,
			wantSignal:  unix.SIGKILL,
			wantPath:    types.DefaultWarnPath,
			wantNoteHas: "no equals",
		},
		{
			name:        "unknown key is ignored",
			input:       "10,60,9,color=red",
			wantThresh:  10 * time.Second,
			wantWindow:  time.Minute,
			wantSignal:  unix.SIGKILL,
			wantPath:    types.DefaultWarnPath,
			wantNoteHas: "unknown option",
		},
		{
			name:        "unreachable warning is accepted",
			input:       "5,60,9,warn=5",
			wantThresh:  5 * time.Second,
			wantWindow:  time.Minute,
			wantSignal:  unix.SIGKILL,
			wantWarn:    5 * time.Second,
			wantPath:    types.DefaultWarnPath,
			wantNoteHas: "can never fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := Parse(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantThresh, opts.GCThreshold)
			assert.Equal(t, tt.wantWindow, opts.Window)
			assert.Equal(t, tt.wantOOM, opts.Action.IsOOM())
			if !tt.wantOOM {
				sig, ok := opts.Action.Signal()
				assert.True(t, ok)
				assert.Equal(t, tt.wantSignal, sig)
			}
			assert.Equal(t, tt.wantWarn > 0, opts.WarnEnabled)
			assert.Equal(t, tt.wantWarn, opts.WarnThreshold)
			assert.Equal(t, tt.wantPath, opts.WarnPath)
			assert.Equal(t, tt.input, opts.Raw)

			if tt.wantNoteHas == "" {
				assert.Empty(t, opts.Notes)
			} else {
				require.NotEmpty(t, opts.Notes)
				assert.Contains(t, strings.Join(opts.Notes, "\n"), tt.wantNoteHas)
			}
		})
	}
}

func TestParse_Supplements(t *testing.T) {
	opts, err := Parse("30,180,0,grace=2s,dump=/var/tmp/heap_%p.dump,oomcmd=/bin/touch ran_%p")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, opts.KillGrace)
	assert.Equal(t, "/var/tmp/heap_%p.dump", opts.HeapDumpPath)
	assert.Equal(t, "/bin/touch ran_%p", opts.OOMCommand)
	assert.Equal(t, "/var/tmp/heap_42.dump", ExpandPID(opts.HeapDumpPath, 42))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"non numeric threshold", "abc,60,9", "threshold"},
		{"zero threshold", "0,60,9", "threshold"},
		{"negative window", "10,-5,9", "window"},
		{"empty positional", "10,,9", "window"},
		{"signal out of range", "10,60,99", "action"},
		{"negative signal", "10,60,-1", "action"},
		{"non numeric signal", "10,60,KILL", "action"},
		{"bad warn", "10,60,9,warn=soon", "warn"},
		{"zero warn", "10,60,9,warn=0", "warn"},
		{"empty touch", "10,60,9,touch=", "touch"},
		{"negative grace", "10,60,9,grace=-1s", "grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, opts)
			assert.True(t, errors.Is(err, types.ErrInvalidOptions))

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("x") })
	assert.NotPanics(t, func() { MustParse("1,1,9") })
}

func TestAction(t *testing.T) {
	oom := InduceOOM()
	assert.True(t, oom.IsOOM())
	assert.Equal(t, "oom", oom.String())
	_, ok := oom.Signal()
	assert.False(t, ok)

	abort := DeliverSignal(unix.SIGABRT)
	assert.False(t, abort.IsOOM())
	assert.Contains(t, abort.String(), "signal 6")
	assert.True(t, DeliverSignal(0).IsOOM())
}

func TestOptions_String(t *testing.T) {
	opts := MustParse("10,60,9,warn=3")
	s := opts.String()
	assert.Contains(t, s, "threshold=[10s]")
	assert.Contains(t, s, "window=[1m0s]")
	assert.Contains(t, s, "warn_threshold=[3s]")
	assert.Contains(t, s, "touch_path=["+types.DefaultWarnPath+"]")
}

func TestOptions_YAML(t *testing.T) {
	data, err := MustParse("10,60,0,warn=3").YAML()
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "gc_threshold: 10s")
	assert.Contains(t, out, "action: oom")
	assert.Contains(t, out, "warn_threshold: 3s")
}

func TestFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(types.EnvOptions, "7,70,9")

	opts, ok := FromEnv()
	assert.True(t, ok)
	assert.Equal(t, "7,70,9", opts)
}

func TestLogLevel(t *testing.T) {
	t.Setenv(types.EnvLogLevel, "debug")
	assert.Equal(t, zapcore.DebugLevel, LogLevel())

	t.Setenv(types.EnvLogLevel, "nonsense")
	assert.Equal(t, zapcore.InfoLevel, LogLevel())
}
