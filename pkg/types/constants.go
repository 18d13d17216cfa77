package types

import "time"

// Default option values, used when the option string omits a positional field.
// The default window is threshold * (5+1): at most one sixth of wall-clock time
// may be spent collecting before the agent acts.
const (
	DefaultGCThreshold = 30 * time.Second
	DefaultWindow      = 180 * time.Second
	DefaultWarnPath    = "/tmp/gcquake_warn_gc"
	DefaultKillGrace   = 5 * time.Second
)

// Collector defaults
const (
	DefaultPollInterval = time.Second
	DefaultStatusEvery  = time.Minute
	DefaultMaxEvents    = 1000
)

// MaxSignal is the highest signal number accepted as an enforcement action.
const MaxSignal = 64

// EnvOptions names the environment variable read by AttachFromEnv.
const (
	EnvOptions  = "GCQUAKE_OPTIONS"
	EnvLogLevel = "GCQUAKE_LOG_LEVEL"
)
