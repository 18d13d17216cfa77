package types

import "errors"

// Common errors used across the agent packages
var (
	ErrInvalidOptions          = errors.New("invalid agent options")
	ErrCollectorAlreadyRunning = errors.New("collector is already running")
	ErrCollectorNotRunning     = errors.New("collector is not running")
	ErrSignalDelivery          = errors.New("signal delivery failed")
	ErrEmptyTrace              = errors.New("trace contains no pauses")
)
