package scheduler

import "errors"

// Errors
var (
	ErrRunning    = errors.New("scheduler already running")
	ErrNotRunning = errors.New("scheduler not running")
	ErrBadPeriod  = errors.New("tick period must be positive")
)
