package monitor

import "errors"

var (
	// ErrNotRunning is returned when a command is sent while Run is not active.
	ErrNotRunning = errors.New("monitor: loop not running")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("monitor: loop already running")
)
