package monitor

import "errors"

var (
	// ErrNoPIDs is returned by Start when no positive PID was given.
	ErrNoPIDs = errors.New("monitor: no process IDs to watch")
	// ErrIdle is returned by Poll when nothing is being monitored.
	ErrIdle = errors.New("monitor: not monitoring")
)
