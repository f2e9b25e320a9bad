package model

import "errors"

var (
	// ErrAlreadyStarted is returned when start is called on a session whose
	// process was already created; a session runs at most one process.
	ErrAlreadyStarted = errors.New("terminal already started")

	// ErrNotStarted is returned when input is written before a process exists.
	ErrNotStarted = errors.New("terminal not started")

	// ErrNotRunning is returned when an operation requires a live process.
	ErrNotRunning = errors.New("terminal not running")

	// ErrShutDown is returned when an operation is attempted after shutdown.
	ErrShutDown = errors.New("terminal shut down")

	// ErrSubscriberClosed is returned when sending to a closed subscriber stream.
	ErrSubscriberClosed = errors.New("subscriber closed")

	// ErrInvalidDimensions is returned when a resize request carries a zero dimension.
	ErrInvalidDimensions = errors.New("rows and cols must be positive")
)
