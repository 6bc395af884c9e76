package core

import "errors"

// Common errors.
var (
	ErrNotFound     = errors.New("note not found")
	ErrClosed       = errors.New("reconciler is closed")
	ErrNotStarted   = errors.New("reconciler is not started")
	ErrInvalidEvent = errors.New("invalid event")
)
