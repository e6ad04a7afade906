package worker

import "errors"

// Lifecycle and submission errors. These are pool-local sentinels; callers
// check them with errors.Is.
var (
	ErrNotStarted     = errors.New("worker pool not started")
	ErrStopped        = errors.New("worker pool stopped")
	ErrAlreadyStarted = errors.New("worker pool already started")
	ErrQueueFull      = errors.New("worker pool queue full")
	ErrNilProcessor   = errors.New("processor must not be nil")
	ErrStopTimeout    = errors.New("timed out waiting for workers to drain")
)
