package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned by Submit before Start or after Stop.
	ErrSchedulerNotRunning = errors.New("webhook queue is not running")

	// ErrJobQueueFull is returned when the webhook backlog is at capacity.
	ErrJobQueueFull = errors.New("webhook queue is full")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
