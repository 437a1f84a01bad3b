package job

import "errors"

// Domain rule violations surfaced by administrative actions.
var (
	// ErrRetryExhausted is returned when a manual retry is refused because
	// the job has reached its attempt budget.
	ErrRetryExhausted = errors.New("job has exhausted its attempts")

	// ErrAlreadyTerminal is returned when an administrative action targets
	// a job that has already reached a terminal status.
	ErrAlreadyTerminal = errors.New("job is already in a terminal status")
)
