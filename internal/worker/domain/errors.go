package domain

import (
	"errors"
	"strings"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrNoPendingJob is returned by ClaimNext when the queue has nothing to claim
	ErrNoPendingJob = errors.New("no pending job")

	// ErrJobAlreadyClaimed is the expected outcome of losing a claim race
	ErrJobAlreadyClaimed = errors.New("job already claimed or not pending")

	// ErrStoreUnavailable is returned once a reconnect attempt has also failed
	ErrStoreUnavailable = errors.New("job store unavailable")

	// ErrInvalidArgs is returned when the job payload JSON is malformed
	ErrInvalidArgs = errors.New("invalid args")

	// ErrListenerClosed is returned when a notification source stops delivering
	ErrListenerClosed = errors.New("notification source closed")
)

// StartupValidationError collects every problem found in the worker definitions.
type StartupValidationError struct {
	Problems []string
}

func (e *StartupValidationError) Error() string {
	return "invalid worker definitions: " + strings.Join(e.Problems, "; ")
}

// NewStartupValidationError returns nil when problems is empty.
func NewStartupValidationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &StartupValidationError{Problems: problems}
}
