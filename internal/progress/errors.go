// Package progress holds the training-session progress rules: template assembly, the
// per-component state machine and the student and session roll-ups. Everything here is
// a pure function of its inputs; persistence and locking live in the service layer.
package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input such as a bad template or out of range score.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced template, session, enrollment or component is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a status change that the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAttemptsExceeded indicates a score was submitted after all attempts were consumed.
	ErrAttemptsExceeded = errors.New("maximum attempts exceeded")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func transitionError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err is one of the caller-correctable progress errors.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAttemptsExceeded)
}
