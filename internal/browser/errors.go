package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrNotActionable marks an element wait that was never satisfied within
	// the action timeout.
	ErrNotActionable = errors.New("element not actionable within timeout")
	// ErrEngineFailure marks an unexpected termination of the underlying
	// browser or driver process.
	ErrEngineFailure = errors.New("browser engine failure")
	// ErrContextClosed marks an operation on an already-closed browsing
	// context.
	ErrContextClosed = errors.New("browsing context closed")
)

// notActionable wraps cause as an ErrNotActionable for the given operation
// and selector, preserving the cause chain.
func notActionable(op, selector string, cause error) error {
	return fmt.Errorf("%s %q: %w: %w", op, selector, ErrNotActionable, cause)
}

// engineFailure wraps cause as an ErrEngineFailure for the given operation.
func engineFailure(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrEngineFailure, cause)
}
