package retry

import (
	"errors"
)

// Common errors returned by the controller.
var (
	// ErrExhausted is returned when all attempts are used up. The wrapping
	// error message carries the attempt count and last failure.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is returned when the context is cancelled during a
	// backoff or quota wait.
	ErrCancelled = errors.New("retry cancelled")
)
