// Package remote defines the contract to the generative text service and the
// typed error taxonomy produced at that boundary. Transport errors are mapped
// into the taxonomy exactly once, inside the adapter; upstream code only ever
// inspects error classes, never raw error text.
package remote

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass represents a classification of remote call errors.
type ErrorClass string

const (
	// ErrorClassAuth represents credential rejection (invalid or revoked key).
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassQuota represents quota or rate exhaustion on the remote side.
	ErrorClassQuota ErrorClass = "quota"

	// ErrorClassTransient represents network errors, 5xx responses and
	// anything else worth retrying.
	ErrorClassTransient ErrorClass = "transient"
)

// CallError is a remote call failure with its classification attached.
type CallError struct {
	Class      ErrorClass
	StatusCode int
	Message    string

	// RetryAfter is the server-suggested wait before the credential may be
	// used again. Only set for quota-class errors; zero means no hint.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("remote %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CallError) Unwrap() error {
	return e.Err
}

// Classify returns the error class of err, or ErrorClassTransient when err
// carries no classification. Unknown failures are treated as retryable.
func Classify(err error) ErrorClass {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Class
	}
	return ErrorClassTransient
}

// QuotaDelay returns the server-suggested retry delay carried by a
// quota-class error, or fallback when err carries none.
func QuotaDelay(err error, fallback time.Duration) time.Duration {
	var callErr *CallError
	if errors.As(err, &callErr) && callErr.RetryAfter > 0 {
		return callErr.RetryAfter
	}
	return fallback
}

// IsAuth reports whether err is classified as a credential rejection.
func IsAuth(err error) bool {
	return Classify(err) == ErrorClassAuth
}

// IsQuota reports whether err is classified as quota exhaustion.
func IsQuota(err error) bool {
	return Classify(err) == ErrorClassQuota
}
