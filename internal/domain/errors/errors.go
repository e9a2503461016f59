// Package errors classifies failures of external systems as transient or permanent.
package errors

import (
	"errors"
	"time"
)

// TransientError is a failure that may succeed when retried
// (network errors, rate limiting, server errors).
type TransientError struct {
	Message string
	Err     error

	// RetryAfter is the delay requested by the remote side, zero if none.
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a failure that will not succeed when retried
// (invalid credentials, unknown channel, malformed request).
type PermanentError struct {
	Message string
	Err     error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a TransientError.
func NewTransientError(message string, err error) error {
	return &TransientError{Message: message, Err: err}
}

// NewRateLimitedError creates a TransientError carrying the requested retry delay.
func NewRateLimitedError(message string, retryAfter time.Duration, err error) error {
	return &TransientError{Message: message, Err: err, RetryAfter: retryAfter}
}

// NewPermanentError creates a PermanentError.
func NewPermanentError(message string, err error) error {
	return &PermanentError{Message: message, Err: err}
}

// IsTransientError reports whether err, or any error it wraps, is transient.
func IsTransientError(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsPermanentError reports whether err, or any error it wraps, is permanent.
func IsPermanentError(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

// RetryAfter returns the retry delay requested by the remote side, if any.
func RetryAfter(err error) time.Duration {
	var transient *TransientError
	if errors.As(err, &transient) {
		return transient.RetryAfter
	}
	return 0
}
