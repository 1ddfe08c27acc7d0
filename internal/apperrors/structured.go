package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is a structured error carrying a stable code, a human message, and
// optional wrapped cause. Every subsystem in this pipeline returns one of
// these (or wraps a lower-level error into one) rather than a bare string.
type Error struct {
	// Code is a stable identifier such as ERR_2002_WEIGHTS_DRIFT.
	Code string `json:"code"`
	// Message is a human-readable summary.
	Message string `json:"message"`
	// Details gives additional context (e.g. the offending config path).
	Details string `json:"details,omitempty"`
	// Stage names the pipeline stage that raised the error, when relevant
	// (used by the NL-query service to tag the failing stage).
	Stage string `json:"stage,omitempty"`
	// Cause is the underlying error, if any.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// MarshalJSON implements custom JSON marshaling (Cause is unexported from
// the wire form since errors don't marshal cleanly).
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal((*alias)(e))
}

// Category returns the error's category (resource, config, invariant,
// transient, limit).
func (e *Error) Category() string {
	return Category(e.Code)
}

// IsRetryable reports whether this error is worth retrying.
func (e *Error) IsRetryable() bool {
	return IsRetryable(e.Code)
}

// New creates a new *Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps an existing error with a code, preserving it as Cause.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Cause: err}
}

// WithDetails sets Details and returns the receiver for chaining.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithStage sets Stage and returns the receiver for chaining.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithCause sets Cause and returns the receiver for chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}
