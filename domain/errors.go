package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports an input that failed a local precondition. It is
// returned synchronously and never reaches the network.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports an operation rejected by current state, such as
// deleting a status that still has issues in its column.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

// Conflictf builds a ConflictError from a format string.
func Conflictf(format string, args ...any) ConflictError {
	return ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an operation on an id that is no longer present.
type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string { return e.Msg }

// NotFoundf builds a NotFoundError from a format string.
func NotFoundf(format string, args ...any) NotFoundError {
	return NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// TransportError reports a failed exchange with the core API: connection
// errors, timeouts, unexpected HTTP statuses and malformed or missing
// response payloads.
type TransportError struct {
	Msg string
	Err error
}

func (e TransportError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e TransportError) Unwrap() error { return e.Err }

// Transportf builds a TransportError wrapping cause, which may be nil.
func Transportf(cause error, format string, args ...any) TransportError {
	return TransportError{Msg: fmt.Sprintf(format, args...), Err: cause}
}

// IsValidation reports whether any error in err's chain is a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether any error in err's chain is a ConflictError.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

// IsNotFound reports whether any error in err's chain is a NotFoundError.
func IsNotFound(err error) bool {
	var n NotFoundError
	return errors.As(err, &n)
}

// IsTransport reports whether any error in err's chain is a TransportError.
func IsTransport(err error) bool {
	var t TransportError
	return errors.As(err, &t)
}
