package model

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of DRMAA failure.
type ErrorCode string

const (
	ErrCodeNoActiveSession      ErrorCode = "NO_ACTIVE_SESSION"
	ErrCodeAlreadyActiveSession ErrorCode = "ALREADY_ACTIVE_SESSION"
	ErrCodeInvalidContactString ErrorCode = "INVALID_CONTACT_STRING"
	ErrCodeInvalidJobTemplate   ErrorCode = "INVALID_JOB_TEMPLATE"
	ErrCodeInvalidJob           ErrorCode = "INVALID_JOB"
	ErrCodeInvalidArgument      ErrorCode = "INVALID_ARGUMENT"
	ErrCodeDrmsInitFailed       ErrorCode = "DRMS_INIT_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// Error is the structured error returned by every session operation.
// Compare against the Err* sentinels with errors.Is; only the code is matched.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Code)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is matching.
var (
	ErrNoActiveSession      = &Error{Code: ErrCodeNoActiveSession}
	ErrAlreadyActiveSession = &Error{Code: ErrCodeAlreadyActiveSession}
	ErrInvalidContactString = &Error{Code: ErrCodeInvalidContactString}
	ErrInvalidJobTemplate   = &Error{Code: ErrCodeInvalidJobTemplate}
	ErrInvalidJob           = &Error{Code: ErrCodeInvalidJob}
	ErrInvalidArgument      = &Error{Code: ErrCodeInvalidArgument}
	ErrDrmsInitFailed       = &Error{Code: ErrCodeDrmsInitFailed}
	ErrInternal             = &Error{Code: ErrCodeInternal}
)

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches code and message to an underlying error.
func WrapError(code ErrorCode, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the ErrorCode from err, or "" if err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
