// Package apperr provides the coded errors surfaced by the collaboration
// core and their mapping to transport status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeUnauthenticated       Code = "UNAUTHENTICATED"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeForbidden             Code = "FORBIDDEN"
	CodeExpired               Code = "EXPIRED"
	CodeAlreadyResponded      Code = "ALREADY_RESPONDED"
	CodeConflict              Code = "CONFLICT"
	CodeNotificationFailed    Code = "NOTIFICATION_FAILED"
	CodeMembershipWriteFailed Code = "MEMBERSHIP_WRITE_FAILED"
	CodeInternal              Code = "INTERNAL"
)

// HTTPStatus maps a code to the HTTP status used by the API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeExpired:
		return http.StatusGone
	case CodeAlreadyResponded, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error carrying a code, a user-facing message and an
// optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code, so callers can compare
// against the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// New creates an error with code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with code and message around cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrUnauthenticated       = &Error{Code: CodeUnauthenticated}
	ErrInvalidArgument       = &Error{Code: CodeInvalidArgument}
	ErrNotFound              = &Error{Code: CodeNotFound}
	ErrForbidden             = &Error{Code: CodeForbidden}
	ErrExpired               = &Error{Code: CodeExpired}
	ErrAlreadyResponded      = &Error{Code: CodeAlreadyResponded}
	ErrConflict              = &Error{Code: CodeConflict}
	ErrNotificationFailed    = &Error{Code: CodeNotificationFailed}
	ErrMembershipWriteFailed = &Error{Code: CodeMembershipWriteFailed}
)

// GetCode extracts the code from any error. Returns CodeUnknown for errors
// that are not domain errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// HTTPStatus returns the HTTP status for err. Non-domain errors are 500.
func HTTPStatus(err error) int {
	return GetCode(err).HTTPStatus()
}

// PublicMessage returns the message safe to show a user. Non-domain errors
// are reported generically.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "an unexpected error occurred"
}
