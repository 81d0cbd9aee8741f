package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an application error. Handlers map codes to HTTP statuses.
type Code string

const (
	CodeValidation            Code = "validation_error"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeNotFound              Code = "not_found"
	CodeEntryNotFound         Code = "entry_not_found"
	CodeDuplicateRegistration Code = "duplicate_registration"
	CodeConflict              Code = "conflict"
	CodePaymentIncomplete     Code = "payment_incomplete"
	CodeUpstream              Code = "upstream_error"
	CodeInternal              Code = "internal_error"
)

// Error carries a code, a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to a lower level error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
// A nil err has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code to its response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeEntryNotFound:
		return http.StatusNotFound
	case CodeDuplicateRegistration, CodeConflict:
		return http.StatusConflict
	case CodePaymentIncomplete:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Exposed reports whether the message of a code may be shown to clients.
// Upstream and internal failures are replaced by a generic message.
func Exposed(code Code) bool {
	return code != CodeInternal && code != CodeUpstream
}
