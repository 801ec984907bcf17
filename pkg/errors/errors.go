package errors

import (
	"errors"
	"fmt"
)

// Code represents a stable error code for programmatic handling.
type Code string

const (
	CodeUnknown         Code = "unknown"
	CodeInvalid         Code = "validation_error"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeInternal        Code = "internal"
	CodeUnavailable     Code = "unavailable"
	CodeDeadline        Code = "deadline_exceeded"
	CodeAlreadyExists   Code = "already_exists"

	// Ledger
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeUnknownUser         Code = "unknown_user"

	// Survey and fill lifecycle
	CodeNotOwner           Code = "not_owner"
	CodeAlreadyClosed      Code = "already_closed"
	CodeSurveyNotActive    Code = "survey_not_active"
	CodeSelfFill           Code = "self_fill"
	CodeDurationOutOfRange Code = "duration_out_of_range"
	CodeAlreadyFilled      Code = "already_filled"
	CodeNotSurveyOwner     Code = "not_survey_owner"
	CodeAlreadyReviewed    Code = "already_reviewed"

	// Sessions
	CodeInvalidCredential Code = "invalid_credential"
)

// Kind groups codes into the coarse failure classes the API layer maps to
// transport statuses.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthenticated
	KindUnavailable
)

var kinds = map[Code]Kind{
	CodeInvalid:             KindInvalid,
	CodeDurationOutOfRange:  KindInvalid,
	CodeNotFound:            KindNotFound,
	CodeUnknownUser:         KindNotFound,
	CodeConflict:            KindConflict,
	CodeAlreadyExists:       KindConflict,
	CodeInsufficientBalance: KindConflict,
	CodeAlreadyClosed:       KindConflict,
	CodeSurveyNotActive:     KindConflict,
	CodeAlreadyFilled:       KindConflict,
	CodeAlreadyReviewed:     KindConflict,
	CodeForbidden:           KindForbidden,
	CodeNotOwner:            KindForbidden,
	CodeNotSurveyOwner:      KindForbidden,
	CodeSelfFill:            KindForbidden,
	CodeUnauthenticated:     KindUnauthenticated,
	CodeInvalidCredential:   KindUnauthenticated,
	CodeUnavailable:         KindUnavailable,
	CodeDeadline:            KindUnavailable,
}

// Kind returns the failure class of the code. Unknown codes are internal.
func (c Code) Kind() Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindInternal
}

// AppError is a structured error type that carries a code, message, and optional metadata.
type AppError struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AppError) Unwrap() error { return e.Err }

// WithMeta attaches metadata to the error.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

// New creates a new AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// Invalid builds a validation error carrying per-field messages.
func Invalid(message string, fields map[string]string) *AppError {
	e := New(CodeInvalid, message)
	if len(fields) > 0 {
		e.WithMeta("fields", fields)
	}
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	if ae, ok := As(err); ok {
		return ae.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeUnknown
}
