// Package apperr defines the error taxonomy surfaced at the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an Error.
type Code string

// Error codes.
const (
	CodeValidation Code = "VALIDATION" // 400
	CodeNotFound   Code = "NOT_FOUND"  // 404
	CodeUpstream   Code = "UPSTREAM"   // 500, detail stays server-side
	CodeInternal   Code = "INTERNAL"   // 500
)

// Error is a classified error. Message is safe to return to callers; Err
// holds the underlying cause for logs.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports a missing or malformed request parameter.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// NotFound reports that the referenced entity does not exist.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
	}
}

// Upstream wraps a third-party failure behind a generic caller message.
func Upstream(msg string, cause error) *Error {
	return &Error{Code: CodeUpstream, Status: http.StatusInternalServerError, Message: msg, Err: cause}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	msg := "internal error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg, Err: cause}
}

// Is reports whether err is an *Error with the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// From classifies an arbitrary error, defaulting to Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
