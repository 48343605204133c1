// Package apperr carries the status/message/details error taxonomy shared by
// the REST handlers and the realtime gateway.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a client-visible failure with an HTTP-shaped status code.
type Error struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%d: %s (%d field errors)", e.Status, e.Message, len(e.Details))
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Validation wraps collected field errors into a single 400.
func Validation(details []FieldError) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "validation failed", Details: details}
}

// NotFound is for resources that never existed (404).
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

// Gone is for sessions that existed but have ended (410), distinguishing
// "gone" from "never existed".
func Gone(message string) *Error {
	return &Error{Status: http.StatusGone, Message: message}
}

// Forbidden is for callers who are not session participants (403).
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Message: message}
}

// Conflict is for duplicate active sessions and already-pending proposals (409).
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Message: message}
}

// Internal hides unexpected failures behind a generic 500 so internal details
// never leak to clients. The original error is for server-side logging only.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error"}
}

// From normalizes any error into the taxonomy. Unknown errors become 500s.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
