package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an intake error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrForbidden      ErrorCode = "FORBIDDEN"       // 403
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrSuperseded     ErrorCode = "SUPERSEDED"      // 409
	ErrRequestFailed  ErrorCode = "REQUEST_FAILED"  // upstream status, 502 on transport failure
	ErrNoMoreResults  ErrorCode = "NO_MORE_RESULTS" // 200, not a failure
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// ForbiddenNotice is the blocking notice shown when the participant service
// refuses to add a person.
const ForbiddenNotice = "You are not authorized to add this person."

// IntakeError represents a structured error with code, status, and details.
type IntakeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *IntakeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *IntakeError {
	return &IntakeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidFields creates a 400 error carrying per-field validation messages.
func NewInvalidFields(fields map[string]string) *IntakeError {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return &IntakeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: fmt.Sprintf("invalid fields: %d", len(fields)),
		Details: details,
	}
}

// NewForbidden creates a 403 error for requests the participant service refused.
func NewForbidden(msg string) *IntakeError {
	if msg == "" {
		msg = ForbiddenNotice
	}
	return &IntakeError{
		Code:    ErrForbidden,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a participant missing from a case.
func NewNotFound(identifier string) *IntakeError {
	return &IntakeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("participant not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewSuperseded creates a 409 error for a page request whose search session
// was replaced before the response arrived.
func NewSuperseded(sessionID string) *IntakeError {
	return &IntakeError{
		Code:    ErrSuperseded,
		Status:  409,
		Message: "search session was superseded by a newer search",
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewRequestFailed creates an error for a non-authorization failure reported
// by an external service. Details carries the decoded response body so callers
// can show field-level errors.
func NewRequestFailed(status int, msg string, details map[string]any) *IntakeError {
	if status == 0 {
		status = 502
	}
	return &IntakeError{
		Code:    ErrRequestFailed,
		Status:  status,
		Message: msg,
		Details: details,
	}
}

// NewNoMoreResults signals that pagination was requested past the last page.
func NewNoMoreResults(query string) *IntakeError {
	return &IntakeError{
		Code:    ErrNoMoreResults,
		Status:  200,
		Message: "no more results",
		Details: map[string]any{"query": query},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *IntakeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &IntakeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) an IntakeError with the given code.
func Is(err error, code ErrorCode) bool {
	var iErr *IntakeError
	if stderrors.As(err, &iErr) {
		return iErr.Code == code
	}
	return false
}

// As returns the IntakeError wrapped by err, if any.
func As(err error) (*IntakeError, bool) {
	var iErr *IntakeError
	if stderrors.As(err, &iErr) {
		return iErr, true
	}
	return nil, false
}
