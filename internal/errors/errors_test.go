package errors

import (
	"fmt"
	"testing"
)

func TestIntakeError_Error(t *testing.T) {
	err := &IntakeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "participant not found",
	}

	expected := "NOT_FOUND: participant not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("case_id is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "case_id is required" {
		t.Errorf("Message = %q, want %q", err.Message, "case_id is required")
	}
}

func TestNewInvalidFields(t *testing.T) {
	err := NewInvalidFields(map[string]string{"case_id": "is required"})

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Details["case_id"] != "is required" {
		t.Errorf("Details[case_id] = %v, want %q", err.Details["case_id"], "is required")
	}
}

func TestNewForbidden(t *testing.T) {
	err := NewForbidden("")

	if err.Code != ErrForbidden {
		t.Errorf("Code = %q, want %q", err.Code, ErrForbidden)
	}
	if err.Status != 403 {
		t.Errorf("Status = %d, want 403", err.Status)
	}
	if err.Message != ForbiddenNotice {
		t.Errorf("Message = %q, want %q", err.Message, ForbiddenNotice)
	}

	custom := NewForbidden("nope")
	if custom.Message != "nope" {
		t.Errorf("Message = %q, want %q", custom.Message, "nope")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("42")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "42" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "42")
	}
}

func TestNewRequestFailed(t *testing.T) {
	details := map[string]any{"first_name": "is too long"}
	err := NewRequestFailed(422, "unprocessable", details)

	if err.Code != ErrRequestFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrRequestFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["first_name"] != "is too long" {
		t.Errorf("Details[first_name] = %v", err.Details["first_name"])
	}

	transport := NewRequestFailed(0, "connection refused", nil)
	if transport.Status != 502 {
		t.Errorf("Status = %d, want 502 for transport failures", transport.Status)
	}
}

func TestNewNoMoreResults(t *testing.T) {
	err := NewNoMoreResults("ab")

	if err.Code != ErrNoMoreResults {
		t.Errorf("Code = %q, want %q", err.Code, ErrNoMoreResults)
	}
	if err.Status != 200 {
		t.Errorf("Status = %d, want 200", err.Status)
	}
	if err.Details["query"] != "ab" {
		t.Errorf("Details[query] = %v, want %q", err.Details["query"], "ab")
	}
}

func TestNewSuperseded(t *testing.T) {
	err := NewSuperseded("01ABC")

	if err.Code != ErrSuperseded {
		t.Errorf("Code = %q, want %q", err.Code, ErrSuperseded)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	nilErr := NewInternal(nil)
	if nilErr.Message != "internal error" {
		t.Errorf("Message = %q, want %q", nilErr.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewForbidden(""), ErrForbidden, true},
		{"different code", NewForbidden(""), ErrRequestFailed, false},
		{"wrapped", fmt.Errorf("create: %w", NewNoMoreResults("q")), ErrNoMoreResults, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", NewNotFound("7"))
	iErr, ok := As(wrapped)
	if !ok {
		t.Fatal("As() ok = false, want true")
	}
	if iErr.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", iErr.Code, ErrNotFound)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As() ok = true for plain error")
	}
}
