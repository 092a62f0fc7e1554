// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInternal         = errors.New("internal error")
	ErrAlreadyActive    = errors.New("generation already active")
	ErrTriggerFailed    = errors.New("trigger failed")
	ErrTimeout          = errors.New("timed out")
	ErrGateClosed       = errors.New("download gate closed")
	ErrEmptyArtifact    = errors.New("empty artifact")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnavailable      = errors.New("remote unavailable")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "mode", "fileName")
	Resource string // For not found/conflict (e.g., "run", "artifact")
	Op       string // Operation that failed (e.g., "remote.triggerDispatch")
	Cause    error  // Underlying error

	// Digest pair for checksum mismatches so callers can report both sides.
	Expected string
	Actual   string
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource.
func Conflict(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// AlreadyActive reports a trigger attempt while a run is still queued or in progress.
func AlreadyActive(runID string) error {
	msg := "a generation is already in progress"
	if runID != "" {
		msg = fmt.Sprintf("run %s is still in progress", runID)
	}
	return &Error{
		Sentinel: ErrAlreadyActive,
		Message:  msg,
		Resource: "run",
	}
}

// TriggerFailed reports the remote system rejecting a trigger request.
// The coordinator never retries these automatically.
func TriggerFailed(cause error) error {
	return &Error{
		Sentinel: ErrTriggerFailed,
		Message:  fmt.Sprintf("remote rejected the trigger request: %v", cause),
		Op:       "remote.triggerDispatch",
		Cause:    cause,
	}
}

// Timeout reports the polling budget being exhausted before a terminal status.
func Timeout(op, elapsed string) error {
	return &Error{
		Sentinel: ErrTimeout,
		Message:  fmt.Sprintf("%s timed out after %s without reaching a terminal status", op, elapsed),
		Op:       op,
	}
}

// GateClosed reports a download attempt before the run completed successfully.
func GateClosed(reason string) error {
	return &Error{
		Sentinel: ErrGateClosed,
		Message:  fmt.Sprintf("downloads are locked: %s", reason),
		Resource: "artifact",
	}
}

// EmptyArtifact reports a downloaded blob with no content.
func EmptyArtifact(name string) error {
	return &Error{
		Sentinel: ErrEmptyArtifact,
		Message:  fmt.Sprintf("artifact %s is empty", name),
		Resource: "artifact",
	}
}

// ChecksumMismatch carries both digests so the caller can decide policy.
func ChecksumMismatch(name, expected, actual string) error {
	return &Error{
		Sentinel: ErrChecksumMismatch,
		Message:  fmt.Sprintf("checksum mismatch for %s: expected %s, computed %s", name, expected, actual),
		Resource: "artifact",
		Expected: expected,
		Actual:   actual,
	}
}

// Unavailable reports the remote API being unreachable.
func Unavailable(op string, cause error) error {
	return &Error{
		Sentinel: ErrUnavailable,
		Message:  fmt.Sprintf("%s: remote unavailable: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
