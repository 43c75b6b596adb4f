// Package apperrors defines the console's error taxonomy and the translation
// from internal failures to short user-facing messages.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is raised before any network call when required input is
// missing or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NetworkError means the backend could not be reached at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError means the backend answered with a non-success status.
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// ParseError reports a malformed timestamp or slot label. It is contained by
// the caller and never surfaces to the user.
type ParseError struct {
	Kind  string
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot parse %s %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("cannot parse %s %q: %v", e.Kind, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// OperationError is what a mutating operation returns on failure: the cause
// plus the message the console shows in its notification.
type OperationError struct {
	Op          string
	UserMessage string
	Err         error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// NewOperationError wraps err with a user-facing message derived from it.
func NewOperationError(op string, err error, fallback string) *OperationError {
	return &OperationError{Op: op, UserMessage: UserMessage(err, fallback), Err: err}
}

// UserMessage picks the text to show for err. A backend-provided message wins,
// then a validation message, then the fallback. Raw error strings are never
// returned.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var opErr *OperationError
	if errors.As(err, &opErr) && opErr.UserMessage != "" {
		return opErr.UserMessage
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if msg := strings.TrimSpace(backendErr.Message); msg != "" {
			return msg
		}
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) && validationErr.Message != "" {
		return validationErr.Message
	}

	var networkErr *NetworkError
	if errors.As(err, &networkErr) && fallback == "" {
		return "Could not reach the server. Please try again."
	}

	if fallback == "" {
		return "Something went wrong. Please try again."
	}
	return fallback
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
