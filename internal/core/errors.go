// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, so a wrapped error still matches its base.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Predefined errors
var (
	// Fetch boundary errors
	ErrNetworkFailure = &Error{Code: "NETWORK_FAILURE", Message: "backend request failed"}
	ErrDecodeFailure  = &Error{Code: "DECODE_FAILURE", Message: "backend response could not be decoded"}
	ErrBackendError   = &Error{Code: "BACKEND_ERROR", Message: "backend reported an error"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// View errors
	ErrInvalidFilter   = &Error{Code: "INVALID_FILTER", Message: "invalid filter value"}
	ErrSessionNotFound = &Error{Code: "SESSION_NOT_FOUND", Message: "session not found"}

	// Preference storage errors
	ErrPreferenceStore = &Error{Code: "PREFERENCE_STORE_FAILED", Message: "preference storage failed"}
)
