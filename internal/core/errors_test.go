// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	err := WrapError(ErrNetworkFailure, errors.New("connection refused"))
	want := "[NETWORK_FAILURE] backend request failed: connection refused"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrDecodeFailure, ErrDecodeFailure) {
		t.Error("same error should match")
	}
	if errors.Is(ErrDecodeFailure, ErrNetworkFailure) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrConfigMissing, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if !errors.Is(wrapped, ErrConfigMissing) {
		t.Error("wrapped error should match its base")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("loading prices: %w", WrapError(ErrBackendError, errors.New("db down")))
	if got := CodeOf(wrapped); got != "BACKEND_ERROR" {
		t.Errorf("expected BACKEND_ERROR, got %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("expected empty code, got %q", got)
	}
}
