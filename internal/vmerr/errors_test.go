package vmerr

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

// TestRuntimeErrorWithCauseUnwraps checks that WithCause's wrapped cause
// survives both stdlib errors.Unwrap and github.com/pkg/errors.Cause,
// while Error() keeps rendering the guest-facing message untouched.
func TestRuntimeErrorWithCauseUnwraps(t *testing.T) {
	root := errors.New("permission denied")
	rerr := NewRuntimeError("could not open file").WithCause(root)

	if got := rerr.Error(); got != "could not open file" {
		t.Fatalf("expected Error() to stay guest-facing, got %q", got)
	}

	unwrapped := errors.Unwrap(rerr)
	if unwrapped == nil {
		t.Fatalf("expected errors.Unwrap to find a wrapped cause")
	}
	if pkgerrors.Cause(unwrapped).Error() != "permission denied" {
		t.Fatalf("expected pkg/errors.Cause to reach the root cause, got %q", pkgerrors.Cause(unwrapped).Error())
	}
	if !errors.Is(pkgerrors.Cause(unwrapped), root) {
		t.Fatalf("expected the unwrapped chain to reach the original root error")
	}
}

// TestNewFatalUnwraps checks Fatal's cause chain the same way: the
// wrapped cause must still be reachable for a host that wants to log or
// categorize the underlying failure, even though Error() only reports the
// short message.
func TestNewFatalUnwraps(t *testing.T) {
	root := errors.New("out of memory")
	fatal := NewFatal("allocator budget exceeded", root)

	if got := fatal.Error(); got != "allocator budget exceeded" {
		t.Fatalf("expected Error() to report the short message, got %q", got)
	}

	unwrapped := errors.Unwrap(fatal)
	if unwrapped == nil {
		t.Fatalf("expected errors.Unwrap to find a wrapped cause")
	}
	if !errors.Is(pkgerrors.Cause(unwrapped), root) {
		t.Fatalf("expected the unwrapped chain to reach the original root error")
	}
}
