// Package vmerr implements the three error kinds of spec §7: CompileError
// (produced by the external compiler, never seen by a running frame),
// RuntimeError (raised by the interpreter when a precondition fails, with a
// full stack trace), and Fatal (allocation failure the host cannot
// satisfy). It is adapted from the teacher's internal/errors package: same
// shape (a typed error carrying source location and a call stack), narrowed
// to the three kinds this core actually raises and rendered in the exact
// "[line L] in <name>()" / "in script" format spec §4.3 specifies rather
// than the teacher's general file:line:column form.
package vmerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Frame is one entry of a RuntimeError's traceback: the function active at
// that call depth (empty for the top-level script) and the line executing
// in it when the error was raised.
type Frame struct {
	Function string
	Line     int
}

// RuntimeError is raised when a dispatch precondition fails: type mismatch,
// undefined global/property, wrong arity, a non-callable callee, a
// non-class INHERIT superclass, or frame-stack overflow.
type RuntimeError struct {
	Message string
	Stack   []Frame
	cause   error
}

// NewRuntimeError constructs a RuntimeError with no stack yet attached;
// callers attach one with WithStack once they have walked the frames.
func NewRuntimeError(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// WithStack attaches the innermost-first call stack and returns the same
// error for chaining, matching the teacher's WithStack builder style.
func (e *RuntimeError) WithStack(stack []Frame) *RuntimeError {
	e.Stack = stack
	return e
}

// WithCause wraps an underlying Go error (via github.com/pkg/errors) so
// callers that need errors.Cause/errors.As still see it, while Error()
// keeps rendering the guest-facing text spec §4.3 specifies.
func (e *RuntimeError) WithCause(cause error) *RuntimeError {
	e.cause = errors.Wrap(cause, e.Message)
	return e
}

// Error renders the message followed by one "[line L] in <name>()" (or
// "in script" for the top frame) per traceback entry, innermost first,
// exactly as spec §4.3's "Runtime error" paragraph specifies.
func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	for _, f := range e.Stack {
		sb.WriteByte('\n')
		if f.Function == "" {
			fmt.Fprintf(&sb, "[line %d] in script", f.Line)
		} else {
			fmt.Fprintf(&sb, "[line %d] in %s()", f.Line, f.Function)
		}
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *RuntimeError) Unwrap() error { return e.cause }

// CompileError is produced by the external compiler; the core never starts
// a frame when one is returned from Compile.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string { return e.Message }

// NewCompileError constructs a CompileError.
func NewCompileError(format string, args ...interface{}) *CompileError {
	return &CompileError{Message: fmt.Sprintf(format, args...)}
}

// Fatal is raised when the allocator cannot satisfy a request. Unlike the
// original C implementation (which calls exit(1) directly), this is
// returned as an ordinary Go error so a host program can choose to panic,
// abort, or attempt recovery — the "rewrite strategies may substitute an
// explicit panic / abort rather than silent exit" option spec §7 calls out.
type Fatal struct {
	Message string
	cause   error
}

func (e *Fatal) Error() string { return e.Message }
func (e *Fatal) Unwrap() error { return e.cause }

// NewFatal wraps cause (an out-of-memory condition from the host
// allocator, for instance) as a Fatal.
func NewFatal(message string, cause error) *Fatal {
	return &Fatal{Message: message, cause: errors.Wrap(cause, message)}
}
