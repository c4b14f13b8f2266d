// Package compilehost declares the consumed compiler interface of spec §6:
// "compile(source_text) -> Function | CompileError. On success the core
// wraps the returned Function in a Closure, installs it as frame 0 (with
// zero arguments), and begins dispatch." The source-to-bytecode compiler
// itself is explicitly out of the execution core's scope; this package is
// only the seam the core was written against.
//
// No production compiler lives here. Tests and any embedding host build
// value.ObjFunction/bytecode.Chunk values directly — exactly the way the
// teacher's own internal/vm tests hand-assemble bytecode instead of routing
// through a compiler. internal/vm's tests pass a nil Compiler to vm.New and
// run those functions with VM.RunFunction; a host that needs a Compiler can
// wrap a plain function with Func.
package compilehost

import (
	"loxcore/internal/value"
	"loxcore/internal/vmerr"
)

// Compiler turns guest source text into a top-level function ready to run
// as frame 0, or reports why it could not.
type Compiler interface {
	Compile(source string) (*value.ObjFunction, *vmerr.CompileError)
}

// Func adapts a plain function to the Compiler interface, the same
// "function as interface" shim idiom used throughout the standard library
// (http.HandlerFunc, sort.Less, etc.).
type Func func(source string) (*value.ObjFunction, *vmerr.CompileError)

// Compile implements Compiler.
func (f Func) Compile(source string) (*value.ObjFunction, *vmerr.CompileError) {
	return f(source)
}
