package vm

import (
	"bytes"
	"testing"

	"loxcore/internal/bytecode"
	"loxcore/internal/value"
)

// buildGreeterInit builds `init(n) { this.n = n; }`: slot 0 is the implicit
// receiver, slot 1 the parameter. Initializers return `this`, not nil.
func buildGreeterInit(v *VM) *value.ObjFunction {
	chunk := bytecode.NewChunk("init")
	nameN := chunk.AddConstant(value.FromObj(v.interner.CopyString("n")))
	chunk.WriteOp(bytecode.OpGetLocal, 1)
	chunk.Write(0, 1)
	chunk.WriteOp(bytecode.OpGetLocal, 1)
	chunk.Write(1, 1)
	chunk.WriteOp(bytecode.OpSetProperty, 1)
	chunk.Write(byte(nameN), 1)
	chunk.WriteOp(bytecode.OpPop, 1)
	chunk.WriteOp(bytecode.OpGetLocal, 1)
	chunk.Write(0, 1)
	chunk.WriteOp(bytecode.OpReturn, 1)
	return v.heap.NewFunction(v.interner.CopyString("init"), 1, 0, chunk)
}

// buildGreeterHi builds `hi() { print "hi " + this.n; }`.
func buildGreeterHi(v *VM) *value.ObjFunction {
	chunk := bytecode.NewChunk("hi")
	greeting := chunk.AddConstant(value.FromObj(v.interner.CopyString("hi ")))
	nameN := chunk.AddConstant(value.FromObj(v.interner.CopyString("n")))
	chunk.WriteOp(bytecode.OpConstant, 1)
	chunk.Write(byte(greeting), 1)
	chunk.WriteOp(bytecode.OpGetLocal, 1)
	chunk.Write(0, 1)
	chunk.WriteOp(bytecode.OpGetProperty, 1)
	chunk.Write(byte(nameN), 1)
	chunk.WriteOp(bytecode.OpAdd, 1)
	chunk.WriteOp(bytecode.OpPrint, 1)
	chunk.WriteOp(bytecode.OpNil, 1)
	chunk.WriteOp(bytecode.OpReturn, 1)
	return v.heap.NewFunction(v.interner.CopyString("hi"), 0, 0, chunk)
}

// TestScenario4InitAndMethod is spec §8 end-to-end scenario 4:
// `class Greeter { init(n) { this.n = n; } hi() { print "hi " + this.n; } }
// Greeter("Ada").hi();` -> `hi Ada`.
func TestScenario4InitAndMethod(t *testing.T) {
	v := newTestVM()
	initFn := buildGreeterInit(v)
	hiFn := buildGreeterHi(v)

	top := script(v, func(c *bytecode.Chunk) {
		nameGreeter := c.AddConstant(value.FromObj(v.interner.CopyString("Greeter")))
		nameInit := c.AddConstant(value.FromObj(v.interner.CopyString("init")))
		nameHi := c.AddConstant(value.FromObj(v.interner.CopyString("hi")))
		initConst := c.AddConstant(value.FromObj(initFn))
		hiConst := c.AddConstant(value.FromObj(hiFn))
		ada := c.AddConstant(value.FromObj(v.interner.CopyString("Ada")))

		c.WriteOp(bytecode.OpClass, 1)
		c.Write(byte(nameGreeter), 1)
		c.WriteOp(bytecode.OpDefineGlobal, 1)
		c.Write(byte(nameGreeter), 1)

		c.WriteOp(bytecode.OpGetGlobal, 1)
		c.Write(byte(nameGreeter), 1)

		c.WriteOp(bytecode.OpClosure, 1)
		c.Write(byte(initConst), 1)
		c.WriteOp(bytecode.OpMethod, 1)
		c.Write(byte(nameInit), 1)

		c.WriteOp(bytecode.OpClosure, 1)
		c.Write(byte(hiConst), 1)
		c.WriteOp(bytecode.OpMethod, 1)
		c.Write(byte(nameHi), 1)

		c.WriteOp(bytecode.OpPop, 1) // discard the class temp

		c.WriteOp(bytecode.OpGetGlobal, 1)
		c.Write(byte(nameGreeter), 1)
		c.WriteOp(bytecode.OpConstant, 1)
		c.Write(byte(ada), 1)
		c.WriteOp(bytecode.OpCall, 1)
		c.Write(1, 1)
		c.WriteOp(bytecode.OpInvoke, 1)
		c.Write(byte(nameHi), 1)
		c.Write(0, 1)
		c.WriteOp(bytecode.OpPop, 1)
		c.WriteOp(bytecode.OpNil, 1)
		c.WriteOp(bytecode.OpReturn, 1)
	})

	if result := v.RunFunction(top); result != InterpretOK {
		t.Fatalf("expected InterpretOK, got %s: %s", result, v.Stderr.(*bytes.Buffer).String())
	}
	if got, want := stdout(v), "hi Ada\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}

// TestBoundMethodViaGetProperty checks the GET_PROPERTY method-fallback path
// (bindMethod): reading a method name off an instance (rather than calling
// it inline via INVOKE) produces a callable BoundMethod bound to that
// instance.
func TestBoundMethodViaGetProperty(t *testing.T) {
	v := newTestVM()
	initFn := buildGreeterInit(v)
	hiFn := buildGreeterHi(v)

	top := script(v, func(c *bytecode.Chunk) {
		nameGreeter := c.AddConstant(value.FromObj(v.interner.CopyString("Greeter")))
		nameInit := c.AddConstant(value.FromObj(v.interner.CopyString("init")))
		nameHi := c.AddConstant(value.FromObj(v.interner.CopyString("hi")))
		initConst := c.AddConstant(value.FromObj(initFn))
		hiConst := c.AddConstant(value.FromObj(hiFn))
		ada := c.AddConstant(value.FromObj(v.interner.CopyString("Ada")))

		c.WriteOp(bytecode.OpClass, 1)
		c.Write(byte(nameGreeter), 1)
		c.WriteOp(bytecode.OpDefineGlobal, 1)
		c.Write(byte(nameGreeter), 1)

		c.WriteOp(bytecode.OpGetGlobal, 1)
		c.Write(byte(nameGreeter), 1)
		c.WriteOp(bytecode.OpClosure, 1)
		c.Write(byte(initConst), 1)
		c.WriteOp(bytecode.OpMethod, 1)
		c.Write(byte(nameInit), 1)
		c.WriteOp(bytecode.OpClosure, 1)
		c.Write(byte(hiConst), 1)
		c.WriteOp(bytecode.OpMethod, 1)
		c.Write(byte(nameHi), 1)
		c.WriteOp(bytecode.OpPop, 1)

		c.WriteOp(bytecode.OpGetGlobal, 1)
		c.Write(byte(nameGreeter), 1)
		c.WriteOp(bytecode.OpConstant, 1)
		c.Write(byte(ada), 1)
		c.WriteOp(bytecode.OpCall, 1)
		c.Write(1, 1)
		// m = instance.hi (a BoundMethod, via GET_PROPERTY's method fallback)
		c.WriteOp(bytecode.OpGetProperty, 1)
		c.Write(byte(nameHi), 1)
		c.WriteOp(bytecode.OpCall, 1)
		c.Write(0, 1)
		c.WriteOp(bytecode.OpPop, 1)
		c.WriteOp(bytecode.OpNil, 1)
		c.WriteOp(bytecode.OpReturn, 1)
	})

	if result := v.RunFunction(top); result != InterpretOK {
		t.Fatalf("expected InterpretOK, got %s: %s", result, v.Stderr.(*bytes.Buffer).String())
	}
	if got, want := stdout(v), "hi Ada\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}

// buildPrintStringMethod builds a zero-arg, zero-upvalue method body
// `print "<text>";`.
func buildPrintStringMethod(v *VM, text string) *value.ObjFunction {
	chunk := bytecode.NewChunk("m")
	idx := chunk.AddConstant(value.FromObj(v.interner.CopyString(text)))
	chunk.WriteOp(bytecode.OpConstant, 1)
	chunk.Write(byte(idx), 1)
	chunk.WriteOp(bytecode.OpPrint, 1)
	chunk.WriteOp(bytecode.OpNil, 1)
	chunk.WriteOp(bytecode.OpReturn, 1)
	return v.heap.NewFunction(v.interner.CopyString("m"), 0, 0, chunk)
}

// TestScenario5SuperInvokeAndShadowing is spec §8 end-to-end scenario 5:
// `class A { m() { print "A"; } } class B < A { m() { super.m(); print
// "B"; } } B().m();` -> `A` then `B`, and separately checks spec §8's
// inheritance/shadowing law: A's own "m" is untouched by B's override.
func TestScenario5SuperInvokeAndShadowing(t *testing.T) {
	v := newTestVM()
	mA := buildPrintStringMethod(v, "A")

	mBChunk := bytecode.NewChunk("m")
	nameM := mBChunk.AddConstant(value.FromObj(v.interner.CopyString("m")))
	bText := mBChunk.AddConstant(value.FromObj(v.interner.CopyString("B")))
	mBChunk.WriteOp(bytecode.OpGetLocal, 1)
	mBChunk.Write(0, 1) // this
	mBChunk.WriteOp(bytecode.OpGetUpvalue, 1)
	mBChunk.Write(0, 1) // super
	mBChunk.WriteOp(bytecode.OpSuperInvoke, 1)
	mBChunk.Write(byte(nameM), 1)
	mBChunk.Write(0, 1) // argc
	mBChunk.WriteOp(bytecode.OpPop, 1)
	mBChunk.WriteOp(bytecode.OpConstant, 1)
	mBChunk.Write(byte(bText), 1)
	mBChunk.WriteOp(bytecode.OpPrint, 1)
	mBChunk.WriteOp(bytecode.OpNil, 1)
	mBChunk.WriteOp(bytecode.OpReturn, 1)
	mB := v.heap.NewFunction(v.interner.CopyString("m"), 0, 1, mBChunk)

	top := script(v, func(c *bytecode.Chunk) {
		nameA := c.AddConstant(value.FromObj(v.interner.CopyString("A")))
		nameB := c.AddConstant(value.FromObj(v.interner.CopyString("B")))
		nameMethod := c.AddConstant(value.FromObj(v.interner.CopyString("m")))
		mAConst := c.AddConstant(value.FromObj(mA))
		mBConst := c.AddConstant(value.FromObj(mB))

		// class A { m() { print "A"; } }
		c.WriteOp(bytecode.OpClass, 1)
		c.Write(byte(nameA), 1)
		c.WriteOp(bytecode.OpDefineGlobal, 1)
		c.Write(byte(nameA), 1)
		c.WriteOp(bytecode.OpGetGlobal, 1)
		c.Write(byte(nameA), 1)
		c.WriteOp(bytecode.OpClosure, 1)
		c.Write(byte(mAConst), 1)
		c.WriteOp(bytecode.OpMethod, 1)
		c.Write(byte(nameMethod), 1)
		c.WriteOp(bytecode.OpPop, 1)

		// class B < A { m() { super.m(); print "B"; } }
		c.WriteOp(bytecode.OpClass, 1)
		c.Write(byte(nameB), 1)
		c.WriteOp(bytecode.OpDefineGlobal, 1)
		c.Write(byte(nameB), 1)

		c.WriteOp(bytecode.OpGetGlobal, 1) // push superclass A -> becomes local "super" (slot 1)
		c.Write(byte(nameA), 1)
		c.WriteOp(bytecode.OpGetGlobal, 1) // push subclass B for INHERIT
		c.Write(byte(nameB), 1)
		c.WriteOp(bytecode.OpInherit, 1) // B.Methods += A.Methods; pops B, leaves "super"=A

		c.WriteOp(bytecode.OpGetGlobal, 1) // push B again, for method defs
		c.Write(byte(nameB), 1)
		c.WriteOp(bytecode.OpClosure, 1)
		c.Write(byte(mBConst), 1)
		c.Write(1, 1) // isLocal = true
		c.Write(1, 1) // captures script's local slot 1 ("super")
		c.WriteOp(bytecode.OpMethod, 1)
		c.Write(byte(nameMethod), 1)
		c.WriteOp(bytecode.OpPop, 1) // pop the method-def B temp

		c.WriteOp(bytecode.OpCloseUpvalue, 1) // endScope: close and pop the captured "super" local

		// B().m();
		c.WriteOp(bytecode.OpGetGlobal, 1)
		c.Write(byte(nameB), 1)
		c.WriteOp(bytecode.OpCall, 1)
		c.Write(0, 1)
		c.WriteOp(bytecode.OpInvoke, 1)
		c.Write(byte(nameMethod), 1)
		c.Write(0, 1)
		c.WriteOp(bytecode.OpPop, 1)
		c.WriteOp(bytecode.OpNil, 1)
		c.WriteOp(bytecode.OpReturn, 1)
	})

	if result := v.RunFunction(top); result != InterpretOK {
		t.Fatalf("expected InterpretOK, got %s: %s", result, v.Stderr.(*bytes.Buffer).String())
	}
	if got, want := stdout(v), "A\nB\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}

	classA, ok := v.globals.Get("A")
	if !ok {
		t.Fatalf("expected global A to exist")
	}
	a, ok := value.AsClass(classA)
	if !ok {
		t.Fatalf("expected A to be a class")
	}
	aMethod, ok := a.Methods.Get("m")
	if !ok {
		t.Fatalf("expected A.m to still exist after B shadows it")
	}
	if aMethod.Function != mA {
		t.Fatalf("expected A's own m to be untouched by B's override")
	}
}
