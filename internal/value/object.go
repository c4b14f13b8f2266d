package value

import (
	"github.com/google/uuid"

	"loxcore/internal/bytecode"
	"loxcore/internal/symtab"
)

// ObjType tags which heap-object variant an Obj header belongs to.
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
)

// Obj is the common header every heap object embeds (spec §3 "Object").
// IsMarked and Next exist solely to satisfy the GC contract: Next threads
// every live allocation onto the all-objects list so a future tracing
// collector can walk them; IsMarked is the tri-color bit that collector
// would flip. Neither field is touched by anything in this package except
// the allocator (heap.go).
type Obj struct {
	Type     ObjType
	IsMarked bool
	Next     *Obj

	// id is a debug-only identity, surfaced through ID() and by
	// pretty-printed dumps; it plays no role in guest-language semantics.
	id uuid.UUID
}

// Header returns o itself, satisfying the Object interface. Every variant
// embeds Obj by value and so promotes this method, letting any *ObjXxx be
// used wherever an Object is expected.
func (o *Obj) Header() *Obj { return o }

// ID returns the object's debug identity.
func (o *Obj) ID() uuid.UUID { return o.id }

// Object is any heap-allocated value reachable through a Value. Using an
// interface here (rather than embedding Obj and type-punning pointers)
// keeps object identity checks and type assertions in ordinary, safe Go.
type Object interface {
	Header() *Obj
}

// ObjString is an interned byte buffer. Two ObjString values are equal
// under spec §3 iff their Chars are equal; the intern table (an external
// collaborator, consumed via internal/intern's Table) is
// responsible for guaranteeing at most one ObjString exists per distinct
// byte sequence, which is what lets Value equality short-circuit to
// identity comparison for every other object type.
type ObjString struct {
	Obj
	Chars string
}

// ObjFunction is an immutable, compiled function: its arity, how many
// upvalues its closures must capture, and the chunk of bytecode that
// implements its body.
type ObjFunction struct {
	Obj
	Arity        int
	UpvalueCount int
	Chunk        *bytecode.Chunk
	Name         *ObjString // nil for the top-level script function
}

// NativeFn is the signature of a built-in function (spec §6's clock() and
// friends): it receives the call's arguments and returns a Value or an
// error describing why the call failed.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a host-provided function so it can be called the same
// way a guest Closure is called.
type ObjNative struct {
	Obj
	Name string
	Fn   NativeFn
}

// ObjUpvalue is a first-class handle to a captured variable. While the
// upvalue is open, Location aliases a live stack slot; once closed,
// Location points at Closed, which owns the value. Next
// threads every currently-open upvalue into a single list sorted by
// strictly decreasing stack address (see internal/vm/upvalue.go).
type ObjUpvalue struct {
	Obj
	Location *Value
	Closed   Value
	Next     *ObjUpvalue
}

// ObjClosure bundles a Function with the Upvalues its body closes over.
// Every function-literal evaluation produces a fresh Closure, even though
// many closures may share the same Function and even the same individual
// Upvalue objects.
type ObjClosure struct {
	Obj
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// MethodTable maps method-name strings to the Closure implementing them.
type MethodTable = symtab.Table[*ObjClosure]

// FieldTable maps field-name strings to their current Value.
type FieldTable = symtab.Table[Value]

// ObjClass is a guest-language class: a name and a flat dispatch table of
// methods. Inheritance (OP_INHERIT) copies every entry of the superclass's
// table into the subclass's at class-definition time, so method lookup
// never walks a superclass chain at call time.
type ObjClass struct {
	Obj
	Name    *ObjString
	Methods *MethodTable
}

// ObjInstance is a live instance of a class: the class it was created from,
// plus a table of fields created lazily on first assignment.
type ObjInstance struct {
	Obj
	Class  *ObjClass
	Fields *FieldTable
}

// ObjBoundMethod pairs a receiver with the Closure implementing a method
// looked up on it, produced by property access (OP_GET_PROPERTY) when the
// name resolves to a method rather than a field. Calling it rebinds slot 0
// of the new frame to Receiver.
type ObjBoundMethod struct {
	Obj
	Receiver Value
	Method   *ObjClosure
}

// AsString type-asserts v as a string object, the common pattern every
// string-consuming opcode (ADD, property-name lookups, PRINT) needs.
func AsString(v Value) (*ObjString, bool) {
	if !v.IsObj() {
		return nil, false
	}
	s, ok := v.obj.(*ObjString)
	return s, ok
}

// AsFunction type-asserts v as a function object.
func AsFunction(v Value) (*ObjFunction, bool) {
	if !v.IsObj() {
		return nil, false
	}
	f, ok := v.obj.(*ObjFunction)
	return f, ok
}

// AsNative type-asserts v as a native-function object.
func AsNative(v Value) (*ObjNative, bool) {
	if !v.IsObj() {
		return nil, false
	}
	n, ok := v.obj.(*ObjNative)
	return n, ok
}

// AsClosure type-asserts v as a closure object.
func AsClosure(v Value) (*ObjClosure, bool) {
	if !v.IsObj() {
		return nil, false
	}
	c, ok := v.obj.(*ObjClosure)
	return c, ok
}

// AsClass type-asserts v as a class object.
func AsClass(v Value) (*ObjClass, bool) {
	if !v.IsObj() {
		return nil, false
	}
	c, ok := v.obj.(*ObjClass)
	return c, ok
}

// AsInstance type-asserts v as an instance object.
func AsInstance(v Value) (*ObjInstance, bool) {
	if !v.IsObj() {
		return nil, false
	}
	i, ok := v.obj.(*ObjInstance)
	return i, ok
}

// AsBoundMethod type-asserts v as a bound-method object.
func AsBoundMethod(v Value) (*ObjBoundMethod, bool) {
	if !v.IsObj() {
		return nil, false
	}
	b, ok := v.obj.(*ObjBoundMethod)
	return b, ok
}

// TypeName renders a human name for v's type, used in runtime-error
// messages that add a "got a <type>" detail.
func TypeName(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		return "bool"
	case v.IsNumber():
		return "number"
	case v.IsObj():
		switch v.obj.Header().Type {
		case ObjTypeString:
			return "string"
		case ObjTypeFunction, ObjTypeClosure, ObjTypeNative:
			return "function"
		case ObjTypeClass:
			return "class"
		case ObjTypeInstance:
			return "instance"
		case ObjTypeBoundMethod:
			return "bound method"
		case ObjTypeUpvalue:
			return "upvalue"
		}
	}
	return "value"
}
