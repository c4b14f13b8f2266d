package value

import (
	"fmt"

	"github.com/google/uuid"

	"loxcore/internal/bytecode"
	"loxcore/internal/symtab"
	"loxcore/internal/vmerr"
)

// Allocator is the single allocation-accounting primitive of spec §4.4: a
// reallocate(oldSize, newSize) style hook that every heap object is routed
// through, whether it is being created, grown, or freed. Go's runtime does
// the actual memory management; what this type owns is the contract a
// tracing collector would need: byte accounting, the all-objects list, and
// a safe-point hook that fires exactly at growth.
//
// Tri-color mark-and-sweep over Roots() is the one piece the upstream
// source also never implements (collectGarbage has no body there either);
// it is a documented stub here for the same reason: the algorithm is an
// external collaborator's job, not the execution core's.
type Allocator struct {
	bytesAllocated int64
	nextGC         int64
	objects        *Obj

	// OnSafePoint, if set, is invoked whenever Reallocate crosses a growth
	// threshold. The VM wires this to its own maybeCollect, keeping the
	// "GC may only run at allocation sites" rule (spec §4.4) enforceable
	// without this package knowing anything about frames or the stack.
	OnSafePoint func(a *Allocator)

	// MaxBytes, if positive, is a hard ceiling CheckBudget enforces: a host
	// embedding this core (spec §7's "host cannot satisfy the request")
	// that wants a bounded guest rather than an unbounded one sets it.
	// Zero means unbounded, the default a bare NewAllocator() gets.
	MaxBytes int64
}

// NewAllocator returns an allocator with an initial GC threshold, mirroring
// the source's 1MB starting point before the first heuristic adjustment.
func NewAllocator() *Allocator {
	return &Allocator{nextGC: 1024 * 1024}
}

// Reallocate accounts for a size change of oldSize -> newSize bytes and, when
// a growth crosses the GC threshold or MaxBytes, invokes OnSafePoint. It
// returns nothing. 0/0 is a legal no-op; newSize 0 represents a free.
func (a *Allocator) Reallocate(oldSize, newSize int) {
	a.bytesAllocated += int64(newSize - oldSize)
	grew := newSize > oldSize
	crossedGCThreshold := grew && a.bytesAllocated > a.nextGC
	crossedBudget := grew && a.MaxBytes > 0 && a.bytesAllocated > a.MaxBytes
	if (crossedGCThreshold || crossedBudget) && a.OnSafePoint != nil {
		a.OnSafePoint(a)
	}
}

// BytesAllocated reports current accounted bytes, used by the diag package
// for humanized reporting and by the inspector's periodic stats frames.
func (a *Allocator) BytesAllocated() int64 { return a.bytesAllocated }

// GrowThreshold adjusts the next collection trigger, the heuristic step a
// real collector takes after a sweep (here exposed so a future mark/sweep
// implementation has somewhere to put its growth factor).
func (a *Allocator) GrowThreshold(factor int64) {
	if factor <= 0 {
		factor = 2
	}
	a.nextGC = a.bytesAllocated * factor
}

// CheckBudget reports a *vmerr.Fatal if MaxBytes is set and exceeded. This
// is the one place this core raises spec §7's Fatal kind for real: Go's
// allocator never returns ENOMEM the way the upstream host's malloc can,
// so an embedding host that wants a bounded guest sets MaxBytes and the VM
// surfaces the overage here instead of letting the guest allocate without
// limit.
func (a *Allocator) CheckBudget() error {
	if a.MaxBytes <= 0 || a.bytesAllocated <= a.MaxBytes {
		return nil
	}
	cause := fmt.Errorf("%d bytes allocated exceeds budget of %d", a.bytesAllocated, a.MaxBytes)
	return vmerr.NewFatal("allocator budget exceeded", cause)
}

// track links o onto the all-objects list and accounts for its size. Every
// NewXxx constructor in this file calls it exactly once.
func (a *Allocator) track(o *Obj, size int) {
	o.id = uuid.New()
	o.Next = a.objects
	a.objects = o
	a.Reallocate(0, size)
}

// Objects returns the head of the all-objects list, the structure a
// sweep phase would walk to free anything left unmarked.
func (a *Allocator) Objects() *Obj { return a.objects }

// NewString allocates an interned string object. The intern table itself
// is an external collaborator (see internal/intern); this constructor only
// performs the allocation-accounting half of copyString/takeString.
func (a *Allocator) NewString(chars string) *ObjString {
	s := &ObjString{Chars: chars}
	s.Type = ObjTypeString
	a.track(&s.Obj, len(chars))
	return s
}

// NewFunction allocates a function object wrapping chunk.
func (a *Allocator) NewFunction(name *ObjString, arity, upvalueCount int, chunk *bytecode.Chunk) *ObjFunction {
	f := &ObjFunction{Name: name, Arity: arity, UpvalueCount: upvalueCount, Chunk: chunk}
	f.Type = ObjTypeFunction
	a.track(&f.Obj, 64)
	return f
}

// NewNative allocates a native-function object.
func (a *Allocator) NewNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	n.Type = ObjTypeNative
	a.track(&n.Obj, 16)
	return n
}

// NewClosure allocates a closure over fn with upvalueCount upvalue slots,
// all initially nil; CLOSURE's dispatch pushes the closure onto the stack
// and then fills every slot before the next instruction runs (spec §3
// closure invariant).
func (a *Allocator) NewClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	c.Type = ObjTypeClosure
	a.track(&c.Obj, 16+8*fn.UpvalueCount)
	return c
}

// NewUpvalue allocates an open upvalue pointing at location.
func (a *Allocator) NewUpvalue(location *Value) *ObjUpvalue {
	u := &ObjUpvalue{Location: location}
	u.Type = ObjTypeUpvalue
	a.track(&u.Obj, 24)
	return u
}

// NewClass allocates a class with an empty method table.
func (a *Allocator) NewClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name, Methods: symtab.New[*ObjClosure]()}
	c.Type = ObjTypeClass
	a.track(&c.Obj, 32)
	return c
}

// NewInstance allocates an instance of class with an empty field table.
func (a *Allocator) NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class, Fields: symtab.New[Value]()}
	i.Type = ObjTypeInstance
	a.track(&i.Obj, 32)
	return i
}

// NewBoundMethod allocates a bound method pairing receiver with method.
func (a *Allocator) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.Type = ObjTypeBoundMethod
	a.track(&b.Obj, 24)
	return b
}

// Roots is the GC-contract enumeration of spec §3 "Lifecycle": every value
// reachable from the stack, every live frame's closure, every open
// upvalue, the globals table, and the sentinel initializer-name string
// "init" are live. The intern table is a *weak* root and must not be
// included here. RootsSource is implemented by internal/vm.VM so this
// package never needs to know about frames or the stack.
type RootsSource interface {
	StackRoots() []Value
	FrameRoots() []Object
	OpenUpvalueRoots() []*ObjUpvalue
	GlobalRoots() []Value
	InitStringRoot() (Value, bool)
}

// Roots walks src and returns every currently-live root Value, the
// enumeration half of the GC contract. Marking and sweeping over the
// result (and over Objects()) is left to a tracing collector this package
// intentionally does not implement, exactly as in the upstream source.
func Roots(src RootsSource) []Value {
	var roots []Value
	roots = append(roots, src.StackRoots()...)
	roots = append(roots, src.GlobalRoots()...)
	for _, f := range src.FrameRoots() {
		roots = append(roots, FromObj(f))
	}
	for _, u := range src.OpenUpvalueRoots() {
		roots = append(roots, FromObj(u))
	}
	if v, ok := src.InitStringRoot(); ok {
		roots = append(roots, v)
	}
	return roots
}
