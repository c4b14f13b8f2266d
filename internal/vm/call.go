package vm

import (
	"loxcore/internal/value"
	"loxcore/internal/vmerr"
)

// callValue implements spec §4.3's call_value(callee, argc): it dispatches
// on the callee's runtime type and either pushes a new frame (Closure,
// Class) or completes synchronously (Native).
func (vm *VM) callValue(callee value.Value, argc int) error {
	if !callee.IsObj() {
		return vm.runtimeError("Can only call functions and classes.")
	}

	switch obj := callee.AsObj().(type) {
	case *value.ObjBoundMethod:
		vm.stack[vm.stackTop-argc-1] = obj.Receiver
		return vm.call(obj.Method, argc)

	case *value.ObjClass:
		instance := vm.heap.NewInstance(obj)
		vm.stack[vm.stackTop-argc-1] = value.FromObj(instance)
		if initializer, ok := obj.Methods.Get(vm.initString.Chars); ok {
			return vm.call(initializer, argc)
		}
		if argc != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argc)
		}
		return nil

	case *value.ObjClosure:
		return vm.call(obj, argc)

	case *value.ObjNative:
		args := append([]value.Value(nil), vm.stack[vm.stackTop-argc:vm.stackTop]...)
		result, err := obj.Fn(args)
		if err != nil {
			if rerr, ok := err.(*vmerr.RuntimeError); ok {
				return rerr
			}
			// The native returned a plain host error (a syscall failure,
			// say) rather than raising its own RuntimeError: keep it
			// reachable via errors.Unwrap/errors.As instead of flattening
			// it to text only.
			return vm.runtimeError("%s", err.Error()).WithCause(err)
		}
		vm.stackTop -= argc + 1
		vm.push(result)
		return nil

	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// call pushes a new frame for closure, checking arity and frame-stack
// depth first (spec §4.3's "check argc == arity"; "check frame stack not
// full").
func (vm *VM) call(closure *value.ObjClosure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError("Stack overflow.")
	}

	frame := &vm.frames[vm.frameCount]
	frame.Closure = closure
	frame.IP = 0
	frame.SlotsBase = vm.stackTop - argc - 1
	vm.frameCount++

	if vm.hook != nil {
		name := "script"
		if closure.Function.Name != nil {
			name = closure.Function.Name.Chars
		}
		vm.hook.OnCall(vm, name, argc)
	}
	return nil
}

// invoke implements the INVOKE opcode: a method call on an Instance that
// skips allocating an intermediate BoundMethod. A field shadowing a method
// is called as an ordinary value, matching spec §4.3's INVOKE row.
func (vm *VM) invoke(name string, argc int) error {
	receiver := vm.peek(argc)
	instance, ok := value.AsInstance(receiver)
	if !ok {
		return vm.runtimeError("Only instances have methods.")
	}

	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argc-1] = field
		return vm.callValue(field, argc)
	}

	return vm.invokeFromClass(instance.Class, name, argc)
}

// invokeFromClass resolves name directly on class's (flat) method table and
// calls it, used by both INVOKE and SUPER_INVOKE.
func (vm *VM) invokeFromClass(class *value.ObjClass, name string, argc int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}
	return vm.call(method, argc)
}

// bindMethod looks up name on class, pairs it with the receiver currently
// on top of the stack (peek(0)), and replaces it with the resulting
// BoundMethod. Used by GET_PROPERTY (method fallback) and GET_SUPER.
func (vm *VM) bindMethod(class *value.ObjClass, name string) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name)
	}

	bound := vm.heap.NewBoundMethod(vm.peek(0), method)
	vm.pop()
	vm.push(value.FromObj(bound))
	return nil
}
