package vm

import (
	"fmt"

	"loxcore/internal/bytecode"
	"loxcore/internal/value"
	"loxcore/internal/vmerr"
)

// run is the dispatch loop of spec §4.3: it executes the bytecode of the
// topmost frame until an OP_RETURN from frame 0 halts with a result, or a
// precondition fails and a RuntimeError propagates out. A plain switch
// over bytecode.OpCode stands in for the source's computed-goto dispatch,
// which spec §9 calls "an optimization, not a semantic choice".
func (vm *VM) run() (value.Value, error) {
	for {
		if vm.fatal != nil {
			err := vm.fatal
			vm.fatal = nil
			return value.Nil, err
		}

		frame := &vm.frames[vm.frameCount-1]
		op := bytecode.OpCode(frame.readByte())

		if vm.hook != nil {
			vm.hook.OnInstruction(vm, frame, op)
		}

		switch op {
		case bytecode.OpConstant:
			vm.push(frame.readConstant())

		case bytecode.OpNil:
			vm.push(value.Nil)

		case bytecode.OpTrue:
			vm.push(value.Bool(true))

		case bytecode.OpFalse:
			vm.push(value.Bool(false))

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := frame.readByte()
			vm.push(vm.stack[frame.SlotsBase+int(slot)])

		case bytecode.OpSetLocal:
			slot := frame.readByte()
			vm.stack[frame.SlotsBase+int(slot)] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := frame.readString()
			v, ok := vm.globals.Get(name.Chars)
			if !ok {
				return value.Nil, vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)

		case bytecode.OpDefineGlobal:
			name := frame.readString()
			vm.globals.Set(name.Chars, vm.pop())

		case bytecode.OpSetGlobal:
			name := frame.readString()
			if vm.globals.Set(name.Chars, vm.peek(0)) {
				// Set reported "was new" — this name was undefined. Delete
				// the tombstone it just created so a later, legitimate
				// `var x` define does not see a stale entry (spec §9).
				vm.globals.Delete(name.Chars)
				return value.Nil, vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case bytecode.OpGetUpvalue:
			slot := frame.readByte()
			vm.push(*frame.Closure.Upvalues[slot].Location)

		case bytecode.OpSetUpvalue:
			slot := frame.readByte()
			*frame.Closure.Upvalues[slot].Location = vm.peek(0)

		case bytecode.OpGetProperty:
			name := frame.readString()
			instance, ok := value.AsInstance(vm.peek(0))
			if !ok {
				return value.Nil, vm.runtimeError("Only instances have properties.")
			}
			if field, ok := instance.Fields.Get(name.Chars); ok {
				vm.pop()
				vm.push(field)
				break
			}
			if err := vm.bindMethod(instance.Class, name.Chars); err != nil {
				return value.Nil, err
			}

		case bytecode.OpSetProperty:
			name := frame.readString()
			instance, ok := value.AsInstance(vm.peek(1))
			if !ok {
				return value.Nil, vm.runtimeError("Only instances have fields.")
			}
			v := vm.peek(0)
			instance.Fields.Set(name.Chars, v)
			vm.pop()
			vm.pop()
			vm.push(v)

		case bytecode.OpGetSuper:
			name := frame.readString()
			superclass, ok := value.AsClass(vm.pop())
			if !ok {
				return value.Nil, vm.runtimeError("Superclass must be a class.")
			}
			if err := vm.bindMethod(superclass, name.Chars); err != nil {
				return value.Nil, err
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))

		case bytecode.OpGreater:
			if err := vm.numericCompare(func(a, b float64) bool { return a > b }); err != nil {
				return value.Nil, err
			}

		case bytecode.OpLess:
			if err := vm.numericCompare(func(a, b float64) bool { return a < b }); err != nil {
				return value.Nil, err
			}

		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return value.Nil, err
			}

		case bytecode.OpSubtract:
			if err := vm.arith(func(a, b float64) float64 { return a - b }); err != nil {
				return value.Nil, err
			}

		case bytecode.OpMultiply:
			if err := vm.arith(func(a, b float64) float64 { return a * b }); err != nil {
				return value.Nil, err
			}

		case bytecode.OpDivide:
			if err := vm.arith(func(a, b float64) float64 { return a / b }); err != nil {
				return value.Nil, err
			}

		case bytecode.OpNot:
			vm.push(value.Bool(vm.pop().IsFalsey()))

		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return value.Nil, vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.stringify(vm.pop()))

		case bytecode.OpJump:
			offset := frame.readShort()
			frame.IP += int(offset)

		case bytecode.OpJumpIfFalse:
			offset := frame.readShort()
			if vm.peek(0).IsFalsey() {
				frame.IP += int(offset)
			}

		case bytecode.OpLoop:
			offset := frame.readShort()
			frame.IP -= int(offset)

		case bytecode.OpCall:
			argc := int(frame.readByte())
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return value.Nil, err
			}

		case bytecode.OpInvoke:
			name := frame.readString()
			argc := int(frame.readByte())
			if err := vm.invoke(name.Chars, argc); err != nil {
				return value.Nil, err
			}

		case bytecode.OpSuperInvoke:
			name := frame.readString()
			argc := int(frame.readByte())
			// spec §9 open question (c): the superclass is popped before
			// the method is resolved; this order must be preserved to
			// remain compatible with emitted bytecode.
			superclass, ok := value.AsClass(vm.pop())
			if !ok {
				return value.Nil, vm.runtimeError("Superclass must be a class.")
			}
			if err := vm.invokeFromClass(superclass, name.Chars, argc); err != nil {
				return value.Nil, err
			}

		case bytecode.OpClosure:
			fn, ok := value.AsFunction(frame.readConstant())
			if !ok {
				return value.Nil, vm.runtimeError("Constant is not a function.")
			}
			closure := vm.heap.NewClosure(fn)
			vm.push(value.FromObj(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := frame.readByte()
				index := frame.readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[frame.SlotsBase+int(index)])
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.stackTop-1])
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[frame.SlotsBase])
			vm.frameCount--
			if vm.hook != nil {
				vm.hook.OnReturn(vm, result)
			}
			if vm.frameCount == 0 {
				vm.pop() // discard the top-level script closure (spec §4.3)
				return result, nil
			}
			vm.stackTop = frame.SlotsBase
			vm.push(result)

		case bytecode.OpClass:
			name := frame.readString()
			vm.push(value.FromObj(vm.heap.NewClass(name)))

		case bytecode.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := value.AsClass(superVal)
			if !ok {
				return value.Nil, vm.runtimeError("Superclass must be a class.")
			}
			subclass, _ := value.AsClass(vm.peek(0))
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop() // pop subclass, leaving superclass on the stack

		case bytecode.OpMethod:
			name := frame.readString()
			method, _ := value.AsClosure(vm.peek(0))
			class, _ := value.AsClass(vm.peek(1))
			class.Methods.Set(name.Chars, method)
			vm.pop()

		default:
			return value.Nil, vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

// runtimeError builds a RuntimeError carrying the full, innermost-first
// call stack of spec §4.3's "Runtime error" paragraph.
func (vm *VM) runtimeError(format string, args ...interface{}) *vmerr.RuntimeError {
	err := vmerr.NewRuntimeError(format, args...)

	stack := make([]vmerr.Frame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.function()
		name := ""
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		stack = append(stack, vmerr.Frame{Function: name, Line: f.line()})
	}
	return err.WithStack(stack)
}

// numericCompare implements GREATER/LESS: both operands must be numbers.
func (vm *VM) numericCompare(cmp func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Bool(cmp(a, b)))
	return nil
}

// arith implements SUBTRACT/MULTIPLY/DIVIDE: both operands must be numbers.
func (vm *VM) arith(op func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop().AsNumber()
	a := vm.pop().AsNumber()
	vm.push(value.Number(op(a, b)))
	return nil
}

// add implements ADD: string concatenation when both operands are strings,
// numeric addition when both are numbers, a RuntimeError otherwise.
func (vm *VM) add() error {
	bVal := vm.peek(0)
	aVal := vm.peek(1)

	if as, ok := value.AsString(aVal); ok {
		if bs, ok := value.AsString(bVal); ok {
			vm.pop()
			vm.pop()
			concatenated := vm.interner.CopyString(as.Chars + bs.Chars)
			vm.push(value.FromObj(concatenated))
			return nil
		}
	}

	if aVal.IsNumber() && bVal.IsNumber() {
		vm.pop()
		vm.pop()
		vm.push(value.Number(aVal.AsNumber() + bVal.AsNumber()))
		return nil
	}

	return vm.runtimeError("Operands must be two numbers or two strings.")
}

// stringify renders v's textual representation for OP_PRINT.
func (vm *VM) stringify(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsObj():
		return stringifyObject(v)
	default:
		return ""
	}
}

func stringifyObject(v value.Value) string {
	switch obj := v.AsObj().(type) {
	case *value.ObjString:
		return obj.Chars
	case *value.ObjFunction:
		if obj.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", obj.Name.Chars)
	case *value.ObjNative:
		return fmt.Sprintf("<native fn %s>", obj.Name)
	case *value.ObjClosure:
		return stringifyObject(value.FromObj(obj.Function))
	case *value.ObjClass:
		return obj.Name.Chars
	case *value.ObjInstance:
		return fmt.Sprintf("%s instance", obj.Class.Name.Chars)
	case *value.ObjBoundMethod:
		return stringifyObject(value.FromObj(obj.Method.Function))
	default:
		return "<object>"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}
