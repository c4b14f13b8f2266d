package vm

import "loxcore/internal/value"

// FramesMax bounds the call-frame stack; exceeding it on a call is the
// "Stack overflow." RuntimeError of spec §5.
const FramesMax = 64

// StackMax bounds the value stack. The compiler's stack-effect contract is
// assumed to hold for any program that reaches this core, so no bounds
// check happens on ordinary push/pop — only overflow at call sites, per
// spec §4.2.
const StackMax = FramesMax * 256

// CallFrame is a single activation record (spec §4.2): the closure it is
// executing, an instruction pointer into that closure's chunk, and the
// stack index of the frame's slot 0 (the receiver, or the function value
// itself for a plain call).
type CallFrame struct {
	Closure   *value.ObjClosure
	IP        int
	SlotsBase int
}

// function is a small convenience accessor used throughout the dispatch
// loop.
func (f *CallFrame) function() *value.ObjFunction { return f.Closure.Function }

// readByte fetches the operand byte at IP and advances past it.
func (f *CallFrame) readByte() byte {
	b := f.function().Chunk.Code[f.IP]
	f.IP++
	return b
}

// readShort fetches the big-endian 16-bit operand at IP (hi<<8|lo) and
// advances past both bytes, per spec §6's jump-offset encoding.
func (f *CallFrame) readShort() uint16 {
	s := f.function().Chunk.ReadShort(f.IP)
	f.IP += 2
	return s
}

// readConstant fetches the constant-pool entry the next operand byte
// indexes.
func (f *CallFrame) readConstant() value.Value {
	idx := f.readByte()
	return f.function().Chunk.Constants[idx].(value.Value)
}

// readString fetches the next constant as a string, the common case for
// GET_GLOBAL/DEFINE_GLOBAL/SET_GLOBAL/GET_PROPERTY/SET_PROPERTY/GET_SUPER
// and the INVOKE family's method-name operand.
func (f *CallFrame) readString() *value.ObjString {
	s, _ := value.AsString(f.readConstant())
	return s
}

// line reports the source line of the instruction just executed (IP has
// already advanced past it), used when building a stack-trace frame.
func (f *CallFrame) line() int {
	return f.function().Chunk.LineAt(f.IP - 1)
}
