// Package value implements the tagged Value union and the heap-object model
// built on top of it (spec §3). It builds on bytecode, symtab and vmerr and
// may be imported by bytecode-consuming code (internal/vm), but must never
// import that code back.
package value

import "math"

// Kind tags which variant a Value currently holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is the tagged union over {nil, bool, number, object reference}.
// It is a plain struct rather than an interface so that nil/bool/number
// values never allocate.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	obj     Object
}

// Nil is the singular nil value.
var Nil = Value{kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

// FromObj constructs an object-reference Value wrapping a heap object. The
// guest language has its own Nil; an object-reference Value is never used
// to represent absence, so callers must pass a live, non-nil object.
func FromObj(o Object) Value {
	return Value{kind: KindObj, obj: o}
}

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObj() bool    { return v.kind == KindObj }

// AsBool returns the boolean payload; callers must check IsBool first.
func (v Value) AsBool() bool { return v.boolean }

// AsNumber returns the numeric payload; callers must check IsNumber first.
func (v Value) AsNumber() float64 { return v.number }

// AsObj returns the object payload; callers must check IsObj first.
func (v Value) AsObj() Object { return v.obj }

// IsFalsey implements spec §3: nil and false are falsey, everything else
// (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.kind == KindNil || (v.kind == KindBool && !v.boolean)
}

// Equal implements the value-equality rules of spec §3: nil equals nil,
// bools/numbers compare by value (NaN follows IEEE-754, so NaN != NaN),
// strings compare by content, and every other object compares by identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return a.number == b.number
	case KindObj:
		if as, ok := AsString(a); ok {
			if bs, ok := AsString(b); ok {
				return as.Chars == bs.Chars
			}
			return false
		}
		return a.obj == b.obj
	default:
		return false
	}
}

// IsNaN reports whether v is the numeric NaN, the one value for which
// Equal(v, v) is false (spec §8's reflexivity law names this exception).
func (v Value) IsNaN() bool {
	return v.kind == KindNumber && math.IsNaN(v.number)
}

// Kind exposes the tag for callers (the VM's type-check error paths) that
// need to report "expected number/string" without a full type switch.
func (v Value) Kind() Kind { return v.kind }
