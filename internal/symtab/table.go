// Package symtab is the consumed hash-table primitive of spec §6: a map of
// interned-string keys to values, used by the core for globals, instance
// fields, and class method tables. The primitive itself (hashing, probing)
// is an external collaborator in the original design; this package is the
// thin, generic adapter the core was written against so that it never cares
// whether the real implementation is Go's builtin map, an open-addressing
// table, or something else entirely.
package symtab

import "golang.org/x/exp/maps"

// Table maps string keys to values of type V. It is generic so that the
// value package (Value, ObjClass, ObjInstance) can instantiate it without
// this package importing anything back from value — that would create an
// import cycle, since value imports symtab.
type Table[V any] struct {
	m map[string]V
}

// New returns an empty table.
func New[V any]() *Table[V] {
	return &Table[V]{m: make(map[string]V)}
}

// Get reports the value stored for key, if any.
func (t *Table[V]) Get(key string) (V, bool) {
	v, ok := t.m[key]
	return v, ok
}

// Set stores v under key and reports whether key was new to the table.
// Callers rely on this return value: spec §4.3's OP_SET_GLOBAL must delete
// the tombstone it just created when the key did not already exist.
func (t *Table[V]) Set(key string, v V) bool {
	_, existed := t.m[key]
	t.m[key] = v
	return !existed
}

// Delete removes key and reports whether it was present.
func (t *Table[V]) Delete(key string) bool {
	_, existed := t.m[key]
	if existed {
		delete(t.m, key)
	}
	return existed
}

// AddAll copies every entry of other into t, overwriting on collision. This
// is the primitive OP_INHERIT uses to flatten a superclass's method table
// into a subclass's.
func (t *Table[V]) AddAll(other *Table[V]) {
	for k, v := range other.m {
		t.m[k] = v
	}
}

// Len reports the number of entries.
func (t *Table[V]) Len() int {
	return len(t.m)
}

// Names returns the table's keys in no particular order, for debugging and
// for VM.GlobalRoots' walk over the globals.
func (t *Table[V]) Names() []string {
	return maps.Keys(t.m)
}
