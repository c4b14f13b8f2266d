// Package intern is the consumed string-interning collaborator of spec §6
// ("String interner (consumed): copyString(bytes,len) and
// takeString(bytes,len) return canonicalized String objects"). The real
// interning table is explicitly out of the execution core's scope; this
// package supplies the default adapter the core is built against so it has
// something to run with, and so the "string identity equality is
// equivalent to string value equality" invariant of spec §3 actually holds
// for every test in internal/vm.
package intern

import (
	"sync"

	"loxcore/internal/value"
)

// Table is the consumed Interner: it guarantees that for each distinct byte
// sequence at most one *value.ObjString is ever produced, so Value equality
// can compare strings by pointer identity.
type Table struct {
	mu      sync.Mutex
	strings map[string]*value.ObjString
	heap    *value.Allocator
}

// New returns an interner backed by heap for its allocation accounting.
func New(heap *value.Allocator) *Table {
	return &Table{strings: make(map[string]*value.ObjString), heap: heap}
}

// CopyString returns the canonical ObjString for s, allocating one on first
// sight of that byte sequence.
func (t *Table) CopyString(s string) *value.ObjString {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.strings[s]; ok {
		return existing
	}
	obj := t.heap.NewString(s)
	t.strings[s] = obj
	return obj
}

// TakeString is copyString's ownership-transferring sibling. Go strings are
// immutable value types, so there is no buffer to actually hand over; this
// exists to keep the external interface of spec §6 faithfully represented
// (a caller that built s itself, e.g. string concatenation, uses this
// entry point rather than CopyString, documenting that intent even though
// the behavior is identical here).
func (t *Table) TakeString(s string) *value.ObjString {
	return t.CopyString(s)
}

// Sweep drops every entry whose ObjString is no longer reachable, per the
// "weak root" rule of spec §3: the intern table must not keep strings
// alive on its own. live reports reachability as determined by a tracing
// collector. This core's mark/sweep is a documented stub (see
// internal/value/heap.go), so nothing in the core calls Sweep.
func (t *Table) Sweep(live func(*value.ObjString) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, s := range t.strings {
		if !live(s) {
			delete(t.strings, k)
		}
	}
}

// Len reports how many distinct strings are currently interned.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.strings)
}
