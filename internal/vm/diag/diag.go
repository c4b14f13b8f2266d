// Package diag renders human-facing snapshots of a running VM: heap size in
// humanized units, a pretty-printed dump of a single value or frame, and a
// check for whether the attached output stream is worth colorizing. None of
// it participates in dispatch; it exists so a host embedding the core (a
// REPL, an inspector session) has somewhere to ask "what does this look
// like right now" without reaching into VM internals itself.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"

	"loxcore/internal/value"
)

// Snapshot is a point-in-time summary of a VM's heap accounting, suitable
// for a status line or a periodic inspector frame.
type Snapshot struct {
	BytesAllocated string
	ObjectCount    int
}

// Summarize walks heap's all-objects list to produce a Snapshot. Counting by
// walking rather than tracking a running counter mirrors how the allocator
// itself has no len field — Objects() is the only enumeration primitive it
// exposes.
func Summarize(heap *value.Allocator) Snapshot {
	count := 0
	for o := heap.Objects(); o != nil; o = o.Next {
		count++
	}
	return Snapshot{
		BytesAllocated: humanize.Bytes(uint64(heap.BytesAllocated())),
		ObjectCount:    count,
	}
}

// Dump renders v using kr/pretty's formatter, the same tool the teacher
// reaches for when a plain %v isn't legible enough for nested structs.
func Dump(v interface{}) string {
	return fmt.Sprintf("%# v", pretty.Formatter(v))
}

// IsInteractive reports whether w is a terminal worth emitting
// color/cursor-control sequences to, used by a host deciding whether to
// decorate diagnostic output.
func IsInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
