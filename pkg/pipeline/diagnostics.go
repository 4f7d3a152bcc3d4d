package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Diagnostics is the shared outcome channel between collaborators and the
// executor. Any collaborator may record a warning while its step runs; after
// each step the executor inspects and unconditionally resets the flag so a
// warning cannot leak into the classification of a later step.
//
// The flag is sticky and run-wide: it records that *some* warning occurred
// during the step's call window, not which code path raised it.
type Diagnostics struct {
	warned atomic.Bool
	out    io.Writer
}

// NewDiagnostics creates a diagnostics context writing warning lines to out
// (os.Stderr when nil).
func NewDiagnostics(out io.Writer) *Diagnostics {
	if out == nil {
		out = os.Stderr
	}
	return &Diagnostics{out: out}
}

// Warnf prints a warning line and marks the sticky flag.
func (d *Diagnostics) Warnf(format string, args ...any) {
	fmt.Fprintf(d.out, "  [WARNING] "+format+"\n", args...)
	d.warned.Store(true)
}

// HasWarnings reports whether any warning was recorded since the last Reset.
func (d *Diagnostics) HasWarnings() bool {
	return d.warned.Load()
}

// Reset clears the sticky flag.
func (d *Diagnostics) Reset() {
	d.warned.Store(false)
}
