// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package debug provides the boot loader's debug-print channel. The
// physical transport (UART console, DFU string descriptor, or a polled
// in-memory buffer) is supplied by the integrator; this package only
// defines the narrow interface the rest of the tree writes through.
package debug

import (
	"fmt"
	"io"
)

// Logger is the debug-print channel consumed by every other package in this
// module. Its scope is deliberately small: formatted status lines and
// policy-event reports (e.g. a detected rollback), never control flow.
type Logger interface {
	// Printf writes a formatted status line.
	Printf(format string, args ...interface{})
	// Report records a policy event that is surfaced but does not abort
	// the boot.
	Report(format string, args ...interface{})
}

// Console is a Logger that writes to an io.Writer, matching the console
// output style of the board's UART in normal operation.
type Console struct {
	Out io.Writer
}

func (c *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Console) Report(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, "barnacle: "+format, args...)
}

// Discard is a Logger that drops all output, used where no debug channel is
// wired (e.g. unit tests asserting on return values only).
var Discard Logger = discard{}

type discard struct{}

func (discard) Printf(string, ...interface{}) {}
func (discard) Report(string, ...interface{}) {}

// Recorder is a Logger that appends every call to an in-memory slice,
// letting tests assert that a particular event (e.g. rollback) was
// reported without depending on exact formatting.
type Recorder struct {
	Lines []string
}

func (r *Recorder) Printf(format string, args ...interface{}) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

func (r *Recorder) Report(format string, args ...interface{}) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}
