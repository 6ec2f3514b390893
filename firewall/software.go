// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package firewall

import "fmt"

// SoftwareGate is an in-memory Gate used off target and in tests: it
// tracks the declared region and enabled state instead of programming
// hardware, and lets a test pre-seed a violation for ViolationOccurred to
// report.
type SoftwareGate struct {
	Start, Size uint32
	Configured  bool
	Enabled     bool

	// Violation is set by a test to simulate a prior firewall reset;
	// ViolationOccurred clears it on read, matching the hardware latch
	// semantics.
	Violation bool

	// Accesses records every address passed to Access, before or after
	// Enable and whether or not it falls within the declared region.
	Accesses []uint32
}

func (g *SoftwareGate) ConfigureDataRegion(start, size uint32) error {
	if g.Enabled {
		return fmt.Errorf("firewall: gate already enabled")
	}

	g.Start, g.Size = start, size
	g.Configured = true

	return nil
}

func (g *SoftwareGate) Enable() error {
	if !g.Configured {
		return fmt.Errorf("firewall: no region configured")
	}

	g.Enabled = true

	return nil
}

func (g *SoftwareGate) ViolationOccurred() (bool, error) {
	v := g.Violation
	g.Violation = false

	return v, nil
}

// Access records an attempted access to addr and reports whether it would
// fault: true if the gate is enabled and addr falls within the declared
// region.
func (g *SoftwareGate) Access(addr uint32) (blocked bool) {
	g.Accesses = append(g.Accesses, addr)

	return g.Enabled && addr >= g.Start && addr < g.Start+g.Size
}

var _ Gate = (*SoftwareGate)(nil)
