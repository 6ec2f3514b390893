// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package firewall

import "testing"

func TestSoftwareGateBlocksAfterEnable(t *testing.T) {
	g := &SoftwareGate{}

	if blocked := g.Access(0x1000); blocked {
		t.Fatal("access should not be blocked before any region is configured")
	}

	if err := g.ConfigureDataRegion(0x1000, 0x100); err != nil {
		t.Fatal(err)
	}

	if blocked := g.Access(0x1050); blocked {
		t.Fatal("access should not be blocked before Enable")
	}

	if err := g.Enable(); err != nil {
		t.Fatal(err)
	}

	if blocked := g.Access(0x1050); !blocked {
		t.Fatal("expected access within the declared region to be blocked after Enable")
	}

	if blocked := g.Access(0x2000); blocked {
		t.Fatal("access outside the declared region must not be blocked")
	}
}

func TestSoftwareGateConfigureAfterEnableFails(t *testing.T) {
	g := &SoftwareGate{}

	if err := g.ConfigureDataRegion(0x1000, 0x100); err != nil {
		t.Fatal(err)
	}
	if err := g.Enable(); err != nil {
		t.Fatal(err)
	}

	if err := g.ConfigureDataRegion(0x2000, 0x100); err == nil {
		t.Fatal("expected an error reconfiguring an enabled gate")
	}
}

func TestSoftwareGateEnableWithoutConfigureFails(t *testing.T) {
	g := &SoftwareGate{}

	if err := g.Enable(); err == nil {
		t.Fatal("expected an error enabling a gate with no configured region")
	}
}

func TestSoftwareGateViolationOccurredClearsOnRead(t *testing.T) {
	g := &SoftwareGate{Violation: true}

	v, err := g.ViolationOccurred()
	if err != nil {
		t.Fatal(err)
	}
	if !v {
		t.Fatal("expected the seeded violation to be reported")
	}

	v, err = g.ViolationOccurred()
	if err != nil {
		t.Fatal(err)
	}
	if v {
		t.Fatal("expected the violation latch to have been cleared by the first read")
	}
}
