// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package firewall seals the persistent key-material regions behind the
// on-chip address-range security controller before control transfers to
// the agent.
package firewall

// Gate is the hardware firewall abstraction. A single data region,
// [start, start+size), is declared secure-read/write, non-executable and
// non-volatile; once Enable is called the configuration latches until the
// next power-on reset.
type Gate interface {
	// ConfigureDataRegion declares [start, start+size) as a non-volatile
	// data segment with no code segment and no volatile segment: any
	// instruction fetch, or any data access from outside the configured
	// code segment, faults once the gate is enabled.
	ConfigureDataRegion(start, size uint32) error
	// Enable latches the current region configuration until the next
	// reset. After Enable returns, ConfigureDataRegion must not be
	// called again.
	Enable() error
	// ViolationOccurred reports whether the last reset was caused by a
	// firewall violation, clearing the underlying status flag as a side
	// effect so a subsequent call reports false until another violation
	// occurs.
	ViolationOccurred() (bool, error)
}
