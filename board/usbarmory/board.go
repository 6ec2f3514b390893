// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package usbarmory wires Barnacle to the USB armory Mk II (i.MX6UL)
// memory map: this is the only package in the tree that names literal
// flash/RAM addresses. Everything else operates on the abstractions they
// define.
package usbarmory

import (
	"crypto/rand"
	"time"

	"github.com/usbarmory/barnacle/boot"
	"github.com/usbarmory/barnacle/firewall"
	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/internal/debug"
	"github.com/usbarmory/barnacle/verify"
)

// TZASCBase is the TZC-380 TrustZone Address Space Controller instance
// wired into the i.MX6UL bus matrix.
const TZASCBase = 0x021d0000

// Flash layout: a 128KiB partition reserved at the top of the board's
// internal QSPI NOR flash for Barnacle's persistent regions, page size
// matching the part's 4KiB erase sector.
const (
	flashBase     = 0x00fe0000
	pageSize      = 4096
	agentHdrSize  = pageSize
	agentCodeSize = pageSize * 16
	issuedSize    = pageSize
	deviceIDSize  = pageSize
	cacheSize     = pageSize
)

// Key-material RAM region the firewall seals after verification. Nothing in
// this tree places data at this address (Verify returns the compound key
// pair in its Result), and the FwDeviceId and FwCache flash regions lie
// outside this range.
const (
	keyMaterialBase = 0x80000000
	keyMaterialSize = 1 << 15 // 32KiB, the TZASC region-size granularity
)

func layout() *flash.Layout {
	base := uint32(flashBase)

	regions := map[flash.Region]flash.Extent{
		flash.AgentHdr:    {Base: base, Size: agentHdrSize},
		flash.AgentCode:   {Base: base + agentHdrSize, Size: agentCodeSize},
		flash.IssuedCerts: {Base: base + agentHdrSize + agentCodeSize, Size: issuedSize},
		flash.FwDeviceID:  {Base: base + agentHdrSize + agentCodeSize + issuedSize, Size: deviceIDSize},
		flash.FwCache:     {Base: base + agentHdrSize + agentCodeSize + issuedSize + deviceIDSize, Size: cacheSize},
	}

	return &flash.Layout{Regions: regions, PageSize: pageSize}
}

// New constructs the board's Boot value. backend supplies the concrete
// erase/program/read Flash driver for the board's NOR flash; off target
// (e.g. in tests) this is typically a flash.MemFlash. gate supplies the
// SecurityGate; on real hardware this is TZASC (see NewTZASC), off target
// a firewall.SoftwareGate.
func New(backend flash.Flash, gate firewall.Gate, log debug.Logger) *boot.Boot {
	l := layout()

	return &boot.Boot{
		Store:          flash.NewStore(backend, l),
		Primitives:     hwcrypto.Software{},
		Gate:           gate,
		RNG:            rand.Reader,
		Log:            log,
		DeviceCN:       "USB armory Mk II",
		ValidityPeriod: 20 * 365 * 24 * time.Hour,
		RollbackPolicy: verify.RollbackReportOnly,
		SealStart:      keyMaterialBase,
		SealSize:       keyMaterialSize,
	}
}

// NewTZASC constructs the board's Boot value wired to the real TZASC
// register block. This is the entry point for on-target builds; it is
// unexercised by the host test suite since the TZASC registers only exist
// on real i.MX6UL silicon.
func NewTZASC(backend flash.Flash, log debug.Logger) *boot.Boot {
	return New(backend, &firewall.TZASC{Base: TZASCBase}, log)
}
