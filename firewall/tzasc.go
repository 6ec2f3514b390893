// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package firewall

import (
	"fmt"

	"github.com/usbarmory/barnacle/bits"
	"github.com/usbarmory/barnacle/internal/reg"
)

// TZASC registers (TZC-380 TrustZone Address Space Controller, as wired on
// the i.MX6UL bus matrix). Region 1 is reserved for the private key-material
// segment this package seals.
const (
	tzascConf   = 0x000
	confRegions = 0

	tzascRegionSetupLow1  = 0x110
	tzascRegionSetupHigh1 = 0x114
	tzascRegionAttrs1     = 0x118

	attrsSP   = 28
	attrsSize = 1
	attrsEn   = 0

	sizeMin = 0b001110
	sizeMax = 0b111111

	// Secure read/write, non-secure access denied.
	spSecureRW = 0b1100

	// tzascViolationStatus and its clear bit are not part of the
	// pristine TZC-380 register map; they extend it with the
	// project-local reset-cause latch that ViolationOccurred reads, on
	// the same bus instance as the region registers above.
	tzascViolationStatus = 0x200
	violationBit         = 0
)

// TZASC is a hardware-backed Gate over the TrustZone Address Space
// Controller.
type TZASC struct {
	Base uint32

	configured bool
	enabled    bool
}

func (t *TZASC) regions() int {
	return int(reg.Get(t.Base+tzascConf, confRegions, 0xf)) + 1
}

// ConfigureDataRegion programs TZASC region 1 with secure-only read/write
// access and no execute permission, covering [start, start+size).
func (t *TZASC) ConfigureDataRegion(start, size uint32) error {
	if t.enabled {
		return fmt.Errorf("firewall: gate already enabled")
	}

	if t.regions() < 2 {
		return fmt.Errorf("firewall: controller exposes no region 1")
	}

	if start%(1<<15) != 0 {
		return fmt.Errorf("firewall: start address %#x is not region-aligned", start)
	}

	var shift uint32
	found := false
	for i := uint32(sizeMin); i <= sizeMax; i++ {
		if size == 1<<(i+1) {
			shift = i
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("firewall: size %#x is not a supported power-of-two region size", size)
	}

	var attrs uint32
	bits.SetN(&attrs, attrsSP, 0b1111, spSecureRW)
	bits.SetN(&attrs, attrsSize, 0b111111, shift)

	reg.Write(t.Base+tzascRegionSetupLow1, start&0xffff8000)
	reg.Write(t.Base+tzascRegionSetupHigh1, 0)
	reg.Write(t.Base+tzascRegionAttrs1, attrs)

	t.configured = true

	return nil
}

// Enable latches the region configuration until the next reset.
func (t *TZASC) Enable() error {
	if !t.configured {
		return fmt.Errorf("firewall: no region configured")
	}

	reg.Set(t.Base+tzascRegionAttrs1, attrsEn)
	t.enabled = true

	return nil
}

// ViolationOccurred reads and clears the firewall violation latch.
func (t *TZASC) ViolationOccurred() (bool, error) {
	violated := reg.IsSet(t.Base+tzascViolationStatus, violationBit)
	reg.Clear(t.Base+tzascViolationStatus, violationBit)

	return violated, nil
}

var _ Gate = (*TZASC)(nil)
