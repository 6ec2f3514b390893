// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package flash implements a partitioned persistent-memory model: a fixed
// set of regions, each with a distinct write-lock and read-protection
// policy, built on top of an erase/program Flash interface supplied by
// the integrator.
package flash

import (
	"fmt"
)

// Magic is the 32-bit tag every provisioned persistent region must carry.
// A region whose tag does not match is unprovisioned.
const Magic uint32 = 0x4241524e // "BARN"

// Region identifies one partition of the layout. The RAM-resident regions
// (CompoundID, CertStore) are named for addressing uniformity only: no
// layout in this tree gives them an extent, and the verify/boot packages
// return the compound key pair and certificate store in their Result
// values rather than writing them to these regions.
type Region int

const (
	AgentHdr Region = iota
	AgentCode
	IssuedCerts
	FwDeviceID
	FwCache
	CompoundID
	CertStore
)

func (r Region) String() string {
	switch r {
	case AgentHdr:
		return "AgentHdr"
	case AgentCode:
		return "AgentCode"
	case IssuedCerts:
		return "IssuedCerts"
	case FwDeviceID:
		return "FwDeviceId"
	case FwCache:
		return "FwCache"
	case CompoundID:
		return "CompoundId"
	case CertStore:
		return "CertStore"
	default:
		return "Region(?)"
	}
}

// Extent is the base address and byte length of a region.
type Extent struct {
	Base uint32
	Size uint32
}

// Layout is the explicit, build-time configuration of the flash/RAM
// address map: the layout is an explicit configuration value rather than
// linker-script constants, so a board package (e.g. board/usbarmory) is
// the only place literal addresses belong.
type Layout struct {
	Regions  map[Region]Extent
	PageSize uint32
}

// Extent returns the configured extent for a region, or an error if the
// layout does not define one.
func (l *Layout) Extent(r Region) (Extent, error) {
	e, ok := l.Regions[r]
	if !ok {
		return Extent{}, fmt.Errorf("flash: region %s not configured in layout", r)
	}
	return e, nil
}

// Pages returns the set of page-aligned [start,start+PageSize) spans that
// fully cover [dest, dest+len). dest and length need not themselves be
// page-aligned: a sub-page region (e.g. FwDeviceID, which shares a page
// with FwCache) is covered by rounding dest down and dest+length up to the
// enclosing page boundaries.
func (l *Layout) Pages(dest, length uint32) ([]Extent, error) {
	if l.PageSize == 0 {
		return nil, fmt.Errorf("flash: page size not configured")
	}

	start := dest - dest%l.PageSize

	end := dest + length
	if rem := end % l.PageSize; rem != 0 {
		end += l.PageSize - rem
	}

	var pages []Extent

	for off := start; off < end; off += l.PageSize {
		pages = append(pages, Extent{Base: off, Size: l.PageSize})
	}

	return pages, nil
}
