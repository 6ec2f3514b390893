// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package flash

import (
	"fmt"
)

// Flash is the hardware abstraction Store is built on. Only
// erase/program/read are required; the physical backend (on-chip NOR, OTP
// fuse array, eMMC boot partition) lives below this interface.
type Flash interface {
	// Erase erases a single page-aligned extent, leaving it in the
	// backend's blank state (conventionally all-ones).
	Erase(addr, size uint32) error
	// Program writes data starting at addr. The destination must have
	// been erased first; Program never erases on its own.
	Program(addr uint32, data []byte) error
	// Read returns size bytes starting at addr.
	Read(addr, size uint32) ([]byte, error)
}

// Store implements the persistent boot state store over a Flash backend
// and an explicit Layout.
type Store struct {
	Flash  Flash
	Layout *Layout
}

// NewStore constructs a Store bound to backend over layout.
func NewStore(backend Flash, layout *Layout) *Store {
	return &Store{Flash: backend, Layout: layout}
}

// WriteRegion erases the pages fully covering region and programs data into
// it. A region is never updated in place: every write goes through a full
// erase of its covering pages before programming.
//
// A sub-page region (e.g. FwDeviceID) can share a covering page with a
// neighboring region (e.g. FwCache): erasing that page would otherwise
// blank the neighbor's bytes too, so each covering page is read back before
// erase and the bytes outside [ext.Base, ext.Base+ext.Size) are restored
// after it, leaving the neighbor's data untouched.
//
// Atomicity is page-granular: a crash between Erase and Program leaves the
// touched page blank, never partially programmed, because Program is only
// ever called after Erase has completed for that page.
func (s *Store) WriteRegion(r Region, data []byte) error {
	ext, err := s.Layout.Extent(r)
	if err != nil {
		return err
	}

	if uint32(len(data)) > ext.Size {
		return fmt.Errorf("flash: %s: data (%d bytes) exceeds region size (%d bytes)", r, len(data), ext.Size)
	}

	pages, err := s.Layout.Pages(ext.Base, ext.Size)
	if err != nil {
		return fmt.Errorf("flash: %s: %w", r, err)
	}

	padded := make([]byte, ext.Size)
	copy(padded, data)

	for _, p := range pages {
		page, err := s.Flash.Read(p.Base, p.Size)
		if err != nil {
			return fmt.Errorf("flash: %s: read %#x: %w", r, p.Base, err)
		}

		overlay(page, p.Base, ext.Base, padded)

		if err := s.Flash.Erase(p.Base, p.Size); err != nil {
			return fmt.Errorf("flash: %s: erase %#x: %w", r, p.Base, err)
		}

		if err := s.Flash.Program(p.Base, page); err != nil {
			return fmt.Errorf("flash: %s: program %#x: %w", r, p.Base, err)
		}
	}

	return nil
}

// overlay writes src (anchored at srcBase) into dst (anchored at dstBase),
// clipped to dst's bounds, leaving bytes of dst outside src's range
// untouched.
func overlay(dst []byte, dstBase, srcBase uint32, src []byte) {
	lo, hi := srcBase, srcBase+uint32(len(src))

	if lo < dstBase {
		lo = dstBase
	}
	if dstEnd := dstBase + uint32(len(dst)); hi > dstEnd {
		hi = dstEnd
	}
	if lo >= hi {
		return
	}

	copy(dst[lo-dstBase:hi-dstBase], src[lo-srcBase:hi-srcBase])
}

// ReadRegion returns the full contents of region.
func (s *Store) ReadRegion(r Region) ([]byte, error) {
	ext, err := s.Layout.Extent(r)
	if err != nil {
		return nil, err
	}

	return s.Flash.Read(ext.Base, ext.Size)
}

// IsBlank reports whether the given extent of region is entirely in the
// backend's blank state, used to decide whether optional slots (e.g. the
// author-verification public key in IssuedCerts) are populated.
func (s *Store) IsBlank(r Region, offset, length uint32) (bool, error) {
	ext, err := s.Layout.Extent(r)
	if err != nil {
		return false, err
	}

	if offset+length > ext.Size {
		return false, fmt.Errorf("flash: %s: range [%d,%d) out of bounds", r, offset, offset+length)
	}

	data, err := s.Flash.Read(ext.Base+offset, length)
	if err != nil {
		return false, err
	}

	return allOnes(data), nil
}

func allOnes(data []byte) bool {
	for _, b := range data {
		if b != 0xff {
			return false
		}
	}
	return true
}

// ReadMagic reads the leading 32-bit magic tag of a region and reports
// whether it matches Magic.
func (s *Store) ReadMagic(r Region) (uint32, bool, error) {
	data, err := s.Flash.Read(mustExtent(s, r).Base, 4)
	if err != nil {
		return 0, false, err
	}

	m := le32(data)
	return m, m == Magic, nil
}

func mustExtent(s *Store, r Region) Extent {
	e, _ := s.Layout.Extent(r)
	return e
}

func le32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
