// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package flash

import "fmt"

// MemFlash is a software Flash double backed by a byte slice, blank-state
// 0xff (NOR convention). It exists so the state machine packages
// (identity, verify, boot) can be exercised without real silicon, the same
// role TamaGo's software-only packages play relative to its hardware
// drivers.
type MemFlash struct {
	mem       []byte
	base      uint32
	pageSize  uint32
	erased    map[uint32]bool
	Programs  int
	Erases    int
}

// NewMemFlash allocates a blank MemFlash spanning [base, base+size).
func NewMemFlash(base, size, pageSize uint32) *MemFlash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xff
	}

	return &MemFlash{
		mem:      mem,
		base:     base,
		pageSize: pageSize,
		erased:   map[uint32]bool{},
	}
}

func (m *MemFlash) off(addr uint32) (int, error) {
	if addr < m.base || addr >= m.base+uint32(len(m.mem)) {
		return 0, fmt.Errorf("memflash: address %#x out of range", addr)
	}
	return int(addr - m.base), nil
}

func (m *MemFlash) Erase(addr, size uint32) error {
	if size%m.pageSize != 0 || addr%m.pageSize != 0 {
		return fmt.Errorf("memflash: erase alignment violation")
	}

	off, err := m.off(addr)
	if err != nil {
		return err
	}

	for i := off; i < off+int(size); i++ {
		m.mem[i] = 0xff
	}

	m.erased[addr] = true
	m.Erases++

	return nil
}

func (m *MemFlash) Program(addr uint32, data []byte) error {
	off, err := m.off(addr)
	if err != nil {
		return err
	}

	if off+len(data) > len(m.mem) {
		return fmt.Errorf("memflash: program out of range")
	}

	for i, b := range data {
		// Programming can only clear bits (0xff -> any value); a
		// destination byte that is not blank and differs signals a
		// missing erase, matching real NOR semantics.
		if m.mem[off+i] != 0xff && m.mem[off+i] != b {
			return fmt.Errorf("memflash: program without erase at %#x", addr+uint32(i))
		}
		m.mem[off+i] = b
	}

	m.Programs++

	return nil
}

func (m *MemFlash) Read(addr, size uint32) ([]byte, error) {
	off, err := m.off(addr)
	if err != nil {
		return nil, err
	}

	if off+int(size) > len(m.mem) {
		return nil, fmt.Errorf("memflash: read out of range")
	}

	out := make([]byte, size)
	copy(out, m.mem[off:off+int(size)])

	return out, nil
}
