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

// Certificate slot indices.
const (
	SlotRoot = iota
	SlotDevice
	SlotLoader
	NumSlots
)

// CertEntry is a {start,size} index entry pointing into a CertTable's byte
// bag. A zero Size represents an unpopulated slot.
type CertEntry struct {
	Start uint32
	Size  uint32
}

// CertTable is the small fixed-size certificate index plus contiguous PEM
// byte bag, used both for the persistent IssuedCerts region and the
// RAM-resident CertStore.
type CertTable struct {
	Slots  [NumSlots]CertEntry
	Cursor uint32
	Bytes  []byte
}

// NewCertTable allocates an empty table with capacity bytes of backing
// storage.
func NewCertTable(capacity uint32) *CertTable {
	return &CertTable{Bytes: make([]byte, capacity)}
}

// Put writes pem into slot, appending it to the byte bag and recording its
// extent. It enforces a capacity check before the append — overflow aborts
// the write rather than growing the backing array — and appends a single
// NUL terminator after every certificate so PEM consumers expecting a
// C-string tail are satisfied.
func (t *CertTable) Put(slot int, pem []byte) error {
	if slot < 0 || slot >= NumSlots {
		return fmt.Errorf("flash: cert slot %d out of range", slot)
	}

	needed := uint32(len(pem)) + 1
	if t.Cursor+needed > uint32(len(t.Bytes)) {
		return fmt.Errorf("flash: cert table overflow (need %d, have %d free)", needed, uint32(len(t.Bytes))-t.Cursor)
	}

	start := t.Cursor
	copy(t.Bytes[start:], pem)
	t.Bytes[start+uint32(len(pem))] = 0x00
	t.Cursor += needed

	t.Slots[slot] = CertEntry{Start: start, Size: needed}

	return nil
}

// Get returns the raw bytes (including NUL terminator) for slot, or nil if
// the slot is empty.
func (t *CertTable) Get(slot int) []byte {
	if slot < 0 || slot >= NumSlots {
		return nil
	}

	e := t.Slots[slot]
	if e.Size == 0 {
		return nil
	}

	return t.Bytes[e.Start : e.Start+e.Size]
}

// Populated reports whether slot holds a certificate.
func (t *CertTable) Populated(slot int) bool {
	return slot >= 0 && slot < NumSlots && t.Slots[slot].Size > 0
}

// Concat returns the table's root+device+loader chain, in that fixed
// order, skipping empty slots.
func (t *CertTable) Concat() []byte {
	var out []byte

	for _, slot := range []int{SlotRoot, SlotDevice, SlotLoader} {
		if b := t.Get(slot); b != nil {
			out = append(out, b...)
		}
	}

	return out
}
