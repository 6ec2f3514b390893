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
	"bytes"
	"testing"
)

func testLayout() *Layout {
	return &Layout{
		PageSize: 4096,
		Regions: map[Region]Extent{
			AgentHdr:    {Base: 0x0000, Size: 4096},
			AgentCode:   {Base: 0x1000, Size: 4096 * 4},
			IssuedCerts: {Base: 0x6000, Size: 4096},
			FwDeviceID:  {Base: 0x7000, Size: 2048},
			FwCache:     {Base: 0x7800, Size: 2048},
		},
	}
}

func newTestStore() (*Store, *MemFlash) {
	l := testLayout()
	mem := NewMemFlash(0, 0x8000, l.PageSize)
	return NewStore(mem, l), mem
}

func TestWriteRegionEraseThenProgram(t *testing.T) {
	s, mem := newTestStore()

	data := bytes.Repeat([]byte{0xAB}, 100)
	if err := s.WriteRegion(FwDeviceID, data); err != nil {
		t.Fatal(err)
	}

	if mem.Erases == 0 || mem.Programs == 0 {
		t.Fatalf("expected erase and program, got erases=%d programs=%d", mem.Erases, mem.Programs)
	}

	got, err := s.ReadRegion(FwDeviceID)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got[:len(data)], data) {
		t.Fatalf("region contents mismatch")
	}

	rest := got[len(data):]
	for _, b := range rest {
		if b != 0x00 {
			t.Fatalf("expected zero padding beyond written data")
		}
	}
}

func TestWriteRegionTooLarge(t *testing.T) {
	s, _ := newTestStore()

	if err := s.WriteRegion(FwDeviceID, make([]byte, 4096)); err == nil {
		t.Fatal("expected error for oversized write")
	}
}

func TestIsBlankBeforeAndAfterWrite(t *testing.T) {
	s, _ := newTestStore()

	blank, err := s.IsBlank(FwDeviceID, 0, 64)
	if err != nil {
		t.Fatal(err)
	}
	if !blank {
		t.Fatal("expected fresh region to be blank")
	}

	if err := s.WriteRegion(FwDeviceID, []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatal(err)
	}

	blank, err = s.IsBlank(FwDeviceID, 0, 64)
	if err != nil {
		t.Fatal(err)
	}
	if blank {
		t.Fatal("expected written region to not be blank")
	}
}

func TestReadMagicUnprovisioned(t *testing.T) {
	s, _ := newTestStore()

	_, ok, err := s.ReadMagic(FwDeviceID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("fresh region should not report the magic as present")
	}
}

func TestDFUDescriptorReflectsWriteLock(t *testing.T) {
	s, _ := newTestStore()

	unlocked, err := s.DFUDescriptor(false)
	if err != nil {
		t.Fatal(err)
	}
	if unlocked[len(unlocked)-1] != 'g' {
		t.Fatalf("expected generic mode, got %q", unlocked)
	}

	locked, err := s.DFUDescriptor(true)
	if err != nil {
		t.Fatal(err)
	}
	if locked[len(locked)-1] != 'a' {
		t.Fatalf("expected ack-only mode, got %q", locked)
	}
}

func TestCertTableCapacityCheck(t *testing.T) {
	ct := NewCertTable(16)

	if err := ct.Put(SlotRoot, bytes.Repeat([]byte{0x41}, 10)); err != nil {
		t.Fatal(err)
	}

	if err := ct.Put(SlotDevice, bytes.Repeat([]byte{0x42}, 10)); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestCertTableConcatOrderSkipsEmpty(t *testing.T) {
	ct := NewCertTable(64)

	if err := ct.Put(SlotDevice, []byte("device")); err != nil {
		t.Fatal(err)
	}
	if err := ct.Put(SlotLoader, []byte("loader")); err != nil {
		t.Fatal(err)
	}

	got := ct.Concat()
	want := append(append([]byte("device\x00"), []byte("loader\x00")...))

	if !bytes.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDeviceIDRecordRoundTrip(t *testing.T) {
	rec := &DeviceIDRecord{Magic: Magic, PubKey: []byte{1, 2, 3}, PrivKey: []byte{4, 5, 6, 7}}

	got, err := ParseDeviceIDRecord(rec.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	if got.Magic != rec.Magic || !bytes.Equal(got.PubKey, rec.PubKey) || !bytes.Equal(got.PrivKey, rec.PrivKey) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestIssuedCertsRecordRoundTrip(t *testing.T) {
	ct := NewCertTable(64)
	if err := ct.Put(SlotDevice, []byte("cert")); err != nil {
		t.Fatal(err)
	}

	rec := &IssuedCertsRecord{
		Magic:      Magic,
		Flags:      FlagProvisioned | FlagWriteLock,
		AuthPubKey: []byte{9, 9},
		Certs:      ct,
	}

	got, err := ParseIssuedCertsRecord(rec.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	if got.Flags != rec.Flags {
		t.Fatalf("flags mismatch: %#x != %#x", got.Flags, rec.Flags)
	}
	if !bytes.Equal(got.Certs.Get(SlotDevice), ct.Get(SlotDevice)) {
		t.Fatalf("cert table mismatch")
	}
}
