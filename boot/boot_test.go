// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package boot

import (
	"bytes"
	"testing"
	"time"

	"github.com/usbarmory/barnacle/firewall"
	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/internal/debug"
)

func testLayout() *flash.Layout {
	return &flash.Layout{
		PageSize: 4096,
		Regions: map[flash.Region]flash.Extent{
			flash.AgentHdr:    {Base: 0x0000, Size: 4096},
			flash.AgentCode:   {Base: 0x1000, Size: 4096 * 4},
			flash.IssuedCerts: {Base: 0x6000, Size: 4096},
			flash.FwDeviceID:  {Base: 0x7000, Size: 2048},
			flash.FwCache:     {Base: 0x7800, Size: 2048},
		},
	}
}

func writeAgent(t *testing.T, s *flash.Store, prim hwcrypto.Primitives, code []byte) {
	t.Helper()

	if err := s.WriteRegion(flash.AgentCode, code); err != nil {
		t.Fatal(err)
	}

	digest := prim.Hash(code)
	hdr := &flash.AgentHeader{
		Magic:   flash.Magic,
		Version: flash.HeaderVersion,
		Size:    4096,
		Agent:   flash.AgentInfo{Version: 1, Issued: 1, Size: uint32(len(code)), Digest: digest},
	}
	copy(hdr.Agent.Name[:], "board-test-agent")

	if err := s.WriteRegion(flash.AgentHdr, hdr.Bytes(hwcrypto.CoordSize())); err != nil {
		t.Fatal(err)
	}
}

func TestBootRunFirstBootProvisionsAndVerifies(t *testing.T) {
	l := testLayout()
	mem := flash.NewMemFlash(0, 0x8000, l.PageSize)
	store := flash.NewStore(mem, l)
	prim := hwcrypto.Software{}

	code := bytes.Repeat([]byte{0x90}, 256)
	writeAgent(t, store, prim, code)

	gate := &firewall.SoftwareGate{}

	b := &Boot{
		Store:          store,
		Primitives:     prim,
		Gate:           gate,
		RNG:            bytes.NewReader(bytes.Repeat([]byte{0x37}, 64)),
		Log:            debug.Discard,
		DeviceCN:       "Barnacle Board Test",
		ValidityPeriod: 365 * 24 * time.Hour,
		SealStart:      0x7000,
		SealSize:       0x1000,
	}

	res, err := b.Run(time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.CertStore) == 0 {
		t.Fatal("expected a non-empty cert store")
	}

	if !gate.Enabled {
		t.Fatal("expected the firewall gate to be enabled after Run")
	}

	if b.deviceKey != nil {
		t.Fatal("expected the device key reference to be cleared after Run")
	}

	if blocked := gate.Access(0x7500); !blocked {
		t.Fatal("expected the sealed region to report a blocked access")
	}
}

func TestBootRunSecondBootSkipsProvisioning(t *testing.T) {
	l := testLayout()
	mem := flash.NewMemFlash(0, 0x8000, l.PageSize)
	store := flash.NewStore(mem, l)
	prim := hwcrypto.Software{}

	code := bytes.Repeat([]byte{0x90}, 256)
	writeAgent(t, store, prim, code)

	newBoot := func() *Boot {
		return &Boot{
			Store:          store,
			Primitives:     prim,
			Gate:           &firewall.SoftwareGate{},
			RNG:            bytes.NewReader(bytes.Repeat([]byte{0x37}, 64)),
			Log:            debug.Discard,
			DeviceCN:       "Barnacle Board Test",
			ValidityPeriod: 365 * 24 * time.Hour,
		}
	}

	first, err := newBoot().Run(time.Now())
	if err != nil {
		t.Fatal(err)
	}

	erases := mem.Erases

	second, err := newBoot().Run(time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if mem.Erases != erases {
		t.Fatalf("expected no flash writes on the second boot, got %d new erases", mem.Erases-erases)
	}

	if !bytes.Equal(first.CertStore, second.CertStore) {
		t.Fatal("expected the same certificate store across boots with an unchanged agent")
	}
}
