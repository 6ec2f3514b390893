// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package identity

import (
	"bytes"
	"testing"
	"time"

	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/internal/debug"
)

func testLayout() *flash.Layout {
	return &flash.Layout{
		PageSize: 4096,
		Regions: map[flash.Region]flash.Extent{
			flash.IssuedCerts: {Base: 0x0000, Size: 4096},
			flash.FwDeviceID:  {Base: 0x1000, Size: 2048},
		},
	}
}

func newTestStore() *flash.Store {
	l := testLayout()
	mem := flash.NewMemFlash(0, 0x2000, l.PageSize)
	return flash.NewStore(mem, l)
}

func newProvisioner(s *flash.Store) *Provisioner {
	return &Provisioner{
		Store:          s,
		Primitives:     hwcrypto.Software{},
		RNG:            bytes.NewReader(bytes.Repeat([]byte{0x11}, 64)),
		Log:            debug.Discard,
		DeviceCN:       "Barnacle Test Device",
		ValidityPeriod: 10 * 365 * 24 * time.Hour,
	}
}

func TestRunProvisionsOnFirstBoot(t *testing.T) {
	s := newTestStore()
	p := newProvisioner(s)

	provisioned, err := p.Provisioned()
	if err != nil {
		t.Fatal(err)
	}
	if provisioned {
		t.Fatal("expected a fresh store to report unprovisioned")
	}

	if err := p.Run(time.Now()); err != nil {
		t.Fatal(err)
	}

	provisioned, err = p.Provisioned()
	if err != nil {
		t.Fatal(err)
	}
	if !provisioned {
		t.Fatal("expected Run to provision FwDeviceId")
	}

	_, issuedOK, err := s.ReadMagic(flash.IssuedCerts)
	if err != nil {
		t.Fatal(err)
	}
	if !issuedOK {
		t.Fatal("expected Run to also provision IssuedCerts")
	}
}

func TestRunIsNoOpOnSecondBoot(t *testing.T) {
	s := newTestStore()
	p := newProvisioner(s)

	if err := p.Run(time.Now()); err != nil {
		t.Fatal(err)
	}

	before, err := s.ReadRegion(flash.FwDeviceID)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Run(time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	after, err := s.ReadRegion(flash.FwDeviceID)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(before, after) {
		t.Fatal("expected a second Run to leave FwDeviceId untouched")
	}
}

func TestRunLeavesIssuedCertsAloneIfAlreadyProvisioned(t *testing.T) {
	s := newTestStore()

	ct := flash.NewCertTable(2048)
	if err := ct.Put(flash.SlotDevice, []byte("preexisting")); err != nil {
		t.Fatal(err)
	}
	rec := &flash.IssuedCertsRecord{Magic: flash.Magic, Flags: flash.FlagProvisioned, Certs: ct}
	if err := s.WriteRegion(flash.IssuedCerts, rec.Bytes()); err != nil {
		t.Fatal(err)
	}

	p := newProvisioner(s)
	if err := p.Run(time.Now()); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadRegion(flash.IssuedCerts)
	if err != nil {
		t.Fatal(err)
	}
	gotRec, err := flash.ParseIssuedCertsRecord(got)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(gotRec.Certs.Get(flash.SlotDevice), ct.Get(flash.SlotDevice)) {
		t.Fatal("expected the pre-existing IssuedCerts record to be left untouched")
	}
}

func TestSerialNumberIsNonzeroAndMSBClear(t *testing.T) {
	prim := hwcrypto.Software{}

	key, err := prim.DeriveECCKey([]byte("seed"), "Identity")
	if err != nil {
		t.Fatal(err)
	}
	pub := prim.ExportECCPub(&key.PublicKey)

	for i := 0; i < 16; i++ {
		serial, err := SerialNumber(prim, append(pub, byte(i)))
		if err != nil {
			t.Fatal(err)
		}

		if serial[0]&0x80 != 0 {
			t.Fatalf("iteration %d: serial MSB is set: %x", i, serial)
		}

		allZero := true
		for _, b := range serial {
			if b != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			t.Fatalf("iteration %d: serial is all-zero", i)
		}
	}
}

func TestIssuedCertsFlagsReflectAuthenticatedBoot(t *testing.T) {
	s := newTestStore()
	p := newProvisioner(s)
	p.AuthenticatedBoot = true
	p.AuthPubKey = []byte{0x04, 0x01, 0x02}

	if err := p.Run(time.Now()); err != nil {
		t.Fatal(err)
	}

	data, err := s.ReadRegion(flash.IssuedCerts)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := flash.ParseIssuedCertsRecord(data)
	if err != nil {
		t.Fatal(err)
	}

	if rec.Flags&flash.FlagAuthenticatedBoot == 0 {
		t.Fatal("expected FlagAuthenticatedBoot to be set")
	}
	if !bytes.Equal(rec.AuthPubKey, p.AuthPubKey) {
		t.Fatal("expected the author public key to be stored")
	}
}
