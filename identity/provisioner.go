// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package identity implements the one-time, first-boot generation of the
// device key pair and its self-signed device certificate.
package identity

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"time"

	"github.com/usbarmory/barnacle/der"
	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/internal/debug"
	"github.com/usbarmory/barnacle/x509build"
)

// CDILen is the number of hardware-RNG bytes drawn to seed the device
// key derivation.
const CDILen = flash.DigestLen

// CertCapacity is the byte capacity reserved for the IssuedCerts PEM byte
// bag.
const CertCapacity = 2048

// Provisioner implements the first-boot identity provisioning logic.
type Provisioner struct {
	Store      *flash.Store
	Primitives hwcrypto.Primitives
	// RNG is the hardware random number generator.
	RNG io.Reader
	Log debug.Logger

	// DeviceCN is the subject/issuer common name of the self-signed
	// device certificate.
	DeviceCN string
	// ValidityPeriod is how long the device certificate remains valid.
	ValidityPeriod time.Duration

	// AuthenticatedBoot and AuthPubKey configure whether AgentVerifier
	// is later expected to check an author signature. A nil/empty
	// AuthPubKey leaves the slot blank.
	AuthenticatedBoot bool
	AuthPubKey        []byte
}

// Provisioned reports whether FwDeviceId already carries the Barnacle
// magic tag — i.e. whether Run would be a no-op.
func (p *Provisioner) Provisioned() (bool, error) {
	_, ok, err := p.Store.ReadMagic(flash.FwDeviceID)
	return ok, err
}

// Run performs first-boot provisioning. It is a no-op if FwDeviceId is
// already provisioned. A partial failure leaves regions in their previous
// (erased or unprovisioned) state, since WriteRegion's erase-program
// atomicity never leaves a region partially programmed.
func (p *Provisioner) Run(now time.Time) error {
	provisioned, err := p.Provisioned()
	if err != nil {
		return err
	}
	if provisioned {
		return nil
	}

	cdi := make([]byte, CDILen)
	if _, err := io.ReadFull(p.RNG, cdi); err != nil {
		return fmt.Errorf("identity: rng: %w", err)
	}
	defer zero(cdi)

	deviceKey, err := p.Primitives.DeriveECCKey(cdi, "Identity")
	if err != nil {
		return fmt.Errorf("identity: derive device key: %w", err)
	}

	pub := p.Primitives.ExportECCPub(&deviceKey.PublicKey)
	priv := deviceKey.D.Bytes()
	defer zero(priv)

	rec := &flash.DeviceIDRecord{Magic: flash.Magic, PubKey: pub, PrivKey: priv}
	if err := p.Store.WriteRegion(flash.FwDeviceID, rec.Bytes()); err != nil {
		return fmt.Errorf("identity: write device id: %w", err)
	}

	p.Log.Printf("identity: device key provisioned\n")

	issuedMagic, issuedOK, err := p.Store.ReadMagic(flash.IssuedCerts)
	if err != nil {
		return fmt.Errorf("identity: read issued certs: %w", err)
	}
	_ = issuedMagic

	if issuedOK {
		return nil
	}

	return p.issueDeviceCert(deviceKey, now)
}

func (p *Provisioner) issueDeviceCert(deviceKey *ecdsa.PrivateKey, now time.Time) error {
	serial, err := SerialNumber(p.Primitives, p.Primitives.ExportECCPub(&deviceKey.PublicKey))
	if err != nil {
		return err
	}

	notAfter := now.Add(p.ValidityPeriod)

	tbs, err := x509build.DeviceTBS(&deviceKey.PublicKey, nil, serial, p.DeviceCN, "", now, notAfter)
	if err != nil {
		return fmt.Errorf("identity: build device tbs: %w", err)
	}

	r, s, err := x509build.Sign(p.Primitives, tbs, deviceKey)
	if err != nil {
		return fmt.Errorf("identity: sign device cert: %w", err)
	}

	certDER, err := x509build.MakeDeviceCert(tbs, r, s)
	if err != nil {
		return fmt.Errorf("identity: finalize device cert: %w", err)
	}

	ct := flash.NewCertTable(CertCapacity)
	if err := ct.Put(flash.SlotDevice, der.ToPEM(der.LabelCertificate, certDER)); err != nil {
		return fmt.Errorf("identity: store device cert: %w", err)
	}

	flags := flash.FlagProvisioned
	if p.AuthenticatedBoot {
		flags |= flash.FlagAuthenticatedBoot
	}

	rec := &flash.IssuedCertsRecord{
		Magic:      flash.Magic,
		Flags:      flags,
		AuthPubKey: p.AuthPubKey,
		Certs:      ct,
	}

	if err := p.Store.WriteRegion(flash.IssuedCerts, rec.Bytes()); err != nil {
		return fmt.Errorf("identity: write issued certs: %w", err)
	}

	p.Log.Printf("identity: device certificate issued, serial=%x\n", serial)

	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
