// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package boot wires PersistentStore, CryptoPrimitives, IdentityProvisioner,
// AgentVerifier and SecurityGate into the single boot sequence a board
// package runs at power-on: provision the device identity on first boot,
// measure and verify the resident agent, assemble its certificate store,
// then lock the key-material region down before handoff.
package boot

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/usbarmory/barnacle/firewall"
	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/identity"
	"github.com/usbarmory/barnacle/internal/debug"
	"github.com/usbarmory/barnacle/verify"
)

// Boot is the top-level, single-instance boot object. A board package
// constructs one value of this type with its concrete Flash, Gate and RNG,
// and calls Run once at power-on.
type Boot struct {
	Store      *flash.Store
	Primitives hwcrypto.Primitives
	Gate       firewall.Gate
	RNG        io.Reader
	Log        debug.Logger

	DeviceCN          string
	ValidityPeriod    time.Duration
	AuthenticatedBoot bool
	AuthPubKey        []byte
	RollbackPolicy    verify.RollbackPolicy

	// SealStart and SealSize declare the address range the firewall
	// locks down after verification completes; typically the RAM region
	// backing the device private key and compound key material. A zero
	// SealSize skips the seal step.
	SealStart, SealSize uint32

	deviceKey *ecdsa.PrivateKey
}

// Result is the outcome of a successful Run: the per-boot compound key and
// the assembled certificate chain handed to the agent.
type Result struct {
	CompoundPub  []byte
	CompoundPriv []byte
	CertStore    []byte
}

func (b *Boot) logger() debug.Logger {
	if b.Log != nil {
		return b.Log
	}
	return debug.Discard
}

// Run executes the full boot sequence: provision (first boot only), verify
// the resident agent, assemble its certificate store, and seal the
// firewall. It returns the first error encountered and always scrubs the
// transient device key copy before returning, successful or not.
func (b *Boot) Run(now time.Time) (res *Result, err error) {
	log := b.logger()

	defer b.zeroize()

	if violated, verr := b.Gate.ViolationOccurred(); verr == nil && violated {
		log.Report("firewall violation recorded on prior reset\n")
	}

	if err := b.provision(now); err != nil {
		return nil, fmt.Errorf("boot: provision: %w", err)
	}

	v := &verify.AgentVerifier{
		Store:          b.Store,
		Primitives:     b.Primitives,
		Log:            log,
		DeviceKey:      b.deviceKey,
		DeviceCN:       b.DeviceCN,
		ValidityPeriod: b.ValidityPeriod,
		RollbackPolicy: b.RollbackPolicy,
	}

	vr, err := v.Verify(now)
	if err != nil {
		return nil, fmt.Errorf("boot: verify: %w", err)
	}

	if err := b.seal(); err != nil {
		return nil, fmt.Errorf("boot: seal: %w", err)
	}

	log.Printf("boot: sequence complete\n")

	return &Result{CompoundPub: vr.CompoundPub, CompoundPriv: vr.CompoundPriv, CertStore: vr.CertStore}, nil
}

func (b *Boot) provision(now time.Time) error {
	p := &identity.Provisioner{
		Store:             b.Store,
		Primitives:        b.Primitives,
		RNG:               b.RNG,
		Log:               b.logger(),
		DeviceCN:          b.DeviceCN,
		ValidityPeriod:    b.ValidityPeriod,
		AuthenticatedBoot: b.AuthenticatedBoot,
		AuthPubKey:        b.AuthPubKey,
	}

	if err := p.Run(now); err != nil {
		return err
	}

	rec, err := b.Store.ReadRegion(flash.FwDeviceID)
	if err != nil {
		return fmt.Errorf("read device id: %w", err)
	}

	idRec, err := flash.ParseDeviceIDRecord(rec)
	if err != nil {
		return fmt.Errorf("parse device id: %w", err)
	}

	pub, err := hwcrypto.ImportECCPub(idRec.PubKey)
	if err != nil {
		return fmt.Errorf("import device public key: %w", err)
	}

	b.deviceKey = &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(idRec.PrivKey)}

	return nil
}

// seal locks down the configured key-material address range; once called
// the configuration latches until the next power-on reset.
func (b *Boot) seal() error {
	if b.SealSize == 0 {
		return nil
	}

	if err := b.Gate.ConfigureDataRegion(b.SealStart, b.SealSize); err != nil {
		return fmt.Errorf("configure region: %w", err)
	}

	return b.Gate.Enable()
}

// zeroize overwrites the words backing the device private scalar derived
// during this boot sequence and then drops the reference to it, so it does
// not outlive Run.
func (b *Boot) zeroize() {
	if b.deviceKey != nil && b.deviceKey.D != nil {
		words := b.deviceKey.D.Bits()
		for i := range words {
			words[i] = 0
		}
	}

	b.deviceKey = nil
}
