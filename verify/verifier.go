// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package verify implements the per-boot agent measurement and attestation
// state machine: measure the resident agent, optionally check its author
// signature, detect rollback, derive (or reuse) the compound key, issue an
// alias certificate, and assemble the certificate store handed to the
// agent.
package verify

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/usbarmory/barnacle/der"
	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/identity"
	"github.com/usbarmory/barnacle/internal/debug"
	"github.com/usbarmory/barnacle/x509build"
)

// RollbackPolicy controls what AgentVerifier does when it detects that the
// resident agent's version/issuance regressed relative to the cached
// values.
type RollbackPolicy int

const (
	// RollbackReportOnly logs the event via the debug channel and lets
	// the boot proceed. This is the default, matching observed behavior
	// of the reference implementation.
	RollbackReportOnly RollbackPolicy = iota
	// RollbackAbort fails Verify outright on a detected rollback.
	RollbackAbort
)

// CertStoreCapacity is the default byte capacity of the assembled
// RAM-resident certificate store.
const CertStoreCapacity = 3072

// Result carries the outputs of a successful Verify: the compound key pair
// for this boot and the assembled certificate chain.
type Result struct {
	CompoundPub  []byte
	CompoundPriv []byte
	CertStore    []byte
}

// AgentVerifier runs the per-boot measurement and attestation flow.
type AgentVerifier struct {
	Store      *flash.Store
	Primitives hwcrypto.Primitives
	Log        debug.Logger

	// DeviceKey signs freshly issued alias certificates.
	DeviceKey *ecdsa.PrivateKey
	DeviceCN  string

	ValidityPeriod time.Duration
	RollbackPolicy RollbackPolicy

	// CertCapacity overrides CertStoreCapacity when nonzero.
	CertCapacity uint32
}

func (v *AgentVerifier) logger() debug.Logger {
	if v.Log != nil {
		return v.Log
	}
	return debug.Discard
}

// Verify runs the Start -> Measure -> CheckDigest -> MaybeAuth -> Compound
// -> (RefreshCache) -> Assemble state machine once. now is the reference
// time used for the alias certificate's validity window.
func (v *AgentVerifier) Verify(now time.Time) (*Result, error) {
	log := v.logger()
	coordSize := hwcrypto.CoordSize()

	hdr, codeBytes, err := v.start(coordSize)
	if err != nil {
		return nil, err
	}

	digest, err := v.measure(hdr, codeBytes)
	if err != nil {
		return nil, err
	}

	if err := v.checkDigest(hdr, digest); err != nil {
		return nil, err
	}

	headerDigest := v.Primitives.Hash(hdr.SignedRegion())

	issued, issuedOK, err := v.readIssuedCerts()
	if err != nil {
		return nil, err
	}

	if err := v.maybeAuth(hdr, issued, issuedOK, headerDigest); err != nil {
		return nil, err
	}

	compoundPub, compoundPriv, aliasCertPEM, err := v.compound(hdr, headerDigest, digest, now)
	if err != nil {
		return nil, err
	}

	certStore, err := v.assemble(issued, issuedOK, aliasCertPEM)
	if err != nil {
		return nil, err
	}

	log.Printf("verify: agent %q version=%d accepted\n", trimName(hdr.Agent.Name), hdr.Agent.Version)

	return &Result{CompoundPub: compoundPub, CompoundPriv: compoundPriv, CertStore: certStore}, nil
}

func (v *AgentVerifier) start(coordSize int) (*flash.AgentHeader, []byte, error) {
	hdrBytes, err := v.Store.ReadRegion(flash.AgentHdr)
	if err != nil {
		return nil, nil, fmt.Errorf("verify: read agent header: %w", err)
	}

	codeBytes, err := v.Store.ReadRegion(flash.AgentCode)
	if err != nil {
		return nil, nil, fmt.Errorf("verify: read agent code: %w", err)
	}

	hdr, err := flash.ParseAgentHeader(hdrBytes, coordSize)
	if err != nil {
		return nil, nil, fmt.Errorf("verify: parse agent header: %w", err)
	}

	if hdr.Magic != flash.Magic {
		return nil, nil, fmt.Errorf("verify: agent header magic mismatch")
	}
	if hdr.Version > flash.MaxHeaderVersion {
		return nil, nil, fmt.Errorf("verify: agent header version %d exceeds maximum %d", hdr.Version, flash.MaxHeaderVersion)
	}

	return hdr, codeBytes, nil
}

func (v *AgentVerifier) measure(hdr *flash.AgentHeader, codeBytes []byte) ([32]byte, error) {
	if uint32(len(codeBytes)) < hdr.Agent.Size {
		return [32]byte{}, fmt.Errorf("verify: agent code shorter than hdr.agent.size")
	}

	return v.Primitives.Hash(codeBytes[:hdr.Agent.Size]), nil
}

func (v *AgentVerifier) checkDigest(hdr *flash.AgentHeader, digest [32]byte) error {
	if digest != hdr.Agent.Digest {
		return fmt.Errorf("verify: agent digest mismatch")
	}
	return nil
}

func (v *AgentVerifier) readIssuedCerts() (*flash.IssuedCertsRecord, bool, error) {
	magic, ok, err := v.Store.ReadMagic(flash.IssuedCerts)
	if err != nil {
		return nil, false, fmt.Errorf("verify: read issued certs magic: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	_ = magic

	data, err := v.Store.ReadRegion(flash.IssuedCerts)
	if err != nil {
		return nil, false, fmt.Errorf("verify: read issued certs: %w", err)
	}

	rec, err := flash.ParseIssuedCertsRecord(data)
	if err != nil {
		return nil, false, fmt.Errorf("verify: parse issued certs: %w", err)
	}

	return rec, true, nil
}

// maybeAuth verifies the agent's author signature when AUTHENTICATED_BOOT
// is configured and an author public key is on file; any other
// configuration silently skips the check and still proceeds.
func (v *AgentVerifier) maybeAuth(hdr *flash.AgentHeader, issued *flash.IssuedCertsRecord, issuedOK bool, headerDigest [32]byte) error {
	if !issuedOK {
		return nil
	}
	if issued.Flags&flash.FlagProvisioned == 0 || issued.Flags&flash.FlagAuthenticatedBoot == 0 {
		return nil
	}
	if len(issued.AuthPubKey) == 0 {
		return nil
	}
	if hdr.Signature == nil {
		return fmt.Errorf("verify: authenticated boot required but agent carries no signature")
	}

	authPub, err := hwcrypto.ImportECCPub(issued.AuthPubKey)
	if err != nil {
		return fmt.Errorf("verify: author public key: %w", err)
	}

	r := new(big.Int).SetBytes(hdr.Signature.R)
	s := new(big.Int).SetBytes(hdr.Signature.S)

	if !v.Primitives.VerifyDigest(headerDigest[:], r, s, authPub) {
		return fmt.Errorf("verify: author signature invalid")
	}

	return nil
}

// compound runs the Compound/RefreshCache branch: it reconciles the cached
// state against the current header digest, refreshing the compound key
// and alias certificate when they differ, and reports (but does not
// abort on, by default) a detected rollback.
func (v *AgentVerifier) compound(hdr *flash.AgentHeader, headerDigest [32]byte, agentDigest [32]byte, now time.Time) (pub, priv, aliasCertPEM []byte, err error) {
	log := v.logger()

	cacheBytes, rerr := v.Store.ReadRegion(flash.FwCache)
	if rerr != nil {
		return nil, nil, nil, fmt.Errorf("verify: read cache: %w", rerr)
	}

	cache, perr := flash.ParseCacheRecord(cacheBytes)
	cacheValid := perr == nil && cache.Magic == flash.Magic

	if cacheValid {
		if cache.LastVersion >= hdr.Agent.Version || cache.LastIssued >= hdr.Agent.Issued {
			log.Report("rollback detected: agent version=%d issued=%d, cached version=%d issued=%d\n",
				hdr.Agent.Version, hdr.Agent.Issued, cache.LastVersion, cache.LastIssued)

			if v.RollbackPolicy == RollbackAbort {
				return nil, nil, nil, fmt.Errorf("verify: rollback detected, aborting per policy")
			}
		}
	}

	if cacheValid && headerDigest == cache.AgentDigest {
		return cache.CompoundPub, cache.CompoundPriv, cache.AliasCertPEM, nil
	}

	compoundKey, derr := v.Primitives.DeriveECCKey(headerDigest[:], "Alias")
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("verify: derive compound key: %w", derr)
	}

	// The returned private key is the copy made by Bytes() below; the
	// words backing compoundKey.D are overwritten on every exit path.
	defer func() {
		words := compoundKey.D.Bits()
		for i := range words {
			words[i] = 0
		}
	}()

	compoundPub := v.Primitives.ExportECCPub(&compoundKey.PublicKey)

	serial, serr := identity.SerialNumber(v.Primitives, compoundPub)
	if serr != nil {
		return nil, nil, nil, fmt.Errorf("verify: serial: %w", serr)
	}

	notAfter := now.Add(v.ValidityPeriod)

	tbs, terr := x509build.AliasTBS(&compoundKey.PublicKey, &v.DeviceKey.PublicKey, serial, v.DeviceCN, "*", agentDigest, now, notAfter)
	if terr != nil {
		return nil, nil, nil, fmt.Errorf("verify: build alias tbs: %w", terr)
	}

	r, s, serr := x509build.Sign(v.Primitives, tbs, v.DeviceKey)
	if serr != nil {
		return nil, nil, nil, fmt.Errorf("verify: sign alias cert: %w", serr)
	}

	certDER, merr := x509build.MakeAliasCert(tbs, r, s)
	if merr != nil {
		return nil, nil, nil, fmt.Errorf("verify: finalize alias cert: %w", merr)
	}

	aliasPEM := der.ToPEM(der.LabelCertificate, certDER)

	newCache := &flash.CacheRecord{
		Magic:        flash.Magic,
		CompoundPub:  compoundPub,
		CompoundPriv: compoundKey.D.Bytes(),
		AgentDigest:  headerDigest,
		LastVersion:  hdr.Agent.Version,
		LastIssued:   hdr.Agent.Issued,
		AliasCertPEM: aliasPEM,
	}

	if werr := v.Store.WriteRegion(flash.FwCache, newCache.Bytes()); werr != nil {
		return nil, nil, nil, fmt.Errorf("verify: write cache: %w", werr)
	}

	log.Printf("verify: compound key refreshed for agent digest %x\n", headerDigest)

	return compoundPub, newCache.CompoundPriv, aliasPEM, nil
}

// assemble builds the NUL-separated root+device+alias certificate store,
// enforcing a capacity check before each append.
func (v *AgentVerifier) assemble(issued *flash.IssuedCertsRecord, issuedOK bool, aliasCertPEM []byte) ([]byte, error) {
	capacity := v.CertCapacity
	if capacity == 0 {
		capacity = CertStoreCapacity
	}

	table := flash.NewCertTable(capacity)

	if issuedOK && issued.Flags&flash.FlagProvisioned != 0 {
		if root := issued.Certs.Get(flash.SlotRoot); root != nil {
			if err := table.Put(flash.SlotRoot, trimNUL(root)); err != nil {
				return nil, fmt.Errorf("verify: assemble: %w", err)
			}
		}
		if device := issued.Certs.Get(flash.SlotDevice); device != nil {
			if err := table.Put(flash.SlotDevice, trimNUL(device)); err != nil {
				return nil, fmt.Errorf("verify: assemble: %w", err)
			}
		}
	}

	if err := table.Put(flash.SlotLoader, aliasCertPEM); err != nil {
		return nil, fmt.Errorf("verify: assemble: %w", err)
	}

	return table.Concat(), nil
}

func trimNUL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == 0x00 {
		return b[:n-1]
	}
	return b
}

func trimName(name [flash.NameLen]byte) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}
