// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package x509build

import (
	"crypto/ecdsa"
	"time"

	"github.com/usbarmory/barnacle/der"
)

// TBSBufferSize is the default capacity of the caller-owned DER buffer used
// to build a single TBSCertificate, exclusively written during one cert
// build.
const TBSBufferSize = 2048

const tbsVersion = 2 // X.509v3

func writeAlgorithmIdentifier(b *der.Builder, oid der.OID) error {
	b.StartSequence()
	if err := b.AddOID(oid); err != nil {
		return err
	}
	return b.Pop()
}

// buildTBS writes the common TBSCertificate skeleton shared by Root,
// Device and Alias certificates.
func buildTBS(b *der.Builder, serial []byte, issuerCN, subjectCN string, subjectPub *ecdsa.PublicKey, notBefore, notAfter time.Time, exts ...func(*der.Builder) error) error {
	b.StartSequence()

	if err := b.AddShortExplicitInteger(0, tbsVersion); err != nil {
		return err
	}

	if err := b.AddIntegerBytes(serial); err != nil {
		return err
	}

	if err := writeAlgorithmIdentifier(b, oidECDSAWithSHA256); err != nil {
		return err
	}

	if err := buildName(b, issuerCN); err != nil {
		return err
	}

	if err := buildValidity(b, notBefore, notAfter); err != nil {
		return err
	}

	if err := buildName(b, subjectCN); err != nil {
		return err
	}

	if err := buildSPKI(b, subjectPub); err != nil {
		return err
	}

	if len(exts) > 0 {
		if err := writeExtensions(b, exts...); err != nil {
			return err
		}
	}

	return b.Pop()
}

// RootTBS builds the TBSCertificate for the Root certificate: subject ==
// issuer, basicConstraints{cA:true, pathLen:2}.
func RootTBS(pub *ecdsa.PublicKey, serial []byte, cn string, notBefore, notAfter time.Time) ([]byte, error) {
	b := der.NewBuilder(TBSBufferSize)

	if err := buildTBS(b, serial, cn, cn, pub, notBefore, notAfter,
		basicConstraints(true, 2),
		keyUsage(),
	); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// DeviceTBS builds the TBSCertificate for the Device certificate:
// basicConstraints{cA:true, pathLen:1}, self-signed when rootPub is nil,
// otherwise signed by (and carrying the AuthorityKeyIdentifier of) rootPub.
func DeviceTBS(devicePub, rootPub *ecdsa.PublicKey, serial []byte, deviceCN, rootCN string, notBefore, notAfter time.Time) ([]byte, error) {
	b := der.NewBuilder(TBSBufferSize)

	issuerCN := deviceCN
	exts := []func(*der.Builder) error{
		basicConstraints(true, 1),
		keyUsage(),
		extKeyUsageClientAuth(),
	}

	if rootPub != nil {
		issuerCN = rootCN
		exts = append(exts, authorityKeyIdentifier(rootPub))
	}

	if err := buildTBS(b, serial, issuerCN, deviceCN, devicePub, notBefore, notAfter, exts...); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// AliasTBS builds the TBSCertificate for the Alias (compound key)
// certificate: subject is the compound public key, issuer is the device
// key, and the extensions carry the riotOID firmware measurement. A
// subjectCN of "*" is replaced by the device-unique pseudo-GUID derived
// from devicePub.
func AliasTBS(compoundPub, devicePub *ecdsa.PublicKey, serial []byte, deviceCN, subjectCN string, fwid [32]byte, notBefore, notAfter time.Time) ([]byte, error) {
	b := der.NewBuilder(TBSBufferSize)

	subject := resolveCN(subjectCN, devicePub)

	if err := buildTBS(b, serial, deviceCN, subject, compoundPub, notBefore, notAfter,
		keyUsage(),
		extKeyUsageClientAuth(),
		riotExtension(devicePub, fwid),
	); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
