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
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/usbarmory/barnacle/der"
	"github.com/usbarmory/barnacle/hwcrypto"
)

// buildName writes a minimal RDNSequence holding a single commonName
// attribute: SEQUENCE OF SET OF { SEQUENCE { OID, UTF8String } }.
func buildName(b *der.Builder, cn string) error {
	b.StartSequence() // RDNSequence
	b.StartSet()      // RelativeDistinguishedName
	b.StartSequence() // AttributeTypeAndValue
	if err := b.AddOID(oidCommonName); err != nil {
		return err
	}
	if err := b.AddUTF8String(cn); err != nil {
		return err
	}
	if err := b.Pop(); err != nil { // AttributeTypeAndValue
		return err
	}
	if err := b.Pop(); err != nil { // RDN
		return err
	}
	return b.Pop() // RDNSequence
}

// buildValidity writes SEQUENCE { UTCTime notBefore, UTCTime notAfter }.
func buildValidity(b *der.Builder, notBefore, notAfter time.Time) error {
	b.StartSequence()
	if err := b.AddUTCTime(notBefore); err != nil {
		return err
	}
	if err := b.AddUTCTime(notAfter); err != nil {
		return err
	}
	return b.Pop()
}

// buildSPKI writes a SubjectPublicKeyInfo: SEQUENCE { AlgorithmIdentifier{
// ecPublicKeyOID, curveOID }, BIT STRING uncompressedPoint }.
func buildSPKI(b *der.Builder, pub *ecdsa.PublicKey) error {
	curve, err := curveOID(pub.Curve.Params().BitSize)
	if err != nil {
		return err
	}

	b.StartSequence()

	b.StartSequence()
	if err := b.AddOID(oidECPublicKey); err != nil {
		return err
	}
	if err := b.AddOID(curve); err != nil {
		return err
	}
	if err := b.Pop(); err != nil {
		return err
	}

	var sw hwcrypto.Software
	if err := b.AddBitString(sw.ExportECCPub(pub)); err != nil {
		return err
	}

	return b.Pop()
}

// buildECCPubBitString writes an uncompressed EC point as a bare BIT
// STRING (no SubjectPublicKeyInfo wrapper), used inside the riot
// extension.
func buildECCPubBitString(b *der.Builder, pub *ecdsa.PublicKey) error {
	var sw hwcrypto.Software
	return b.AddBitString(sw.ExportECCPub(pub))
}

// DeviceUniqueID derives the base64(SHA256(deviceIdPub))[:22] pseudo-GUID
// that replaces a "*" subject common name.
func DeviceUniqueID(devicePub *ecdsa.PublicKey) string {
	var sw hwcrypto.Software

	sum := sha256.Sum256(sw.ExportECCPub(devicePub))
	enc := base64.StdEncoding.EncodeToString(sum[:])

	return enc[:22]
}

// resolveCN substitutes the device-unique pseudo-GUID for a "*" common
// name, otherwise returns cn unchanged.
func resolveCN(cn string, devicePub *ecdsa.PublicKey) string {
	if cn == "*" {
		return DeviceUniqueID(devicePub)
	}
	return cn
}

// sha1Fingerprint computes SHA-1(pub), used for AuthorityKeyIdentifier.
// SHA-1 here is the PKIX key-identifier convention, not a security
// boundary.
func sha1Fingerprint(pub *ecdsa.PublicKey) []byte {
	var sw hwcrypto.Software
	sum := sha1.Sum(sw.ExportECCPub(pub))
	return sum[:]
}
