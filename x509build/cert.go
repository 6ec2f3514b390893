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
	"math/big"

	"github.com/usbarmory/barnacle/der"
	"github.com/usbarmory/barnacle/hwcrypto"
)

func padToCoordSize(v []byte, size int) []byte {
	if len(v) >= size {
		return v
	}

	out := make([]byte, size)
	copy(out[size-len(v):], v)

	return out
}

// wrapCert implements the common finalization shape shared by every
// certificate kind: outer SEQUENCE = { TBS, algorithmIdentifier
// (ecdsa-with-SHA-256), BIT STRING enclosing SEQUENCE{INTEGER r, INTEGER
// s} }. r and s are left-padded to the curve coordinate size before being
// written.
func wrapCert(tbs []byte, r, s *big.Int) ([]byte, error) {
	size := hwcrypto.CoordSize()

	b := der.NewBuilder(len(tbs) + 256)

	if err := b.WriteRaw(tbs); err != nil {
		return nil, err
	}

	if err := b.WrapAsCertificate(); err != nil {
		return nil, err
	}

	if err := writeAlgorithmIdentifier(b, oidECDSAWithSHA256); err != nil {
		return nil, err
	}

	if err := b.StartBitStringEnvelope(); err != nil {
		return nil, err
	}

	b.StartSequence()
	if err := b.AddIntegerBytes(padToCoordSize(r.Bytes(), size)); err != nil {
		return nil, err
	}
	if err := b.AddIntegerBytes(padToCoordSize(s.Bytes(), size)); err != nil {
		return nil, err
	}
	if err := b.Pop(); err != nil { // signature SEQUENCE
		return nil, err
	}

	if err := b.Pop(); err != nil { // BIT STRING envelope
		return nil, err
	}

	if err := b.Pop(); err != nil { // outer certificate SEQUENCE
		return nil, err
	}

	return b.Bytes(), nil
}

// MakeRootCert finalizes a Root TBS into a signed certificate.
func MakeRootCert(tbs []byte, r, s *big.Int) ([]byte, error) { return wrapCert(tbs, r, s) }

// MakeDeviceCert finalizes a Device TBS into a signed certificate.
func MakeDeviceCert(tbs []byte, r, s *big.Int) ([]byte, error) { return wrapCert(tbs, r, s) }

// MakeAliasCert finalizes an Alias TBS into a signed certificate.
func MakeAliasCert(tbs []byte, r, s *big.Int) ([]byte, error) { return wrapCert(tbs, r, s) }

// MakeCSR finalizes a CSR TBS into a signed CertificationRequest. The CSR
// is self-signed by the subject key (PKCS#10 proof of possession).
func MakeCSR(tbs []byte, r, s *big.Int) ([]byte, error) { return wrapCert(tbs, r, s) }

// Sign hashes tbs and signs it with key via primitives, returning the
// (r, s) pair the Make*Cert functions expect.
func Sign(primitives hwcrypto.Primitives, tbs []byte, key *ecdsa.PrivateKey) (r, s *big.Int, err error) {
	digest := primitives.Hash(tbs)
	return primitives.Sign(digest[:], key)
}

// ConcatenatePEM concatenates a set of already-PEM-encoded certificates
// with a NUL separator after each one, so PEM consumers expecting a
// C-string tail can walk the concatenation. This is the same layout the
// verify package assembles into CertStore (through flash.CertTable) and
// that barnacle-dump splits; neither of them calls this function.
func ConcatenatePEM(certs ...[]byte) []byte {
	var out []byte

	for _, c := range certs {
		out = append(out, c...)
		out = append(out, 0x00)
	}

	return out
}
