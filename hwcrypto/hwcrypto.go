// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hwcrypto implements the CryptoPrimitives consumed interface: the
// ECC, SHA-256 and KDF operations the rest of Barnacle builds on. On real
// silicon these are expected to be backed by a hardware accelerator such
// as CAAM (soc/nxp/caam); this package is the software-only reference
// implementation used off target and by the portable state machines in
// identity/ and verify/. A hardware-backed Primitives implementation
// (e.g. one that calls into caam.Sign instead of crypto/ecdsa.Sign)
// satisfies the same interface.
package hwcrypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// Primitives is the CryptoPrimitives interface consumed by the rest of
// Barnacle.
type Primitives interface {
	// Hash computes SHA-256(in).
	Hash(in []byte) [32]byte
	// KDF is a one-shot HKDF-like derivation of outLen bytes from
	// secret, bound to context and label.
	KDF(outLen int, secret, context []byte, label string) ([]byte, error)
	// DeriveECCKey deterministically derives a key pair on Curve from
	// seed and label.
	DeriveECCKey(seed []byte, label string) (*ecdsa.PrivateKey, error)
	// Sign computes an ECDSA-with-SHA-256 signature over digest.
	Sign(digest []byte, priv *ecdsa.PrivateKey) (r, s *big.Int, err error)
	// VerifyDigest verifies an ECDSA signature over digest.
	VerifyDigest(digest []byte, r, s *big.Int, pub *ecdsa.PublicKey) bool
	// ExportECCPub returns the uncompressed SEC1 encoding (0x04||X||Y)
	// of pub.
	ExportECCPub(pub *ecdsa.PublicKey) []byte
}

// Software is the stdlib-backed Primitives implementation.
type Software struct{}

// CoordSize returns the curve coordinate size in bytes, used to size
// signature fields and SubjectPublicKeyInfo bit strings.
func CoordSize() int {
	return (Curve.Params().BitSize + 7) / 8
}

func (Software) Hash(in []byte) [32]byte {
	return sha256.Sum256(in)
}

func (Software) KDF(outLen int, secret, context []byte, label string) ([]byte, error) {
	info := append([]byte(label), context...)

	r := hkdf.New(sha256.New, secret, nil, info)

	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hwcrypto: kdf: %w", err)
	}

	return out, nil
}

func (s Software) DeriveECCKey(seed []byte, label string) (*ecdsa.PrivateKey, error) {
	n := Curve.Params().N

	// Derive a candidate scalar deterministically from seed||label and
	// reduce into [1, N-1], so the scalar is never zero; a candidate whose
	// public point comes out as (0, 0) is retried with a salted label so a
	// derivation never silently produces an invalid key.
	for attempt := 0; attempt < 4; attempt++ {
		raw, err := s.KDF(CoordSize()+8, seed, nil, fmt.Sprintf("%s/%d", label, attempt))
		if err != nil {
			return nil, err
		}

		d := new(big.Int).SetBytes(raw)
		d.Mod(d, new(big.Int).Sub(n, big.NewInt(1)))
		d.Add(d, big.NewInt(1))

		priv := new(ecdsa.PrivateKey)
		priv.PublicKey.Curve = Curve
		priv.D = d
		priv.PublicKey.X, priv.PublicKey.Y = Curve.ScalarBaseMult(d.Bytes())

		if priv.PublicKey.X.Sign() != 0 || priv.PublicKey.Y.Sign() != 0 {
			return priv, nil
		}
	}

	return nil, fmt.Errorf("hwcrypto: derive eec key: exhausted retries for label %q", label)
}

func (Software) Sign(digest []byte, priv *ecdsa.PrivateKey) (r, s *big.Int, err error) {
	return ecdsa.Sign(rand.Reader, priv, digest)
}

func (Software) VerifyDigest(digest []byte, r, s *big.Int, pub *ecdsa.PublicKey) bool {
	return ecdsa.Verify(pub, digest, r, s)
}

func (Software) ExportECCPub(pub *ecdsa.PublicKey) []byte {
	size := CoordSize()

	out := make([]byte, 1+2*size)
	out[0] = 0x04

	pub.X.FillBytes(out[1 : 1+size])
	pub.Y.FillBytes(out[1+size : 1+2*size])

	return out
}

// ImportECCPub parses an uncompressed SEC1 encoding (0x04||X||Y) back into
// a public key on Curve.
func ImportECCPub(data []byte) (*ecdsa.PublicKey, error) {
	size := CoordSize()

	if len(data) != 1+2*size || data[0] != 0x04 {
		return nil, fmt.Errorf("hwcrypto: invalid uncompressed point encoding")
	}

	pub := &ecdsa.PublicKey{Curve: Curve}
	pub.X = new(big.Int).SetBytes(data[1 : 1+size])
	pub.Y = new(big.Int).SetBytes(data[1+size : 1+2*size])

	if !Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("hwcrypto: point not on curve")
	}

	return pub, nil
}

var _ Primitives = Software{}
