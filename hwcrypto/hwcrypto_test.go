// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hwcrypto

import (
	"bytes"
	"testing"
)

func TestDeriveECCKeyDeterministic(t *testing.T) {
	var sw Software

	seed := []byte("test-cdi-seed-0123456789abcdef0")

	a, err := sw.DeriveECCKey(seed, "Identity")
	if err != nil {
		t.Fatal(err)
	}

	b, err := sw.DeriveECCKey(seed, "Identity")
	if err != nil {
		t.Fatal(err)
	}

	if a.D.Cmp(b.D) != 0 {
		t.Fatal("expected deterministic derivation to repeat")
	}

	c, err := sw.DeriveECCKey(seed, "Alias")
	if err != nil {
		t.Fatal(err)
	}

	if a.D.Cmp(c.D) == 0 {
		t.Fatal("expected different labels to derive different keys")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	var sw Software

	priv, err := sw.DeriveECCKey([]byte("seed"), "Identity")
	if err != nil {
		t.Fatal(err)
	}

	digest := sw.Hash([]byte("hello"))

	r, s, err := sw.Sign(digest[:], priv)
	if err != nil {
		t.Fatal(err)
	}

	if !sw.VerifyDigest(digest[:], r, s, &priv.PublicKey) {
		t.Fatal("expected signature to verify")
	}

	digest[0] ^= 0xff
	if sw.VerifyDigest(digest[:], r, s, &priv.PublicKey) {
		t.Fatal("expected tampered digest to fail verification")
	}
}

func TestExportImportECCPubRoundTrip(t *testing.T) {
	var sw Software

	priv, err := sw.DeriveECCKey([]byte("seed"), "Identity")
	if err != nil {
		t.Fatal(err)
	}

	enc := sw.ExportECCPub(&priv.PublicKey)
	if enc[0] != 0x04 {
		t.Fatalf("expected uncompressed point tag, got %#x", enc[0])
	}

	pub, err := ImportECCPub(enc)
	if err != nil {
		t.Fatal(err)
	}

	if pub.X.Cmp(priv.PublicKey.X) != 0 || pub.Y.Cmp(priv.PublicKey.Y) != 0 {
		t.Fatal("round-tripped public key mismatch")
	}
}

func TestKDFDiffersByLabel(t *testing.T) {
	var sw Software

	secret := []byte("cdi")

	a, err := sw.KDF(32, secret, nil, "Serial")
	if err != nil {
		t.Fatal(err)
	}

	b, err := sw.KDF(32, secret, nil, "Identity")
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(a, b) {
		t.Fatal("expected different labels to produce different output")
	}
}
