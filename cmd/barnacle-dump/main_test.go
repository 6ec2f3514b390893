// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/usbarmory/barnacle/der"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/identity"
	"github.com/usbarmory/barnacle/x509build"
)

func buildTestCertStore(t *testing.T) []byte {
	t.Helper()

	prim := hwcrypto.Software{}

	key, err := prim.DeriveECCKey([]byte("dump-test-seed"), "Identity")
	if err != nil {
		t.Fatal(err)
	}

	serial, err := identity.SerialNumber(prim, prim.ExportECCPub(&key.PublicKey))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	tbs, err := x509build.DeviceTBS(&key.PublicKey, nil, serial, "Barnacle Dump Test", "", now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	r, s, err := x509build.Sign(prim, tbs, key)
	if err != nil {
		t.Fatal(err)
	}

	certDER, err := x509build.MakeDeviceCert(tbs, r, s)
	if err != nil {
		t.Fatal(err)
	}

	return der.ToPEM(der.LabelCertificate, certDER)
}

func TestDumpPrintsEachCertificate(t *testing.T) {
	pemCert := buildTestCertStore(t)
	store := append(append([]byte{}, pemCert...), 0x00)

	f, err := os.CreateTemp(t.TempDir(), "certstore-*.bin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(store); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if err := dump(out, store); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out.Name())
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Contains(data, []byte("Barnacle Dump Test")) {
		t.Fatalf("expected output to mention the certificate subject, got %q", data)
	}
}

func TestDumpErrorsOnEmptyInput(t *testing.T) {
	out, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if err := dump(out, nil); err == nil {
		t.Fatal("expected an error for empty input")
	}
}
