// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command barnacle-dump pretty-prints a captured CertStore: the
// NUL-separated root/device/alias PEM chain Barnacle hands to the agent at
// the end of boot. It is read-only inspection tooling for bring-up, not
// part of the boot path itself.
package main

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
)

func main() {
	path := flag.String("f", "", "path to a captured CertStore dump")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: barnacle-dump -f <certstore.bin>")
		os.Exit(2)
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "barnacle-dump: %v\n", err)
		os.Exit(1)
	}

	if err := dump(os.Stdout, data); err != nil {
		fmt.Fprintf(os.Stderr, "barnacle-dump: %v\n", err)
		os.Exit(1)
	}
}

// dump splits data on its NUL separators and prints a one-line summary of
// every PEM-encoded certificate it finds.
func dump(w *os.File, data []byte) error {
	n := 0

	for _, chunk := range bytes.Split(data, []byte{0x00}) {
		if len(bytes.TrimSpace(chunk)) == 0 {
			continue
		}

		block, _ := pem.Decode(chunk)
		if block == nil {
			return fmt.Errorf("certificate %d: no PEM block found", n)
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("certificate %d: %w", n, err)
		}

		fmt.Fprintf(w, "[%d] subject=%q issuer=%q serial=%x not-before=%s not-after=%s\n",
			n, cert.Subject.CommonName, cert.Issuer.CommonName, cert.SerialNumber,
			cert.NotBefore.Format("2006-01-02"), cert.NotAfter.Format("2006-01-02"))

		n++
	}

	if n == 0 {
		return fmt.Errorf("no certificates found")
	}

	return nil
}
