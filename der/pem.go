// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package der

import (
	"encoding/pem"
	"fmt"
)

// PEM type labels.
const (
	LabelCertificate        = "CERTIFICATE"
	LabelCertificateRequest = "CERTIFICATE REQUEST"
	LabelECPrivateKey       = "EC PRIVATE KEY"
	LabelPublicKey          = "PUBLIC KEY"
)

// ToPEM wraps a DER buffer with a "-----BEGIN label-----"/"-----END
// label-----" envelope, Base64-encoding the body wrapped to 64 columns.
// This is encoding/pem's own implementation, not a reimplementation of it.
func ToPEM(label string, data []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: label, Bytes: data})
}

// FromPEM is the inverse of ToPEM: it extracts the DER payload of the
// first block matching label. A DER→PEM→DER round trip is the identity on
// a canonical DER buffer.
func FromPEM(label string, data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("der: no PEM block found")
	}

	if block.Type != label {
		return nil, fmt.Errorf("der: PEM block type %q does not match expected %q", block.Type, label)
	}

	return block.Bytes, nil
}
