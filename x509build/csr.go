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

	"github.com/usbarmory/barnacle/der"
)

// CSRTBS builds a PKCS#10 CertificationRequestInfo: version 0, subject,
// SubjectPublicKeyInfo, empty attributes [0]. This lets an integrator
// submit the alias (compound) key to an external CA instead of
// self-chaining it.
func CSRTBS(pub *ecdsa.PublicKey, subjectCN string) ([]byte, error) {
	b := der.NewBuilder(TBSBufferSize)

	b.StartSequence()

	if err := b.AddInteger(0); err != nil {
		return nil, err
	}

	if err := buildName(b, subjectCN); err != nil {
		return nil, err
	}

	if err := buildSPKI(b, pub); err != nil {
		return nil, err
	}

	// empty attributes [0]; the context-constructed tag is identical
	// whether used EXPLICIT or IMPLICIT when the content is empty.
	b.StartExplicit(0)
	if err := b.Pop(); err != nil {
		return nil, err
	}

	if err := b.Pop(); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
