// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package x509build builds the four TBS structures (Root, Device, Alias,
// CSR) and their signed forms, on top of der.Builder and
// hwcrypto.Primitives.
package x509build

import (
	"fmt"

	"github.com/usbarmory/barnacle/der"
)

// Well-known PKIX/SEC1 object identifiers.
var (
	oidCommonName        = der.OID{2, 5, 4, 3}
	oidECPublicKey       = der.OID{1, 2, 840, 10045, 2, 1}
	oidCurveP256         = der.OID{1, 2, 840, 10045, 3, 1, 7}
	oidCurveP384         = der.OID{1, 3, 132, 0, 34}
	oidCurveP521         = der.OID{1, 3, 132, 0, 35}
	oidECDSAWithSHA256   = der.OID{1, 2, 840, 10045, 4, 3, 2}
	oidSHA256            = der.OID{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidBasicConstraints  = der.OID{2, 5, 29, 19}
	oidKeyUsage          = der.OID{2, 5, 29, 15}
	oidExtKeyUsage       = der.OID{2, 5, 29, 37}
	oidAuthorityKeyID    = der.OID{2, 5, 29, 35}
	oidExtKeyUsageClient = der.OID{1, 3, 6, 1, 5, 5, 7, 3, 2}

	// oidRiot carries the firmware measurement extension. Allocated
	// under the Barnacle project's private enterprise arc
	// (1.3.6.1.4.1.99999 is a placeholder/unregistered arc, not a real
	// IANA assignment).
	oidRiot = der.OID{1, 3, 6, 1, 4, 1, 99999, 1, 1}
)

// curveOID returns the named curve OID for one of the three supported
// curve sizes.
func curveOID(bitSize int) (der.OID, error) {
	switch bitSize {
	case 256:
		return oidCurveP256, nil
	case 384:
		return oidCurveP384, nil
	case 521:
		return oidCurveP521, nil
	default:
		return nil, fmt.Errorf("x509build: unsupported curve bit size %d", bitSize)
	}
}
