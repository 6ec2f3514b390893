// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !barnacle_p384 && !barnacle_p521

package hwcrypto

import "crypto/elliptic"

// Curve is the configured curve for this build. Exactly one of P-256,
// P-384 or P-521 is selected at build time; P-256 is the default.
var Curve = elliptic.P256()
