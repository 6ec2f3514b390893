// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build barnacle_p521

package hwcrypto

import "crypto/elliptic"

// Curve is the configured curve for this build.
var Curve = elliptic.P521()
