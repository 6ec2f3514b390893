// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package identity

import (
	"fmt"

	"github.com/usbarmory/barnacle/hwcrypto"
)

// serialLen is the byte length of a generated certificate serial number.
const serialLen = 16

// SerialNumber derives a certificate serial number from a device public key:
// KDF(devicePub, label="Serial"), with the leading byte's sign bit cleared
// and forced nonzero so the value is always a positive DER INTEGER without
// a leading 0x00 pad byte.
func SerialNumber(primitives hwcrypto.Primitives, devicePub []byte) ([]byte, error) {
	raw, err := primitives.KDF(serialLen, devicePub, nil, "Serial")
	if err != nil {
		return nil, fmt.Errorf("identity: derive serial: %w", err)
	}

	raw[0] &= 0x7f
	if raw[0] == 0 {
		raw[0] = 0x01
	}

	return raw, nil
}
