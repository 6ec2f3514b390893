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
	"fmt"
	"time"
)

// OID is an object identifier's arc list. Unlike the original's
// sentinel-terminated C array, this is a plain Go slice — there is no
// analogue of "forgetting the -1 terminator" when the language already
// carries the length (an explicit Open Question resolution, see
// DESIGN.md).
type OID []int

// tlv writes tag, the DER length encoding of len(content), then content,
// as a single primitive value.
func (b *Builder) tlv(tag byte, content []byte) error {
	header := append([]byte{tag}, encodeLength(len(content))...)

	if err := b.write(header); err != nil {
		return err
	}

	return b.write(content)
}

// AddBoolean writes a primitive BOOLEAN.
func (b *Builder) AddBoolean(v bool) error {
	val := byte(0x00)
	if v {
		val = 0xff
	}

	return b.tlv(TagBoolean, []byte{val})
}

// AddInteger writes a primitive INTEGER from an int64.
func (b *Builder) AddInteger(v int64) error {
	if v < 0 {
		return fmt.Errorf("der: AddInteger: negative values are not supported")
	}

	var bs []byte
	for n := v; n > 0; n >>= 8 {
		bs = append([]byte{byte(n)}, bs...)
	}

	if len(bs) == 0 {
		bs = []byte{0x00}
	}

	return b.AddIntegerBytes(bs)
}

// AddIntegerBytes writes a primitive INTEGER from a big-endian unsigned
// byte array, normalizing it to minimal two's-complement form (stripping
// redundant leading zero bytes, and prepending a 0x00 pad byte if the
// high bit of the first remaining byte would otherwise flip the sign).
func (b *Builder) AddIntegerBytes(v []byte) error {
	content := append([]byte(nil), v...)

	for len(content) > 1 && content[0] == 0x00 && content[1] < 0x80 {
		content = content[1:]
	}

	if len(content) == 0 {
		content = []byte{0x00}
	}

	if content[0]&0x80 != 0 {
		content = append([]byte{0x00}, content...)
	}

	return b.tlv(TagInteger, content)
}

// AddShortExplicitInteger writes a small INTEGER wrapped in a [n] EXPLICIT
// context tag, the common PKIX idiom for a TBSCertificate version field.
func (b *Builder) AddShortExplicitInteger(n int, v int64) error {
	b.StartExplicit(n)

	if err := b.AddInteger(v); err != nil {
		return err
	}

	return b.Pop()
}

// AddOID writes a primitive OBJECT IDENTIFIER from an arc list.
func (b *Builder) AddOID(oid OID) error {
	if len(oid) < 2 {
		return fmt.Errorf("der: AddOID: need at least two arcs")
	}

	content := []byte{byte(oid[0]*40 + oid[1])}

	for _, arc := range oid[2:] {
		content = append(content, encodeBase128(arc)...)
	}

	return b.tlv(TagOID, content)
}

func encodeBase128(v int) []byte {
	if v == 0 {
		return []byte{0x00}
	}

	var groups []int
	for n := v; n > 0; n >>= 7 {
		groups = append([]int{n & 0x7f}, groups...)
	}

	out := make([]byte, len(groups))
	for i, g := range groups {
		out[i] = byte(g)
		if i != len(groups)-1 {
			out[i] |= 0x80
		}
	}

	return out
}

// AddUTCTime writes a primitive UTCTime (YYMMDDHHMMSSZ, UTC).
func (b *Builder) AddUTCTime(t time.Time) error {
	return b.tlv(TagUTCTime, []byte(t.UTC().Format("060102150405Z")))
}

// AddUTF8String writes a primitive UTF8String.
func (b *Builder) AddUTF8String(s string) error {
	return b.tlv(TagUTF8String, []byte(s))
}

// AddOctetString writes a primitive OCTET STRING from an already-known
// byte slice. Use StartOctetStringEnvelope instead when the content must
// itself be built with further Add*/Start* calls.
func (b *Builder) AddOctetString(v []byte) error {
	return b.tlv(TagOctetString, v)
}

// AddBitString writes a primitive BIT STRING from an already-known byte
// slice, with zero unused trailing bits. Use StartBitStringEnvelope
// instead when the content must itself be built with further
// Add*/Start* calls.
func (b *Builder) AddBitString(v []byte) error {
	return b.tlv(TagBitString, append([]byte{0x00}, v...))
}

// AddImplicitOctetString writes an already-known byte slice as a
// context-specific primitive [n] IMPLICIT OCTET STRING, used for fields
// such as AuthorityKeyIdentifier's keyIdentifier.
func (b *Builder) AddImplicitOctetString(n int, v []byte) error {
	return b.tlv(0x80|byte(n), v)
}
