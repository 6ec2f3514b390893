// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package flash

import (
	"encoding/binary"
	"fmt"
)

// NameLen is the fixed size of the agent name field.
const NameLen = 32

// DigestLen is the size of a SHA-256 digest.
const DigestLen = 32

// HeaderVersion is the header format version this build produces.
const HeaderVersion = 1

// MaxHeaderVersion is the highest header format version this boot loader
// accepts.
const MaxHeaderVersion = 1

// fixed header size up to (and including) Agent.Digest, i.e. the signed
// region over which the header digest is computed.
const signedRegionLen = 4 + 4 + 4 + NameLen + 4 + 4 + 4 + DigestLen

// AgentInfo is the packed little-endian agent descriptor embedded in
// AgentHeader.
type AgentInfo struct {
	Name    [NameLen]byte
	Version uint32
	Issued  uint32
	Size    uint32
	Digest  [DigestLen]byte
}

// Signature is the optional authenticated-boot signature over the signed
// region of AgentHeader.
type Signature struct {
	R []byte
	S []byte
}

// AgentHeader is the packed, little-endian agent header.
type AgentHeader struct {
	Magic   uint32
	Version uint32
	// Size is the number of bytes from the header start to the code
	// start: code_base == &hdr + hdr.size.
	Size uint32

	Agent AgentInfo

	// Signature is nil when the header carries no (or a blank)
	// signature, e.g. when AUTHENTICATED_BOOT is not configured.
	Signature *Signature
}

// ParseAgentHeader decodes data as an AgentHeader. coordSize is the curve
// coordinate size in bytes; a signature is considered present only if the
// trailing 2*coordSize bytes are not all-zero.
func ParseAgentHeader(data []byte, coordSize int) (*AgentHeader, error) {
	total := signedRegionLen + 2*coordSize

	if len(data) < total {
		return nil, fmt.Errorf("flash: agent header too short (%d < %d)", len(data), total)
	}

	h := &AgentHeader{
		Magic:   binary.LittleEndian.Uint32(data[0:4]),
		Version: binary.LittleEndian.Uint32(data[4:8]),
		Size:    binary.LittleEndian.Uint32(data[8:12]),
	}

	copy(h.Agent.Name[:], data[12:12+NameLen])
	off := 12 + NameLen
	h.Agent.Version = binary.LittleEndian.Uint32(data[off : off+4])
	h.Agent.Issued = binary.LittleEndian.Uint32(data[off+4 : off+8])
	h.Agent.Size = binary.LittleEndian.Uint32(data[off+8 : off+12])
	copy(h.Agent.Digest[:], data[off+12:off+12+DigestLen])

	sigOff := signedRegionLen
	r := data[sigOff : sigOff+coordSize]
	s := data[sigOff+coordSize : sigOff+2*coordSize]

	if !allZero(r) || !allZero(s) {
		h.Signature = &Signature{R: append([]byte(nil), r...), S: append([]byte(nil), s...)}
	}

	return h, nil
}

// Bytes serializes h back to its packed little-endian representation,
// padding the signature to coordSize per field (used to build fixtures and
// to reconstruct the signed region for re-verification).
func (h *AgentHeader) Bytes(coordSize int) []byte {
	buf := make([]byte, signedRegionLen+2*coordSize)

	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Size)

	copy(buf[12:12+NameLen], h.Agent.Name[:])
	off := 12 + NameLen
	binary.LittleEndian.PutUint32(buf[off:off+4], h.Agent.Version)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], h.Agent.Issued)
	binary.LittleEndian.PutUint32(buf[off+8:off+12], h.Agent.Size)
	copy(buf[off+12:off+12+DigestLen], h.Agent.Digest[:])

	if h.Signature != nil {
		sigOff := signedRegionLen
		copy(buf[sigOff:sigOff+coordSize], h.Signature.R)
		copy(buf[sigOff+coordSize:sigOff+2*coordSize], h.Signature.S)
	}

	return buf
}

// SignedRegion returns the header bytes over which the header digest is
// computed: everything up to and including Agent.Digest.
func (h *AgentHeader) SignedRegion() []byte {
	return h.Bytes(0)[:signedRegionLen]
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
