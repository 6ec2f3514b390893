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

// IssuedCerts flags.
const (
	FlagProvisioned       uint32 = 0x1
	FlagAuthenticatedBoot uint32 = 0x2
	FlagWriteLock         uint32 = 0x4
)

// DeviceIDRecord is the FwDeviceId region payload: the device key pair,
// written exactly once in the device's lifetime.
type DeviceIDRecord struct {
	Magic   uint32
	PubKey  []byte // uncompressed SEC1 0x04||X||Y
	PrivKey []byte // big-endian scalar
}

// Bytes serializes the record as magic || len(pub) || pub || len(priv) || priv.
func (d *DeviceIDRecord) Bytes() []byte {
	return encodeLV(d.Magic, d.PubKey, d.PrivKey)
}

// ParseDeviceIDRecord decodes a DeviceIDRecord previously written by Bytes.
func ParseDeviceIDRecord(data []byte) (*DeviceIDRecord, error) {
	magic, fields, err := decodeLV(data, 2)
	if err != nil {
		return nil, fmt.Errorf("flash: device id record: %w", err)
	}

	return &DeviceIDRecord{Magic: magic, PubKey: fields[0], PrivKey: fields[1]}, nil
}

// CacheRecord is the FwCache region payload: last boot's compound key
// pair, the digest of the last seen agent header's signed region (stored
// in AgentDigest), last version/issuance, and the cached alias certificate
// PEM. Rewritten only when that header digest changes.
type CacheRecord struct {
	Magic        uint32
	CompoundPub  []byte
	CompoundPriv []byte
	AgentDigest  [DigestLen]byte
	LastVersion  uint32
	LastIssued   uint32
	AliasCertPEM []byte
}

func (c *CacheRecord) Bytes() []byte {
	head := make([]byte, 4+4+4+DigestLen)
	binary.LittleEndian.PutUint32(head[0:4], c.LastVersion)
	binary.LittleEndian.PutUint32(head[4:8], c.LastIssued)
	copy(head[8:8+DigestLen], c.AgentDigest[:])

	return encodeLV(c.Magic, head, c.CompoundPub, c.CompoundPriv, c.AliasCertPEM)
}

// ParseCacheRecord decodes a CacheRecord previously written by Bytes.
func ParseCacheRecord(data []byte) (*CacheRecord, error) {
	magic, fields, err := decodeLV(data, 4)
	if err != nil {
		return nil, fmt.Errorf("flash: cache record: %w", err)
	}

	head := fields[0]
	if len(head) < 4+4+DigestLen {
		return nil, fmt.Errorf("flash: cache record: short head")
	}

	c := &CacheRecord{
		Magic:        magic,
		LastVersion:  binary.LittleEndian.Uint32(head[0:4]),
		LastIssued:   binary.LittleEndian.Uint32(head[4:8]),
		CompoundPub:  fields[1],
		CompoundPriv: fields[2],
		AliasCertPEM: fields[3],
	}
	copy(c.AgentDigest[:], head[8:8+DigestLen])

	return c, nil
}

// IssuedCertsRecord is the IssuedCerts region payload: the factory-issued
// root and device certificates (or empty), the author-verification
// public key, and the flags word.
type IssuedCertsRecord struct {
	Magic      uint32
	Flags      uint32
	AuthPubKey []byte // uncompressed SEC1 pub, empty if not provisioned
	Certs      *CertTable
}

func (r *IssuedCertsRecord) Bytes() []byte {
	head := make([]byte, 4)
	binary.LittleEndian.PutUint32(head, r.Flags)

	table := make([]byte, 0, NumSlots*8+4+len(r.Certs.Bytes))
	for _, e := range r.Certs.Slots {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint32(b[0:4], e.Start)
		binary.LittleEndian.PutUint32(b[4:8], e.Size)
		table = append(table, b...)
	}
	cursor := make([]byte, 4)
	binary.LittleEndian.PutUint32(cursor, r.Certs.Cursor)
	table = append(table, cursor...)
	table = append(table, r.Certs.Bytes...)

	return encodeLV(r.Magic, head, r.AuthPubKey, table)
}

// ParseIssuedCertsRecord decodes an IssuedCertsRecord previously written by
// Bytes.
func ParseIssuedCertsRecord(data []byte) (*IssuedCertsRecord, error) {
	magic, fields, err := decodeLV(data, 3)
	if err != nil {
		return nil, fmt.Errorf("flash: issued certs record: %w", err)
	}

	head := fields[0]
	if len(head) < 4 {
		return nil, fmt.Errorf("flash: issued certs record: short head")
	}

	table := fields[2]
	if len(table) < NumSlots*8+4 {
		return nil, fmt.Errorf("flash: issued certs record: short table")
	}

	ct := &CertTable{}
	for i := 0; i < NumSlots; i++ {
		ct.Slots[i] = CertEntry{
			Start: binary.LittleEndian.Uint32(table[i*8 : i*8+4]),
			Size:  binary.LittleEndian.Uint32(table[i*8+4 : i*8+8]),
		}
	}
	off := NumSlots * 8
	ct.Cursor = binary.LittleEndian.Uint32(table[off : off+4])
	ct.Bytes = append([]byte(nil), table[off+4:]...)

	return &IssuedCertsRecord{
		Magic:      magic,
		Flags:      binary.LittleEndian.Uint32(head[0:4]),
		AuthPubKey: fields[1],
		Certs:      ct,
	}, nil
}

// encodeLV packs magic followed by each field as a uint32 length prefix
// plus its bytes — a small length-value framing used for the persistent
// records instead of reflection-based encoding, which a constrained
// bootloader cannot afford.
func encodeLV(magic uint32, fields ...[]byte) []byte {
	size := 4
	for _, f := range fields {
		size += 4 + len(f)
	}

	out := make([]byte, size)
	binary.LittleEndian.PutUint32(out[0:4], magic)

	off := 4
	for _, f := range fields {
		binary.LittleEndian.PutUint32(out[off:off+4], uint32(len(f)))
		off += 4
		copy(out[off:], f)
		off += len(f)
	}

	return out
}

func decodeLV(data []byte, nFields int) (uint32, [][]byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("short record")
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	off := 4

	fields := make([][]byte, 0, nFields)
	for i := 0; i < nFields; i++ {
		if off+4 > len(data) {
			return 0, nil, fmt.Errorf("truncated field %d", i)
		}
		n := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4

		if off+n > len(data) {
			return 0, nil, fmt.Errorf("truncated field %d body", i)
		}
		fields = append(fields, append([]byte(nil), data[off:off+n]...))
		off += n
	}

	return magic, fields, nil
}
