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

// keyUsage bit positions (X.509 KeyUsage BIT STRING, bit 0 = MSB).
const (
	kuDigitalSignature = 0x80
	kuKeyCertSign      = 0x04
)

// extension writes a full Extension ::= SEQUENCE { extnID, critical
// OPTIONAL, extnValue OCTET STRING }, delegating the value's inner DER to
// value.
func extension(b *der.Builder, oid der.OID, critical bool, value func(*der.Builder) error) error {
	b.StartSequence()

	if err := b.AddOID(oid); err != nil {
		return err
	}

	if critical {
		if err := b.AddBoolean(true); err != nil {
			return err
		}
	}

	b.StartOctetStringEnvelope()
	if err := value(b); err != nil {
		return err
	}
	if err := b.Pop(); err != nil {
		return err
	}

	return b.Pop()
}

// writeExtensions wraps the given pre-built extension writers in a
// [3] EXPLICIT SEQUENCE OF Extension block.
func writeExtensions(b *der.Builder, exts ...func(*der.Builder) error) error {
	b.StartExplicit(3)
	b.StartSequence()

	for _, ext := range exts {
		if err := ext(b); err != nil {
			return err
		}
	}

	if err := b.Pop(); err != nil {
		return err
	}

	return b.Pop()
}

// basicConstraints returns an extension writer for BasicConstraints
// { cA, pathLen }, critical, used on Root and Device TBS structures.
func basicConstraints(cA bool, pathLen int) func(*der.Builder) error {
	return func(b *der.Builder) error {
		return extension(b, oidBasicConstraints, true, func(b *der.Builder) error {
			b.StartSequence()
			if err := b.AddBoolean(cA); err != nil {
				return err
			}
			if err := b.AddInteger(int64(pathLen)); err != nil {
				return err
			}
			return b.Pop()
		})
	}
}

// keyUsage returns an extension writer setting digitalSignature and
// keyCertSign; every certificate in the chain carries this same pair of
// key-usage bits.
func keyUsage() func(*der.Builder) error {
	return func(b *der.Builder) error {
		return extension(b, oidKeyUsage, true, func(b *der.Builder) error {
			return b.AddBitString([]byte{kuDigitalSignature | kuKeyCertSign})
		})
	}
}

// extKeyUsageClientAuth returns an extension writer for ExtendedKeyUsage
// containing only clientAuth, set on device and alias certs.
func extKeyUsageClientAuth() func(*der.Builder) error {
	return func(b *der.Builder) error {
		return extension(b, oidExtKeyUsage, false, func(b *der.Builder) error {
			b.StartSequence()
			if err := b.AddOID(oidExtKeyUsageClient); err != nil {
				return err
			}
			return b.Pop()
		})
	}
}

// authorityKeyIdentifier returns an extension writer carrying SHA-1(issuer
// public key) as the [0] IMPLICIT keyIdentifier.
func authorityKeyIdentifier(issuerPub *ecdsa.PublicKey) func(*der.Builder) error {
	return func(b *der.Builder) error {
		return extension(b, oidAuthorityKeyID, false, func(b *der.Builder) error {
			b.StartSequence()
			if err := b.AddImplicitOctetString(0, sha1Fingerprint(issuerPub)); err != nil {
				return err
			}
			return b.Pop()
		})
	}
}

// riotExtension returns an extension writer for the custom riotOID
// extension, carrying {version=1, {{ecPublicKeyOID, curveOID},
// deviceIdPubBitString}, {sha256OID, fwidOctet}} so a verifier can
// retrieve the exact firmware measurement from the certificate.
func riotExtension(devicePub *ecdsa.PublicKey, fwid [32]byte) func(*der.Builder) error {
	return func(b *der.Builder) error {
		return extension(b, oidRiot, false, func(b *der.Builder) error {
			b.StartSequence()

			if err := b.AddInteger(1); err != nil { // version
				return err
			}

			curve, err := curveOID(devicePub.Curve.Params().BitSize)
			if err != nil {
				return err
			}

			b.StartSequence() // { {ecPublicKeyOID, curveOID}, deviceIdPub }
			b.StartSequence()
			if err := b.AddOID(oidECPublicKey); err != nil {
				return err
			}
			if err := b.AddOID(curve); err != nil {
				return err
			}
			if err := b.Pop(); err != nil {
				return err
			}

			if err := buildECCPubBitString(b, devicePub); err != nil {
				return err
			}
			if err := b.Pop(); err != nil {
				return err
			}

			b.StartSequence() // { sha256OID, fwidOctet }
			if err := b.AddOID(oidSHA256); err != nil {
				return err
			}
			if err := b.AddOctetString(fwid[:]); err != nil {
				return err
			}
			if err := b.Pop(); err != nil {
				return err
			}

			return b.Pop()
		})
	}
}
