// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package spki

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// rawEd25519KeySize is the length of an unwrapped Ed25519 public key.
const rawEd25519KeySize = 32

var (
	// oidEd25519 is the RFC 8410 algorithm identifier for Ed25519.
	oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	// oidCanisterSignature is the Internet Computer canister
	// signature algorithm. Chains rooted in such a key cannot be
	// verified locally — only the IC itself can check them.
	oidCanisterSignature = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 56387, 1, 2}
)

// ErrUnknownEncoding is returned by Normalize for input that is
// neither valid DER SubjectPublicKeyInfo nor a raw 32-byte key.
var ErrUnknownEncoding = errors.New("unknown public key encoding")

// Normalize converts a provider-supplied public key to canonical DER
// SubjectPublicKeyInfo form. Valid DER input is returned unchanged, a
// raw 32-byte Ed25519 key is wrapped per RFC 8410, and anything else
// fails with ErrUnknownEncoding. Normalize is idempotent.
func Normalize(key []byte) ([]byte, error) {
	if _, err := AlgorithmOID(key); err == nil {
		return key, nil
	}
	if len(key) == rawEd25519KeySize {
		return wrapRawEd25519(key)
	}
	return nil, fmt.Errorf("%w (%d bytes)", ErrUnknownEncoding, len(key))
}

// AlgorithmOID parses DER SubjectPublicKeyInfo and returns its
// algorithm identifier. Returns an error if the input is not a
// well-formed SubjectPublicKeyInfo structure.
func AlgorithmOID(der []byte) (asn1.ObjectIdentifier, error) {
	input := cryptobyte.String(der)

	var spki cryptobyte.String
	if !input.ReadASN1(&spki, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("not a DER SubjectPublicKeyInfo sequence")
	}

	var algorithm cryptobyte.String
	if !spki.ReadASN1(&algorithm, cryptobyte_asn1.SEQUENCE) {
		return nil, errors.New("missing AlgorithmIdentifier")
	}

	var oid asn1.ObjectIdentifier
	if !algorithm.ReadASN1ObjectIdentifier(&oid) {
		return nil, errors.New("missing algorithm OID")
	}

	var subjectPublicKey asn1.BitString
	if !spki.ReadASN1BitString(&subjectPublicKey) || !spki.Empty() {
		return nil, errors.New("malformed subjectPublicKey")
	}

	return oid, nil
}

// RawKey extracts the subjectPublicKey bytes from a DER
// SubjectPublicKeyInfo. For Ed25519 this is the 32-byte key the
// signature algorithm operates on.
func RawKey(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)

	var spki cryptobyte.String
	if !input.ReadASN1(&spki, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("not a DER SubjectPublicKeyInfo sequence")
	}

	var algorithm cryptobyte.String
	if !spki.ReadASN1(&algorithm, cryptobyte_asn1.SEQUENCE) {
		return nil, errors.New("missing AlgorithmIdentifier")
	}

	var subjectPublicKey asn1.BitString
	if !spki.ReadASN1BitString(&subjectPublicKey) || !spki.Empty() {
		return nil, errors.New("malformed subjectPublicKey")
	}
	if subjectPublicKey.BitLength%8 != 0 {
		return nil, errors.New("subjectPublicKey has a partial trailing byte")
	}
	return subjectPublicKey.Bytes, nil
}

// IsEd25519 reports whether der is a SubjectPublicKeyInfo carrying an
// Ed25519 key.
func IsEd25519(der []byte) bool {
	oid, err := AlgorithmOID(der)
	return err == nil && oid.Equal(oidEd25519)
}

// IsCanisterSignature reports whether der is a SubjectPublicKeyInfo
// carrying an IC canister-signature key. Such keys are accepted but
// local verification of the delegation chain is skipped, with a
// warning surfaced to the user.
func IsCanisterSignature(der []byte) bool {
	oid, err := AlgorithmOID(der)
	return err == nil && oid.Equal(oidCanisterSignature)
}

// wrapRawEd25519 builds the RFC 8410 SubjectPublicKeyInfo for a raw
// Ed25519 public key:
//
//	SEQUENCE {
//	    SEQUENCE { OID 1.3.101.112 }
//	    BIT STRING <key>
//	}
func wrapRawEd25519(raw []byte) ([]byte, error) {
	var builder cryptobyte.Builder
	builder.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidEd25519)
		})
		b.AddASN1BitString(raw)
	})

	der, err := builder.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding RFC 8410 key: %w", err)
	}
	return der, nil
}
