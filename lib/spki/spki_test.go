// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package spki

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"testing"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// buildSPKI constructs a SubjectPublicKeyInfo with an arbitrary
// algorithm OID for canister-signature and unknown-algorithm cases.
func buildSPKI(t *testing.T, oid asn1.ObjectIdentifier, key []byte) []byte {
	t.Helper()

	var builder cryptobyte.Builder
	builder.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oid)
		})
		b.AddASN1BitString(key)
	})
	der, err := builder.Bytes()
	if err != nil {
		t.Fatalf("building test SPKI: %v", err)
	}
	return der
}

func TestNormalizeRawMatchesX509(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	normalized, err := Normalize(public)
	if err != nil {
		t.Fatalf("Normalize(raw) error: %v", err)
	}

	// The wrapped form must match the standard library's SPKI
	// encoding of the same key.
	want, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	if !bytes.Equal(normalized, want) {
		t.Errorf("Normalize(raw) = %x, want %x", normalized, want)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	once, err := Normalize(public)
	if err != nil {
		t.Fatalf("first Normalize error: %v", err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("second Normalize error: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Errorf("Normalize not idempotent: %x vs %x", once, twice)
	}
}

func TestNormalizeUnknownEncoding(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("short"),
		bytes.Repeat([]byte{0xab}, 33),
		{0x30, 0x03, 0x02, 0x01, 0x01}, // DER, but not an SPKI
	}
	for _, input := range cases {
		if _, err := Normalize(input); !errors.Is(err, ErrUnknownEncoding) {
			t.Errorf("Normalize(%x) error = %v, want ErrUnknownEncoding", input, err)
		}
	}
}

func TestAlgorithmOID(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := Normalize(public)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	oid, err := AlgorithmOID(der)
	if err != nil {
		t.Fatalf("AlgorithmOID error: %v", err)
	}
	if !oid.Equal(asn1.ObjectIdentifier{1, 3, 101, 112}) {
		t.Errorf("AlgorithmOID = %v, want 1.3.101.112", oid)
	}
	if !IsEd25519(der) {
		t.Error("IsEd25519 = false for an Ed25519 SPKI")
	}
}

func TestAlgorithmOIDTrailingData(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	der, err := Normalize(public)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	if _, err := AlgorithmOID(append(der, 0x00)); err == nil {
		t.Error("AlgorithmOID accepted trailing data")
	}
}

func TestIsCanisterSignature(t *testing.T) {
	canisterOID := asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 56387, 1, 2}
	der := buildSPKI(t, canisterOID, []byte("canister-sig-seed"))

	if !IsCanisterSignature(der) {
		t.Error("IsCanisterSignature = false for a canister-signature SPKI")
	}
	if IsEd25519(der) {
		t.Error("IsEd25519 = true for a canister-signature SPKI")
	}

	// Normalize must pass canister keys through unchanged — they are
	// valid self-describing SPKI even though we cannot verify them.
	normalized, err := Normalize(der)
	if err != nil {
		t.Fatalf("Normalize(canister SPKI) error: %v", err)
	}
	if !bytes.Equal(normalized, der) {
		t.Error("Normalize changed a canister-signature SPKI")
	}
}
