// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/humandebri/kinic-cli/lib/delegation"
)

func TestNewNonceIsHexAndUnique(t *testing.T) {
	first, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	second, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}

	decoded, err := hex.DecodeString(first)
	if err != nil {
		t.Fatalf("nonce is not hex: %v", err)
	}
	if len(decoded) != nonceBytes {
		t.Fatalf("nonce is %d bytes, want %d", len(decoded), nonceBytes)
	}
	if first == second {
		t.Fatal("two nonces are identical")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	handshakeKey, err := GenerateHandshakeKey()
	if err != nil {
		t.Fatalf("GenerateHandshakeKey: %v", err)
	}

	payload := &BrowserPayload{
		UserPublicKey:    delegation.ByteList{1, 2, 3},
		SessionPublicKey: delegation.ByteList{4, 5, 6},
		ExpirationNs:     delegation.Uint64(1234567890),
		DerivationOrigin: "https://app.example",
	}

	request, err := EncryptPayload(handshakeKey.PublicKey().Bytes(), "nonce", payload)
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}

	decrypted, err := decryptPayload(handshakeKey, request)
	if err != nil {
		t.Fatalf("decryptPayload: %v", err)
	}
	if decrypted.DerivationOrigin != payload.DerivationOrigin {
		t.Fatalf("derivation origin %q, want %q", decrypted.DerivationOrigin, payload.DerivationOrigin)
	}
	if uint64(decrypted.ExpirationNs) != uint64(payload.ExpirationNs) {
		t.Fatalf("expiration %d, want %d", decrypted.ExpirationNs, payload.ExpirationNs)
	}
}

func TestDecryptFailuresAreOpaque(t *testing.T) {
	handshakeKey, err := GenerateHandshakeKey()
	if err != nil {
		t.Fatalf("GenerateHandshakeKey: %v", err)
	}
	valid, err := EncryptPayload(handshakeKey.PublicKey().Bytes(), "nonce", &BrowserPayload{})
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}

	tamperedCiphertext := *valid
	raw, _ := hex.DecodeString(tamperedCiphertext.CiphertextHex)
	raw[0] ^= 0xff
	tamperedCiphertext.CiphertextHex = hex.EncodeToString(raw)

	badHexKey := *valid
	badHexKey.EphemeralPublicKeyHex = "zz"

	notAPoint := *valid
	notAPoint.EphemeralPublicKeyHex = hex.EncodeToString(make([]byte, 65))

	badHexIV := *valid
	badHexIV.IVHex = "zz"

	shortIV := *valid
	shortIV.IVHex = hex.EncodeToString([]byte{1, 2, 3})

	badHexCiphertext := *valid
	badHexCiphertext.CiphertextHex = "zz"

	cases := map[string]*CallbackRequest{
		"tampered ciphertext": &tamperedCiphertext,
		"bad hex key":         &badHexKey,
		"not a curve point":   &notAPoint,
		"bad hex iv":          &badHexIV,
		"short iv":            &shortIV,
		"bad hex ciphertext":  &badHexCiphertext,
	}
	for name, request := range cases {
		if _, err := decryptPayload(handshakeKey, request); !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("%s: error %v, want ErrDecryptFailed", name, err)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	rightKey, err := GenerateHandshakeKey()
	if err != nil {
		t.Fatalf("GenerateHandshakeKey: %v", err)
	}
	wrongKey, err := GenerateHandshakeKey()
	if err != nil {
		t.Fatalf("GenerateHandshakeKey: %v", err)
	}

	request, err := EncryptPayload(rightKey.PublicKey().Bytes(), "nonce", &BrowserPayload{})
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	if _, err := decryptPayload(wrongKey, request); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("error %v, want ErrDecryptFailed", err)
	}
}
