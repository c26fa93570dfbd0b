// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// nonceBytes is the entropy of the per-attempt nonce.
const nonceBytes = 32

// ErrDecryptFailed is the single error every decryption problem
// collapses into: malformed hex, a bad point, the wrong IV length, an
// authentication-tag mismatch, or unparseable plaintext. Surfacing
// which step failed would hand an attacker a padding-oracle-style
// probe, so callers only ever see this.
var ErrDecryptFailed = errors.New("decrypting callback payload failed")

// NewNonce returns a fresh hex-encoded 32-byte nonce binding one
// login attempt against CSRF and replay.
func NewNonce() (string, error) {
	buffer := make([]byte, nonceBytes)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// GenerateHandshakeKey produces the CLI's single-use P-256 key for
// the encrypted browser channel. The public half travels in the
// authorize URL; the private half is armed into the attempt slot and
// consumed by at most one callback.
func GenerateHandshakeKey() (*ecdh.PrivateKey, error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating handshake key: %w", err)
	}
	return key, nil
}

// decryptPayload recovers the BrowserPayload from an encrypted
// callback: P-256 agreement between the attempt's handshake key and
// the browser's ephemeral key yields the AES-256-GCM key; the IV and
// ciphertext come from the request's hex fields. Fails closed with
// ErrDecryptFailed — never anything more specific.
func decryptPayload(handshakeKey *ecdh.PrivateKey, request *CallbackRequest) (*BrowserPayload, error) {
	peerBytes, err := hex.DecodeString(request.EphemeralPublicKeyHex)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	iv, err := hex.DecodeString(request.IVHex)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	ciphertext, err := hex.DecodeString(request.CiphertextHex)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	peerKey, err := ecdh.P256().NewPublicKey(peerBytes)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	sharedSecret, err := handshakeKey.ECDH(peerKey)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(iv) != gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var payload BrowserPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, ErrDecryptFailed
	}
	return &payload, nil
}

// EncryptPayload performs the browser's half of the handshake: it
// generates an ephemeral P-256 key, agrees with the CLI's handshake
// public key (the uncompressed point from the authorize URL), and
// seals the payload JSON under AES-256-GCM with a random IV. The CLI
// itself never encrypts; this exists for tests and for documenting
// the wire format the provider page implements.
func EncryptPayload(handshakePublicKey []byte, nonce string, payload *BrowserPayload) (*CallbackRequest, error) {
	peerKey, err := ecdh.P256().NewPublicKey(handshakePublicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing handshake public key: %w", err)
	}

	ephemeralKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	sharedSecret, err := ephemeralKey.ECDH(peerKey)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building cipher: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}
	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	return &CallbackRequest{
		Nonce:                 nonce,
		EphemeralPublicKeyHex: hex.EncodeToString(ephemeralKey.PublicKey().Bytes()),
		IVHex:                 hex.EncodeToString(iv),
		CiphertextHex:         hex.EncodeToString(ciphertext),
	}, nil
}
