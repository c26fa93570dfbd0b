// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"fmt"
)

// SessionKeyMaterial is the signing keypair generated fresh for one
// login attempt. The private key is held in memory until the finished
// credential is persisted, after which the identity store owns it.
// Neither field may ever be logged.
type SessionKeyMaterial struct {
	// PKCS8 is the DER PKCS#8 encoding of the private key, the form
	// persisted (hex-encoded) in the identity file.
	PKCS8 []byte

	// PublicKeyDER is the DER SubjectPublicKeyInfo encoding of the
	// public key. Every delegation in the resulting chain must carry
	// exactly these bytes.
	PublicKeyDER []byte

	private ed25519.PrivateKey
}

// GenerateSessionKey produces a fresh Ed25519 session keypair from the
// system's secure random source. Random source exhaustion is the only
// failure mode and aborts the login attempt.
func GenerateSessionKey() (*SessionKeyMaterial, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("encoding session private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, fmt.Errorf("encoding session public key: %w", err)
	}

	return &SessionKeyMaterial{
		PKCS8:        pkcs8,
		PublicKeyDER: publicDER,
		private:      private,
	}, nil
}

// Sign signs a message with the session private key.
func (k *SessionKeyMaterial) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// parseSessionKey recovers the keypair from its PKCS#8 encoding, as
// read back from the identity file.
func parseSessionKey(pkcs8 []byte) (*SessionKeyMaterial, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		return nil, fmt.Errorf("parsing session private key: %w", err)
	}
	private, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("session key is %T, want Ed25519", parsed)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(private.Public())
	if err != nil {
		return nil, fmt.Errorf("encoding session public key: %w", err)
	}

	return &SessionKeyMaterial{
		PKCS8:        pkcs8,
		PublicKeyDER: publicDER,
		private:      private,
	}, nil
}
