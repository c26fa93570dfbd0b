// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"github.com/humandebri/kinic-cli/lib/delegation"
)

// CallbackRequest is the encrypted envelope the provider's page posts
// to the callback endpoint. All byte fields travel as hex strings.
type CallbackRequest struct {
	// Nonce is echoed verbatim from the authorize URL and compared
	// against the attempt's expected value before anything is
	// decrypted.
	Nonce string `json:"nonce"`

	// EphemeralPublicKeyHex is the browser's half of the P-256 key
	// agreement, as an uncompressed point.
	EphemeralPublicKeyHex string `json:"ephemeralPublicKeyHex"`

	// IVHex is the 12-byte AES-GCM nonce.
	IVHex string `json:"ivHex"`

	// CiphertextHex is the sealed BrowserPayload JSON.
	CiphertextHex string `json:"ciphertextHex"`
}

// BrowserPayload is the plaintext recovered from a CallbackRequest:
// the delegation chain plus the bindings that tie it to this exact
// login attempt.
type BrowserPayload struct {
	Delegations      []delegation.Record `json:"delegations"`
	UserPublicKey    delegation.ByteList `json:"userPublicKey"`
	SessionPublicKey delegation.ByteList `json:"sessionPublicKey"`
	ExpirationNs     delegation.Uint64   `json:"expirationNs"`
	DerivationOrigin string              `json:"derivationOrigin"`
}
