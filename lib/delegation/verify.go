// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"crypto/ed25519"
	"fmt"

	"github.com/humandebri/kinic-cli/lib/reqhash"
	"github.com/humandebri/kinic-cli/lib/spki"
)

// delegationDomainSeparator prefixes the hash a delegation signature
// covers. The leading byte is the separator's length, per the IC
// request authentication scheme.
const delegationDomainSeparator = "\x1Aic-request-auth-delegation"

// SkipLocalVerification reports whether local signature verification
// of a chain rooted in the given key must be skipped, with a
// user-visible reason. Canister-signature roots can only be checked by
// the IC itself, and unrecognized algorithms cannot be checked at all.
// Both cases proceed with a warning rather than failing — the remote
// end still verifies the chain on every call.
func SkipLocalVerification(rootKeyDER []byte) (string, bool) {
	if spki.IsCanisterSignature(rootKeyDER) {
		return "delegation chain is rooted in a canister-signature key; skipping local verification", true
	}
	if !spki.IsEd25519(rootKeyDER) {
		return "delegation chain uses an unrecognized signature algorithm; skipping local verification", true
	}
	return "", false
}

// Verify checks every signature in the chain: the first entry must be
// signed by the root key, each subsequent entry by the public key of
// the entry before it. Only call Verify when SkipLocalVerification
// reports false for the root key.
func Verify(chain []Signed, rootKeyDER []byte) error {
	signerDER := rootKeyDER
	for index, entry := range chain {
		signerKey, err := spki.RawKey(signerDER)
		if err != nil {
			return fmt.Errorf("delegation %d: extracting signer key: %w", index, err)
		}
		if len(signerKey) != ed25519.PublicKeySize {
			return fmt.Errorf("delegation %d: signer key is %d bytes, want %d", index, len(signerKey), ed25519.PublicKeySize)
		}
		if len(entry.Signature) != ed25519.SignatureSize {
			return fmt.Errorf("delegation %d: signature is %d bytes, want %d", index, len(entry.Signature), ed25519.SignatureSize)
		}

		if !ed25519.Verify(ed25519.PublicKey(signerKey), Signable(entry.Delegation), entry.Signature) {
			return fmt.Errorf("delegation %d: signature verification failed", index)
		}
		signerDER = entry.Delegation.Pubkey
	}
	return nil
}

// Signable returns the message a delegation's signature covers: the
// domain separator followed by the representation-independent hash of
// the delegation's fields.
func Signable(d Delegation) []byte {
	var fields reqhash.Map
	fields.SetBytes("pubkey", d.Pubkey)
	fields.SetUint64("expiration", uint64(d.Expiration))
	if d.Targets != nil {
		targets := make([][]byte, len(d.Targets))
		for index, target := range d.Targets {
			targets[index] = target.Bytes()
		}
		fields.SetBytesArray("targets", targets)
	}

	digest := fields.Sum()
	message := make([]byte, 0, len(delegationDomainSeparator)+len(digest))
	message = append(message, delegationDomainSeparator...)
	message = append(message, digest[:]...)
	return message
}
