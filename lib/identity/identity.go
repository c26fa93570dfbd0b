// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"github.com/humandebri/kinic-cli/lib/delegation"
	"github.com/humandebri/kinic-cli/lib/principal"
)

// Identity is the delegated identity handle RPC clients sign with:
// a session key authorized by a delegation chain rooted in the user's
// key. The effective caller on the wire is the principal derived from
// the root key, not from the session key.
type Identity struct {
	userPublicKeyDER []byte
	session          *SessionKeyMaterial
	chain            []delegation.Signed
	sender           principal.Principal
	expirationNs     uint64
}

func newIdentity(userPublicKeyDER []byte, session *SessionKeyMaterial, chain []delegation.Signed, expirationNs uint64) *Identity {
	return &Identity{
		userPublicKeyDER: userPublicKeyDER,
		session:          session,
		chain:            chain,
		sender:           principal.SelfAuthenticating(userPublicKeyDER),
		expirationNs:     expirationNs,
	}
}

// Sender returns the principal this identity acts as, derived from
// the root public key.
func (id *Identity) Sender() principal.Principal { return id.sender }

// PublicKey returns the root public key in DER form. Envelopes carry
// this as sender_pubkey; the session key only ever appears inside the
// delegation chain.
func (id *Identity) PublicKey() []byte { return id.userPublicKeyDER }

// SessionPublicKey returns the session public key in DER form.
func (id *Identity) SessionPublicKey() []byte { return id.session.PublicKeyDER }

// Delegations returns the chain authorizing the session key.
func (id *Identity) Delegations() []delegation.Signed { return id.chain }

// ExpirationNs returns the chain's effective expiration in
// nanoseconds since the Unix epoch.
func (id *Identity) ExpirationNs() uint64 { return id.expirationNs }

// Sign signs a message with the session private key.
func (id *Identity) Sign(message []byte) []byte {
	return id.session.Sign(message)
}
