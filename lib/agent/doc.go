// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent builds the signed CBOR request envelopes an
// authenticated client puts on the wire: a content map (call or
// query), the user's root public key, a session-key signature over
// the domain-separated request ID, and the delegation chain proving
// the session key speaks for the root key.
//
// Key exports:
//   - Request: one call or query against a canister method.
//   - Request.ID: the representation-independent request hash.
//   - Sign: wraps a Request in an Envelope using an identity.
//   - Envelope.Encode: the self-describing CBOR bytes for the wire.
package agent
