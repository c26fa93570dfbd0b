// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity owns the credential produced by a browser login:
// the session signing key, the persisted identity file, and the
// delegated identity handle every RPC client signs with.
//
// Key exports:
//
//   - [GenerateSessionKey] -- fresh Ed25519 session keypair (PKCS#8
//     private, DER public)
//   - [Stored] / [Save] / [Load] -- the on-disk identity file. Save
//     writes a temporary sibling with 0600 permissions, fsyncs, and
//     renames into place so a crash never corrupts or exposes an
//     existing credential. Load re-normalizes stored keys, verifies
//     the chain where possible, and refuses expired credentials with
//     [ErrExpired].
//   - [Identity] -- Sender principal, root public key, delegation
//     chain, and Sign over the session key. This is the single handle
//     the ledger/launcher/memory clients consume.
//
// The identity file lives at ~/.config/kinic/identity.json (or
// $KINIC_IDENTITY_FILE, or under $XDG_CONFIG_HOME). It is only ever
// replaced whole; there are no partial updates.
package identity
