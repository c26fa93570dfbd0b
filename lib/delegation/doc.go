// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package delegation converts and validates the delegation chains the
// identity provider hands back after a browser login. A chain is a
// non-empty ordered list of signed statements granting the locally
// generated session key authority rooted in the user's key, each with
// its own expiration and optional canister target restriction.
//
// Key exports:
//
//   - [NormalizeChain] -- browser wire records → canonical chain; every
//     entry's public key must normalize to the session public key, and
//     textual targets must parse as principals
//   - [ChainExpiration] -- the minimum expiration across entries; a
//     chain lives only as long as its shortest-lived link
//   - [Verify] / [SkipLocalVerification] -- Ed25519 chain signature
//     checks, skipped with a visible reason for canister-signature or
//     unrecognized root keys
//
// Wire tolerance: browsers post byte fields as JSON integer arrays
// (Uint8Array) and 64-bit numbers as either JSON numbers or decimal
// strings (BigInt). [ByteList] and [Uint64] accept both; marshaling
// reproduces the integer-array form so persisted identity files stay
// byte-compatible with earlier releases.
package delegation
