// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package spki normalizes the public key encodings returned by the
// identity provider. Internet Identity hands back keys either as DER
// SubjectPublicKeyInfo (self-describing, algorithm-tagged) or as raw
// 32-byte Ed25519 keys; every comparison in the login flow happens on
// the DER form, so [Normalize] is applied to every externally supplied
// key before use.
//
// Key exports:
//
//   - [Normalize] -- raw 32-byte Ed25519 → RFC 8410 DER, DER validated
//     and passed through unchanged; anything else is ErrUnknownEncoding
//   - [AlgorithmOID] -- the algorithm identifier of a DER key
//   - [IsCanisterSignature] -- detects the IC canister-signature
//     algorithm, which cannot be verified locally
//
// DER parsing and construction use golang.org/x/crypto/cryptobyte.
package spki
