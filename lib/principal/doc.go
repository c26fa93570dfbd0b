// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package principal implements Internet Computer principal
// identifiers: the stable caller identity derived from a public key.
//
// A self-authenticating principal is SHA-224 of the DER-encoded public
// key followed by a 0x02 suffix byte. The textual form protects the
// raw bytes with a big-endian CRC-32 prefix, encodes them in lowercase
// unpadded base32, and breaks the result into dash-separated groups of
// five characters (for example "2vxsx-fae", the anonymous principal).
//
// Key exports:
//
//   - [SelfAuthenticating] -- derive a principal from a DER public key
//   - [FromText] / [Principal.Text] -- the textual codec, checksummed
//     and canonical (FromText rejects non-canonical spellings)
//   - [Anonymous] / [Management] -- the two well-known principals
//
// Principal implements encoding.TextMarshaler/TextUnmarshaler, so it
// appears in JSON as its textual form.
package principal
