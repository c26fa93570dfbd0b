// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package reqhash implements the Internet Computer's
// representation-independent hash over string-keyed field maps. The IC
// signs and identifies requests by this hash rather than by any
// particular serialization, so two encodings of the same logical map
// produce the same digest.
//
// Each field contributes SHA-256(key) ‖ SHA-256(encoded value); the
// per-field digests are sorted and the concatenation hashed once more.
// Values encode as: strings and byte blobs verbatim, unsigned integers
// as ULEB128, and arrays as the concatenation of their elements'
// hashes.
//
// Used by lib/delegation to check delegation signatures and by
// lib/agent to compute request IDs for signed envelopes.
package reqhash
