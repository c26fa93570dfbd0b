// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides passphrase encryption for identity backups.
// It wraps filippo.io/age's scrypt recipients for the two operations
// the CLI needs: seal an identity file for export, and open a sealed
// export on import.
//
// Ciphertext is base64-encoded so an export is a single pasteable
// string. Passphrases and decrypted plaintext travel in
// [secret.Buffer] values backed by mmap memory outside the Go heap
// (locked against swap, excluded from core dumps, zeroed on Close).
//
// Key exports:
//
//   - [Seal] -- encrypt plaintext under a passphrase
//   - [Open] -- decrypt a sealed export with its passphrase
//
// Depends on lib/secret for secure memory allocation.
package sealed
