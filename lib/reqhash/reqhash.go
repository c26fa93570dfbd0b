// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package reqhash

import (
	"bytes"
	"crypto/sha256"
	"sort"
)

// Map accumulates fields for a representation-independent hash.
// Fields may be added in any order; Sum is order-independent. The
// zero value is ready to use.
type Map struct {
	fieldHashes [][]byte
}

// SetString adds a UTF-8 string field.
func (m *Map) SetString(key, value string) {
	m.add(key, []byte(value))
}

// SetBytes adds a byte blob field.
func (m *Map) SetBytes(key string, value []byte) {
	m.add(key, value)
}

// SetUint64 adds an unsigned integer field, encoded as ULEB128.
func (m *Map) SetUint64(key string, value uint64) {
	m.add(key, ULEB128(value))
}

// SetBytesArray adds an array-of-blobs field. The value hash is the
// concatenation of each element's SHA-256, hashed as a unit.
func (m *Map) SetBytesArray(key string, values [][]byte) {
	var concatenated bytes.Buffer
	for _, value := range values {
		elementHash := sha256.Sum256(value)
		concatenated.Write(elementHash[:])
	}
	m.addPrehashed(key, sha256.Sum256(concatenated.Bytes()))
}

// Sum returns the representation-independent hash of the accumulated
// fields: the per-field (key-hash ‖ value-hash) pairs are sorted
// bytewise and their concatenation hashed.
func (m *Map) Sum() [sha256.Size]byte {
	sorted := make([][]byte, len(m.fieldHashes))
	copy(sorted, m.fieldHashes)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})

	var concatenated bytes.Buffer
	for _, fieldHash := range sorted {
		concatenated.Write(fieldHash)
	}
	return sha256.Sum256(concatenated.Bytes())
}

func (m *Map) add(key string, encodedValue []byte) {
	m.addPrehashed(key, sha256.Sum256(encodedValue))
}

func (m *Map) addPrehashed(key string, valueHash [sha256.Size]byte) {
	keyHash := sha256.Sum256([]byte(key))
	pair := make([]byte, 0, 2*sha256.Size)
	pair = append(pair, keyHash[:]...)
	pair = append(pair, valueHash[:]...)
	m.fieldHashes = append(m.fieldHashes, pair)
}

// ULEB128 encodes an unsigned integer in the variable-length format
// the IC uses for numeric fields in hashed maps.
func ULEB128(value uint64) []byte {
	encoded := make([]byte, 0, 10)
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		encoded = append(encoded, b)
		if value == 0 {
			return encoded
		}
	}
}
