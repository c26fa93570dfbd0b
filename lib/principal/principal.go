// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package principal

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

const (
	// maxRawLength is the longest principal the IC defines: 28 hash
	// bytes plus one class suffix byte.
	maxRawLength = 29

	// selfAuthenticatingSuffix marks a principal derived from a
	// public key hash.
	selfAuthenticatingSuffix = 0x02

	// anonymousSuffix is the single byte of the anonymous principal.
	anonymousSuffix = 0x04

	// textGroupSize is the number of base32 characters between
	// dashes in the textual form.
	textGroupSize = 5
)

// textEncoding is unpadded RFC 4648 base32. The textual form is
// lowercase; encoding output is lowered and decoding input is raised.
var textEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is an Internet Computer principal identifier: up to 29
// opaque bytes whose suffix byte encodes how the principal was
// derived. The zero value is the management canister principal
// ("aaaaa-aa").
type Principal struct {
	raw []byte
}

// SelfAuthenticating derives the principal for a public key: SHA-224
// of the DER-encoded key, with the self-authenticating suffix
// appended. The key must already be in canonical DER form (see
// lib/spki).
func SelfAuthenticating(publicKeyDER []byte) Principal {
	digest := sha256.Sum224(publicKeyDER)
	raw := make([]byte, 0, sha256.Size224+1)
	raw = append(raw, digest[:]...)
	raw = append(raw, selfAuthenticatingSuffix)
	return Principal{raw: raw}
}

// Anonymous returns the anonymous principal ("2vxsx-fae").
func Anonymous() Principal {
	return Principal{raw: []byte{anonymousSuffix}}
}

// Management returns the management canister principal ("aaaaa-aa"),
// the empty blob.
func Management() Principal {
	return Principal{}
}

// FromBytes constructs a principal from its raw bytes. Fails if the
// input exceeds the maximum principal length.
func FromBytes(raw []byte) (Principal, error) {
	if len(raw) > maxRawLength {
		return Principal{}, fmt.Errorf("principal is %d bytes, maximum is %d", len(raw), maxRawLength)
	}
	return Principal{raw: append([]byte(nil), raw...)}, nil
}

// FromText parses the textual form of a principal. The input must be
// canonical: lowercase, unpadded base32 in dash-separated groups of
// five, with a valid CRC-32 prefix. Anything else is an error.
func FromText(text string) (Principal, error) {
	compact := strings.ReplaceAll(text, "-", "")
	decoded, err := textEncoding.DecodeString(strings.ToUpper(compact))
	if err != nil {
		return Principal{}, fmt.Errorf("invalid principal %q: %w", text, err)
	}
	if len(decoded) < crc32.Size {
		return Principal{}, fmt.Errorf("invalid principal %q: too short for checksum", text)
	}

	checksum := binary.BigEndian.Uint32(decoded[:crc32.Size])
	raw := decoded[crc32.Size:]
	if len(raw) > maxRawLength {
		return Principal{}, fmt.Errorf("invalid principal %q: %d bytes exceeds maximum %d", text, len(raw), maxRawLength)
	}
	if checksum != crc32.ChecksumIEEE(raw) {
		return Principal{}, fmt.Errorf("invalid principal %q: checksum mismatch", text)
	}

	parsed := Principal{raw: append([]byte(nil), raw...)}

	// Round-trip to reject non-canonical spellings (uppercase,
	// misplaced dashes).
	if parsed.Text() != text {
		return Principal{}, fmt.Errorf("invalid principal %q: not in canonical form", text)
	}
	return parsed, nil
}

// MustFromText parses a principal's textual form, panicking on error.
// For compile-time-constant principals in tests and configuration
// defaults.
func MustFromText(text string) Principal {
	parsed, err := FromText(text)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Text returns the canonical textual form: lowercase unpadded base32
// of checksum-prefixed bytes, dash-separated in groups of five.
func (p Principal) Text() string {
	prefixed := make([]byte, crc32.Size+len(p.raw))
	binary.BigEndian.PutUint32(prefixed, crc32.ChecksumIEEE(p.raw))
	copy(prefixed[crc32.Size:], p.raw)

	encoded := strings.ToLower(textEncoding.EncodeToString(prefixed))

	var grouped strings.Builder
	for index := 0; index < len(encoded); index += textGroupSize {
		if index > 0 {
			grouped.WriteByte('-')
		}
		end := index + textGroupSize
		if end > len(encoded) {
			end = len(encoded)
		}
		grouped.WriteString(encoded[index:end])
	}
	return grouped.String()
}

// Bytes returns a copy of the principal's raw bytes.
func (p Principal) Bytes() []byte {
	return append([]byte(nil), p.raw...)
}

// Equal reports whether two principals have identical raw bytes.
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p.raw, other.raw)
}

// String implements fmt.Stringer as the textual form.
func (p Principal) String() string { return p.Text() }

// MarshalText implements encoding.TextMarshaler, so principals appear
// in JSON as their textual form.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.Text()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := FromText(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
