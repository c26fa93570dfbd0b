// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// ByteList is a byte slice with wire-tolerant JSON handling. Browser
// pages serialize Uint8Array values as arrays of integers; hex strings
// are also accepted. Marshaling always produces the integer-array
// form, matching the provider wire format and the persisted identity
// file layout.
type ByteList []byte

// MarshalJSON encodes the bytes as a JSON array of integers.
func (b ByteList) MarshalJSON() ([]byte, error) {
	values := make([]uint16, len(b))
	for index, value := range b {
		values[index] = uint16(value)
	}
	return json.Marshal(values)
}

// UnmarshalJSON accepts a JSON array of integers in [0, 255] or a hex
// string.
func (b *ByteList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		decoded, err := hex.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("byte field is a string but not hex: %w", err)
		}
		*b = decoded
		return nil
	}

	var values []int64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	decoded := make([]byte, len(values))
	for index, value := range values {
		if value < 0 || value > 255 {
			return fmt.Errorf("byte field element %d out of range: %d", index, value)
		}
		decoded[index] = byte(value)
	}
	*b = decoded
	return nil
}

// Uint64 is a 64-bit unsigned integer with wire-tolerant JSON
// handling: browser pages serialize BigInt values as decimal strings,
// while plain numbers also appear. Marshaling produces a JSON number.
type Uint64 uint64

// MarshalJSON encodes the value as a JSON number.
func (u Uint64) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(u), 10), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (u *Uint64) UnmarshalJSON(data []byte) error {
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		text = unquoted
	}
	parsed, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing u64 field: %w", err)
	}
	*u = Uint64(parsed)
	return nil
}

// Record is a signed delegation exactly as posted by the browser,
// before normalization: public keys in whatever encoding the provider
// chose and targets as principal text.
type Record struct {
	Delegation RecordBody `json:"delegation"`
	Signature  ByteList   `json:"signature"`
}

// RecordBody is the inner delegation statement of a wire Record.
type RecordBody struct {
	Pubkey     ByteList `json:"pubkey"`
	Expiration Uint64   `json:"expiration"`
	Targets    []string `json:"targets,omitempty"`
}
