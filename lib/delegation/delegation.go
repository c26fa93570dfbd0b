// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/humandebri/kinic-cli/lib/principal"
	"github.com/humandebri/kinic-cli/lib/spki"
)

// Delegation is a normalized delegation statement: the session public
// key in canonical DER form, an absolute expiration in nanoseconds
// since the Unix epoch, and an optional restriction to target
// canisters.
type Delegation struct {
	Pubkey     ByteList              `json:"pubkey"`
	Expiration Uint64                `json:"expiration"`
	Targets    []principal.Principal `json:"targets"`
}

// Signed pairs a delegation with the provider's signature over it.
type Signed struct {
	Delegation Delegation `json:"delegation"`
	Signature  ByteList   `json:"signature"`
}

// ErrEmptyChain is returned when a chain has no entries to take an
// expiration from.
var ErrEmptyChain = errors.New("delegation chain is empty")

// NormalizeChain converts browser wire records into a canonical chain.
// Each record's public key is normalized to DER form and must equal
// sessionPublicKey — a delegation chain grants authority to the
// session key and nothing else. Textual targets must parse as
// principals. Any mismatch or parse failure rejects the whole chain.
func NormalizeChain(records []Record, sessionPublicKey []byte) ([]Signed, error) {
	chain := make([]Signed, 0, len(records))
	for index, record := range records {
		normalized, err := spki.Normalize(record.Delegation.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("delegation %d: unsupported public key format: %w", index, err)
		}
		if !bytes.Equal(normalized, sessionPublicKey) {
			return nil, fmt.Errorf("delegation %d: public key does not match the session key", index)
		}

		// An absent targets field and a present-but-empty list are
		// distinct: the signature covers the field only when present,
		// so the nil/empty distinction must survive normalization.
		var targets []principal.Principal
		if record.Delegation.Targets != nil {
			targets = make([]principal.Principal, 0, len(record.Delegation.Targets))
			for _, target := range record.Delegation.Targets {
				parsed, err := principal.FromText(target)
				if err != nil {
					return nil, fmt.Errorf("delegation %d: invalid target principal: %w", index, err)
				}
				targets = append(targets, parsed)
			}
		}

		chain = append(chain, Signed{
			Delegation: Delegation{
				Pubkey:     ByteList(normalized),
				Expiration: record.Delegation.Expiration,
				Targets:    targets,
			},
			Signature: record.Signature,
		})
	}
	return chain, nil
}

// ChainExpiration returns the effective expiration of a chain: the
// minimum expiration across all entries. Fails on an empty chain.
func ChainExpiration(chain []Signed) (uint64, error) {
	if len(chain) == 0 {
		return 0, ErrEmptyChain
	}
	minimum := uint64(chain[0].Delegation.Expiration)
	for _, entry := range chain[1:] {
		if uint64(entry.Delegation.Expiration) < minimum {
			minimum = uint64(entry.Delegation.Expiration)
		}
	}
	return minimum, nil
}
