// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/humandebri/kinic-cli/lib/delegation"
	"github.com/humandebri/kinic-cli/lib/identity"
)

// requestDomainSeparator prefixes the request ID before signing, so a
// request signature can never be confused with a delegation
// signature over the same bytes.
const requestDomainSeparator = "\x0Aic-request"

// selfDescribedCBORTag is the three-byte prefix marking the payload
// as self-describing CBOR; receivers use it to sniff the encoding.
var selfDescribedCBORTag = []byte{0xd9, 0xd9, 0xf7}

// content is the wire shape of a request's content map.
type content struct {
	RequestType   string `cbor:"request_type"`
	Sender        []byte `cbor:"sender"`
	CanisterID    []byte `cbor:"canister_id"`
	MethodName    string `cbor:"method_name"`
	Arg           []byte `cbor:"arg"`
	IngressExpiry uint64 `cbor:"ingress_expiry"`
	Nonce         []byte `cbor:"nonce,omitempty"`
}

// wireDelegationBody mirrors delegation.Delegation for CBOR, where
// targets travel as principal bytes rather than text. Targets is a
// pointer so a present-but-empty list still reaches the wire: the
// signature covers the field whenever it is present.
type wireDelegationBody struct {
	Pubkey     []byte    `cbor:"pubkey"`
	Expiration uint64    `cbor:"expiration"`
	Targets    *[][]byte `cbor:"targets,omitempty"`
}

type wireDelegation struct {
	Delegation wireDelegationBody `cbor:"delegation"`
	Signature  []byte             `cbor:"signature"`
}

// Envelope is a signed request ready for the wire: the content map,
// the root public key, the session-key signature over the
// domain-separated request ID, and the delegation chain.
type Envelope struct {
	Content          content          `cbor:"content"`
	SenderPubkey     []byte           `cbor:"sender_pubkey"`
	SenderSig        []byte           `cbor:"sender_sig"`
	SenderDelegation []wireDelegation `cbor:"sender_delegation,omitempty"`
}

// Sign wraps a request in an envelope signed by the identity's
// session key. The request's Sender must already be the identity's
// principal; mismatches are a caller bug surfaced as an error rather
// than a silently unauthorized envelope.
func Sign(request *Request, id *identity.Identity) (*Envelope, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	if !request.Sender.Equal(id.Sender()) {
		return nil, fmt.Errorf("request sender %s is not the identity's principal %s", request.Sender, id.Sender())
	}

	requestID := request.ID()
	message := make([]byte, 0, len(requestDomainSeparator)+len(requestID))
	message = append(message, requestDomainSeparator...)
	message = append(message, requestID[:]...)

	return &Envelope{
		Content: content{
			RequestType:   string(request.Type),
			Sender:        request.Sender.Bytes(),
			CanisterID:    request.CanisterID.Bytes(),
			MethodName:    request.MethodName,
			Arg:           request.Arg,
			IngressExpiry: request.IngressExpiryNs,
			Nonce:         request.Nonce,
		},
		SenderPubkey:     id.PublicKey(),
		SenderSig:        id.Sign(message),
		SenderDelegation: wireChain(id.Delegations()),
	}, nil
}

// Encode serializes the envelope as self-describing deterministic
// CBOR, the exact bytes to POST to the network endpoint.
func (e *Envelope) Encode() ([]byte, error) {
	options := cbor.CoreDetEncOptions()
	mode, err := options.EncMode()
	if err != nil {
		return nil, fmt.Errorf("building cbor encoder: %w", err)
	}
	encoded, err := mode.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	framed := make([]byte, 0, len(selfDescribedCBORTag)+len(encoded))
	framed = append(framed, selfDescribedCBORTag...)
	framed = append(framed, encoded...)
	return framed, nil
}

// wireChain converts a delegation chain to its CBOR wire form.
func wireChain(chain []delegation.Signed) []wireDelegation {
	if len(chain) == 0 {
		return nil
	}
	wire := make([]wireDelegation, 0, len(chain))
	for _, signed := range chain {
		body := wireDelegationBody{
			Pubkey:     signed.Delegation.Pubkey,
			Expiration: uint64(signed.Delegation.Expiration),
		}
		if signed.Delegation.Targets != nil {
			targets := make([][]byte, 0, len(signed.Delegation.Targets))
			for _, target := range signed.Delegation.Targets {
				targets = append(targets, target.Bytes())
			}
			body.Targets = &targets
		}
		wire = append(wire, wireDelegation{
			Delegation: body,
			Signature:  signed.Signature,
		})
	}
	return wire
}
