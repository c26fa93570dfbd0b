// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"

	"github.com/humandebri/kinic-cli/lib/principal"
	"github.com/humandebri/kinic-cli/lib/reqhash"
)

// RequestType selects the content map's shape on the wire.
type RequestType string

const (
	// Call is a state-mutating update call.
	Call RequestType = "call"

	// Query is a read-only query call.
	Query RequestType = "query"
)

// Request is one call or query against a canister method, before
// signing. IngressExpiryNs bounds how long the network will accept
// the request; Nonce deduplicates otherwise-identical calls and may
// be empty.
type Request struct {
	Type            RequestType
	Sender          principal.Principal
	CanisterID      principal.Principal
	MethodName      string
	Arg             []byte
	IngressExpiryNs uint64
	Nonce           []byte
}

// ID returns the representation-independent hash of the request's
// content map. This is what the sender signs (under the request
// domain separator) and what the network uses to identify the call.
func (r *Request) ID() [32]byte {
	var fields reqhash.Map
	fields.SetString("request_type", string(r.Type))
	fields.SetBytes("sender", r.Sender.Bytes())
	fields.SetBytes("canister_id", r.CanisterID.Bytes())
	fields.SetString("method_name", r.MethodName)
	fields.SetBytes("arg", r.Arg)
	fields.SetUint64("ingress_expiry", r.IngressExpiryNs)
	if len(r.Nonce) > 0 {
		fields.SetBytes("nonce", r.Nonce)
	}
	return fields.Sum()
}

func (r *Request) validate() error {
	switch r.Type {
	case Call, Query:
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	if r.MethodName == "" {
		return fmt.Errorf("request has no method name")
	}
	if r.IngressExpiryNs == 0 {
		return fmt.Errorf("request has no ingress expiry")
	}
	return nil
}
