// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"crypto/ecdh"
	"sync"

	"github.com/humandebri/kinic-cli/lib/principal"
)

// Result is what a successful callback delivers to the waiting flow:
// the decrypted payload and the principal derived from the user's
// root key.
type Result struct {
	Payload   *BrowserPayload
	Principal principal.Principal
}

// slotState is the lifecycle of an attempt's single-use resources.
type slotState int

const (
	// slotArmed means the handshake key and result sender are still
	// available for the one callback that wins.
	slotArmed slotState = iota

	// slotConsumed means a callback has already taken them. Every
	// later request is a duplicate.
	slotConsumed
)

// attemptSlot guards the resources that make a callback single-use:
// the handshake private key and the one-shot result channel. The
// transition Armed → Consumed happens exactly once, under the mutex;
// all racing requests but the first observe slotConsumed.
type attemptSlot struct {
	mu           sync.Mutex
	state        slotState
	handshakeKey *ecdh.PrivateKey
	deliver      chan<- Result
}

// newAttemptSlot arms a slot with the attempt's handshake key and
// returns the receiver the flow waits on. The channel has capacity
// one so the winning handler's send never blocks.
func newAttemptSlot(handshakeKey *ecdh.PrivateKey) (*attemptSlot, <-chan Result) {
	results := make(chan Result, 1)
	slot := &attemptSlot{
		state:        slotArmed,
		handshakeKey: handshakeKey,
		deliver:      results,
	}
	return slot, results
}

// take consumes the slot. The first caller receives the handshake key
// and the result sender; everyone after observes ok == false. The key
// reference is cleared so it cannot be reused even by this package.
func (s *attemptSlot) take() (*ecdh.PrivateKey, chan<- Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == slotConsumed {
		return nil, nil, false
	}
	s.state = slotConsumed

	key := s.handshakeKey
	deliver := s.deliver
	s.handshakeKey = nil
	s.deliver = nil
	return key, deliver, true
}
