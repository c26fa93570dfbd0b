// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

// Package login implements the local-callback browser login protocol:
// the CLI obtains a time-boxed delegation from the user's browser-held
// root identity without ever seeing the root private key.
//
// One login attempt works like this: [Flow.Run] generates a session
// signing key, an ephemeral P-256 handshake key, and a random nonce;
// starts a [CallbackServer] on loopback; and opens the identity
// provider in the browser with the callback address, session public
// key, nonce, and handshake public key in the URL. After the user
// authenticates, the provider's page posts an encrypted payload to
// POST /callback. The handler validates size, content type, origin,
// and nonce, consumes the single-use handshake key, decrypts the
// payload (ECDH agreement keying AES-256-GCM), checks the session-key
// and origin bindings, and hands exactly one result back to the
// waiting flow, which normalizes the delegation chain and returns the
// finished credential for persistence.
//
// Concurrency invariant: at most one callback succeeds per attempt.
// The handshake key and the result channel live in a take-once slot
// with an explicit Armed → Consumed transition; every request after
// the first take is answered 409. The flow itself waits under a
// wall-clock timeout ([ErrTimeout]) and shuts the server down
// gracefully on success, timeout, or cancellation.
//
// Nothing in this package retries: every failure ends the attempt and
// the user starts over.
package login
