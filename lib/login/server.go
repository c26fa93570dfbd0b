// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"context"
	"crypto/ecdh"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/humandebri/kinic-cli/lib/clock"
)

// maxCallbackBodyBytes caps the callback request body. Real payloads
// are a few kilobytes of delegations; the ceiling only exists so a
// hostile local client cannot balloon memory.
const maxCallbackBodyBytes = 256 * 1024

// CallbackServerConfig configures a CallbackServer for one login
// attempt.
type CallbackServerConfig struct {
	// Port is the loopback TCP port to bind. Zero asks the OS for an
	// ephemeral port (tests); deployments use the provider-registered
	// fixed port, and a bind conflict on it is a permanent failure.
	Port int

	// ExpectedOrigin is the provider's web origin. An Origin header,
	// when present, must match it exactly, and every response carries
	// CORS headers scoped to it.
	ExpectedOrigin string

	// ExpectedDerivationOrigin, when set, must equal the payload's
	// derivationOrigin field. Empty accepts the provider's default.
	ExpectedDerivationOrigin string

	// ExpectedNonce is this attempt's replay/CSRF token.
	ExpectedNonce string

	// SessionPublicKeyDER is the session key generated for this
	// attempt; the payload's sessionPublicKey must normalize to it.
	SessionPublicKeyDER []byte

	// HandshakeKey is armed into the single-use slot.
	HandshakeKey *ecdh.PrivateKey

	// Clock drives the payload expiration freshness check.
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// ShutdownTimeout bounds the graceful-shutdown drain. Defaults
	// to 5 seconds if zero.
	ShutdownTimeout time.Duration
}

// CallbackServer is the short-lived loopback HTTP listener that
// accepts exactly one valid login callback. It follows the usual
// lifecycle: construct, Serve(ctx) in a goroutine, wait for Ready,
// and cancel the context to shut down gracefully.
type CallbackServer struct {
	config CallbackServerConfig
	slot   *attemptSlot
	result <-chan Result

	// ready is closed after the listener is bound and the server is
	// accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, available once ready is
	// closed. With Port zero it carries the OS-assigned port.
	addr net.Addr
}

// NewCallbackServer creates a server for one login attempt. Call
// Serve to bind and start accepting connections.
func NewCallbackServer(config CallbackServerConfig) *CallbackServer {
	if config.HandshakeKey == nil {
		panic("login.CallbackServer: HandshakeKey is required")
	}
	if config.Logger == nil {
		panic("login.CallbackServer: Logger is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	slot, results := newAttemptSlot(config.HandshakeKey)
	return &CallbackServer{
		config: config,
		slot:   slot,
		result: results,
		ready:  make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server is bound and
// accepting connections.
func (s *CallbackServer) Ready() <-chan struct{} { return s.ready }

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *CallbackServer) Addr() net.Addr { return s.addr }

// Result returns the one-shot channel the winning callback delivers
// on. It receives at most one value per attempt.
func (s *CallbackServer) Result() <-chan Result { return s.result }

// Serve binds the loopback listener and accepts HTTP connections.
// Blocks until ctx is cancelled, then performs graceful shutdown:
// stops accepting new connections and waits up to ShutdownTimeout for
// in-flight responses to finish.
func (s *CallbackServer) Serve(ctx context.Context) error {
	address := fmt.Sprintf("127.0.0.1:%d", s.config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		if s.config.Port != 0 && errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use; stop the process using it and try again: %w", s.config.Port, err)
		}
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	router := chi.NewRouter()
	router.Post("/callback", s.handleCallback)
	router.Options("/callback", s.handleOptions)

	server := &http.Server{
		Handler: router,

		// The only client is a browser on the same machine; tight
		// timeouts keep a wedged connection from pinning the server
		// past the login attempt.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.config.Logger.Info("callback server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.config.Logger.Debug("callback server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("callback server shutdown: %w", err)
	}
	return nil
}
