// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/humandebri/kinic-cli/lib/browser"
	"github.com/humandebri/kinic-cli/lib/clock"
	"github.com/humandebri/kinic-cli/lib/delegation"
	"github.com/humandebri/kinic-cli/lib/identity"
)

// ErrTimeout is returned when the browser never posts a callback
// within the configured window. Distinct from other failures so the
// user knows the fix is simply to re-run login.
var ErrTimeout = errors.New("login timed out waiting for the browser callback")

// Config configures one login flow.
type Config struct {
	// ProviderURL is the identity provider's authorize URL
	// (e.g. "https://id.ai/#authorize").
	ProviderURL string

	// ProviderOrigin is the provider's web origin, used for the
	// Origin header check and CORS scoping.
	ProviderOrigin string

	// DerivationOrigin is the origin the returned delegation must be
	// derived for. Empty accepts the provider's default.
	DerivationOrigin string

	// CallbackPort is the loopback port the provider posts back to.
	// Zero binds an ephemeral port (tests).
	CallbackPort int

	// SessionTTL is the maximum delegation lifetime requested from
	// the provider.
	SessionTTL time.Duration

	// Timeout bounds the whole wait for the browser callback.
	Timeout time.Duration

	// Clock is the time source. Defaults to the real clock.
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Browser opens the authorize URL. Required.
	Browser browser.Launcher
}

// Flow is one run of the local-callback login protocol.
type Flow struct {
	config Config
}

// New creates a login flow. Panics on missing required collaborators
// — those are wiring bugs, not runtime conditions.
func New(config Config) *Flow {
	if config.Logger == nil {
		panic("login.Flow: Logger is required")
	}
	if config.Browser == nil {
		panic("login.Flow: Browser is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Flow{config: config}
}

// Run executes one login attempt end to end: key generation, callback
// server, browser launch, the single callback, chain normalization,
// and assembly of the credential to persist. The returned identity
// handle carries the authenticated principal.
//
// Run never retries. On timeout it returns ErrTimeout; on context
// cancellation, ctx.Err(). In every exit path the callback server is
// shut down gracefully and awaited before returning.
func (f *Flow) Run(ctx context.Context) (*identity.Stored, *identity.Identity, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, nil, err
	}
	session, err := identity.GenerateSessionKey()
	if err != nil {
		return nil, nil, err
	}
	handshakeKey, err := GenerateHandshakeKey()
	if err != nil {
		return nil, nil, err
	}

	server := NewCallbackServer(CallbackServerConfig{
		Port:                     f.config.CallbackPort,
		ExpectedOrigin:           f.config.ProviderOrigin,
		ExpectedDerivationOrigin: f.config.DerivationOrigin,
		ExpectedNonce:            nonce,
		SessionPublicKeyDER:      session.PublicKeyDER,
		HandshakeKey:             handshakeKey,
		Clock:                    f.config.Clock,
		Logger:                   f.config.Logger,
	})

	serveCtx, stopServer := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(serveCtx)
	}()
	// Whatever happens below, stop the server and wait for it to
	// drain before returning.
	defer func() {
		stopServer()
		<-serveDone
	}()

	select {
	case <-server.Ready():
	case err := <-serveDone:
		// Bind failure — Serve returned before signalling ready.
		serveDone <- nil
		return nil, nil, err
	}

	authorizeURL := f.authorizeURL(server, session.PublicKeyDER, nonce, handshakeKey.PublicKey().Bytes())
	f.config.Logger.Info("opening browser for login", "provider", f.config.ProviderOrigin)
	if err := f.config.Browser.Open(authorizeURL); err != nil {
		return nil, nil, fmt.Errorf("opening the login page: %w", err)
	}

	var result Result
	select {
	case result = <-server.Result():
	case <-f.config.Clock.After(f.config.Timeout):
		return nil, nil, ErrTimeout
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	chain, err := delegation.NormalizeChain(result.Payload.Delegations, session.PublicKeyDER)
	if err != nil {
		return nil, nil, err
	}
	expirationNs, err := delegation.ChainExpiration(chain)
	if err != nil {
		return nil, nil, err
	}

	stored := &identity.Stored{
		Version:          identity.StoredVersion,
		IdentityProvider: f.config.ProviderURL,
		UserPublicKeyHex: hex.EncodeToString(result.Payload.UserPublicKey),
		SessionPKCS8Hex:  hex.EncodeToString(session.PKCS8),
		Delegations:      chain,
		ExpirationNs:     expirationNs,
		CreatedAtNs:      uint64(f.config.Clock.Now().UnixNano()),
	}

	// FromStored re-normalizes, verifies the chain where the root
	// key's algorithm allows it (warning otherwise), and yields the
	// handle whose Sender is the authenticated principal.
	id, err := identity.FromStored(stored, f.config.Logger)
	if err != nil {
		return nil, nil, err
	}
	if !id.Sender().Equal(result.Principal) {
		return nil, nil, fmt.Errorf("derived principal %s does not match callback principal %s", id.Sender(), result.Principal)
	}
	return stored, id, nil
}

// authorizeURL builds the provider URL the browser opens: the
// configured authorize endpoint with the callback address and this
// attempt's public parameters appended.
func (f *Flow) authorizeURL(server *CallbackServer, sessionPublicKeyDER []byte, nonce string, handshakePublicKey []byte) string {
	parameters := url.Values{}
	parameters.Set("callback", fmt.Sprintf("http://%s/callback", server.Addr()))
	parameters.Set("sessionPublicKey", hex.EncodeToString(sessionPublicKeyDER))
	parameters.Set("nonce", nonce)
	parameters.Set("ephemeralPublicKey", hex.EncodeToString(handshakePublicKey))
	parameters.Set("maxTimeToLive", fmt.Sprintf("%d", f.config.SessionTTL.Nanoseconds()))
	if f.config.DerivationOrigin != "" {
		parameters.Set("derivationOrigin", f.config.DerivationOrigin)
	}
	return f.config.ProviderURL + "?" + parameters.Encode()
}
