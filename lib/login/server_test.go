// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/humandebri/kinic-cli/lib/clock"
	"github.com/humandebri/kinic-cli/lib/delegation"
	"github.com/humandebri/kinic-cli/lib/identity"
	"github.com/humandebri/kinic-cli/lib/principal"
	"github.com/humandebri/kinic-cli/lib/testutil"
)

const (
	testProviderOrigin   = "https://id.example"
	testDerivationOrigin = "https://app.example"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// callbackHarness is one running callback server plus everything a
// test needs to talk to it like the provider page would.
type callbackHarness struct {
	server       *CallbackServer
	url          string
	nonce        string
	handshakeKey *ecdh.PrivateKey
	session      *identity.SessionKeyMaterial
	clock        *clock.FakeClock

	userPublicKeyDER []byte
}

func startCallbackServer(t *testing.T) *callbackHarness {
	t.Helper()
	return startCallbackServerExpecting(t, testDerivationOrigin)
}

// startCallbackServerExpecting starts a server with the given expected
// derivation origin; empty means any origin is accepted.
func startCallbackServerExpecting(t *testing.T, derivationOrigin string) *callbackHarness {
	t.Helper()

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	handshakeKey, err := GenerateHandshakeKey()
	if err != nil {
		t.Fatalf("GenerateHandshakeKey: %v", err)
	}
	session, err := identity.GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey: %v", err)
	}
	userPublic, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating user key: %v", err)
	}
	userDER, err := x509.MarshalPKIXPublicKey(userPublic)
	if err != nil {
		t.Fatalf("encoding user key: %v", err)
	}

	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))

	server := NewCallbackServer(CallbackServerConfig{
		Port:                     0,
		ExpectedOrigin:           testProviderOrigin,
		ExpectedDerivationOrigin: derivationOrigin,
		ExpectedNonce:            nonce,
		SessionPublicKeyDER:      session.PublicKeyDER,
		HandshakeKey:             handshakeKey,
		Clock:                    fakeClock,
		Logger:                   discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "server shutdown"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")

	return &callbackHarness{
		server:           server,
		url:              fmt.Sprintf("http://%s/callback", server.Addr()),
		nonce:            nonce,
		handshakeKey:     handshakeKey,
		session:          session,
		clock:            fakeClock,
		userPublicKeyDER: userDER,
	}
}

// validPayload builds a payload bound to this attempt's session key
// and nonce, expiring an hour past the fake clock.
func (h *callbackHarness) validPayload() *BrowserPayload {
	expiration := uint64(h.clock.Now().Add(time.Hour).UnixNano())
	return &BrowserPayload{
		Delegations: []delegation.Record{{
			Delegation: delegation.RecordBody{
				Pubkey:     delegation.ByteList(h.session.PublicKeyDER),
				Expiration: delegation.Uint64(expiration),
			},
			Signature: delegation.ByteList{0xde, 0xad},
		}},
		UserPublicKey:    delegation.ByteList(h.userPublicKeyDER),
		SessionPublicKey: delegation.ByteList(h.session.PublicKeyDER),
		ExpirationNs:     delegation.Uint64(expiration),
		DerivationOrigin: testDerivationOrigin,
	}
}

func (h *callbackHarness) encrypt(t *testing.T, payload *BrowserPayload) []byte {
	t.Helper()
	request, err := EncryptPayload(h.handshakeKey.PublicKey().Bytes(), h.nonce, payload)
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	body, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	return body
}

func (h *callbackHarness) post(t *testing.T, contentType, origin string, body []byte) *http.Response {
	t.Helper()
	request, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	request.Header.Set("Content-Type", contentType)
	if origin != "" {
		request.Header.Set("Origin", origin)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("posting callback: %v", err)
	}
	t.Cleanup(func() { response.Body.Close() })
	return response
}

func requireStatusAndBody(t *testing.T, response *http.Response, status int, fragment string) {
	t.Helper()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	if response.StatusCode != status {
		t.Fatalf("status %d (%q), want %d", response.StatusCode, body, status)
	}
	if fragment != "" && !strings.Contains(string(body), fragment) {
		t.Fatalf("body %q does not contain %q", body, fragment)
	}
	if got := response.Header.Get("Access-Control-Allow-Origin"); got != testProviderOrigin {
		t.Fatalf("Access-Control-Allow-Origin %q, want %q", got, testProviderOrigin)
	}
}

func TestCallbackSuccess(t *testing.T) {
	h := startCallbackServer(t)

	response := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, h.validPayload()))
	expected := principal.SelfAuthenticating(h.userPublicKeyDER)
	requireStatusAndBody(t, response, http.StatusOK, expected.Text())

	result := testutil.RequireReceive(t, h.server.Result(), 5*time.Second, "callback result")
	if !result.Principal.Equal(expected) {
		t.Fatalf("principal %s, want %s", result.Principal, expected)
	}
	if result.Payload.DerivationOrigin != testDerivationOrigin {
		t.Fatalf("derivation origin %q", result.Payload.DerivationOrigin)
	}
}

func TestCallbackAcceptsCharsetParameter(t *testing.T) {
	h := startCallbackServer(t)
	response := h.post(t, "application/json; charset=utf-8", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusOK, "ok")
}

func TestCallbackRejectsWrongContentType(t *testing.T) {
	h := startCallbackServer(t)
	response := h.post(t, "text/plain", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusUnsupportedMediaType, "application/json")
}

func TestCallbackRejectsOversizeBody(t *testing.T) {
	h := startCallbackServer(t)
	oversize := bytes.Repeat([]byte("a"), maxCallbackBodyBytes+1)
	response := h.post(t, "application/json", testProviderOrigin, oversize)
	requireStatusAndBody(t, response, http.StatusRequestEntityTooLarge, "too large")
}

func TestCallbackRejectsForeignOrigin(t *testing.T) {
	h := startCallbackServer(t)
	response := h.post(t, "application/json", "https://evil.example", h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusForbidden, "Invalid origin")
}

func TestCallbackAllowsMissingOrigin(t *testing.T) {
	h := startCallbackServer(t)
	response := h.post(t, "application/json", "", h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusOK, "ok")
}

func TestCallbackRejectsMalformedJSON(t *testing.T) {
	h := startCallbackServer(t)
	response := h.post(t, "application/json", testProviderOrigin, []byte("{not json"))
	requireStatusAndBody(t, response, http.StatusBadRequest, "Invalid JSON payload")
}

func TestCallbackRejectsWrongNonce(t *testing.T) {
	h := startCallbackServer(t)

	request, err := EncryptPayload(h.handshakeKey.PublicKey().Bytes(), "0000", h.validPayload())
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	body, _ := json.Marshal(request)
	response := h.post(t, "application/json", testProviderOrigin, body)
	requireStatusAndBody(t, response, http.StatusBadRequest, "Invalid nonce")

	// The nonce check happens before the slot: a later valid
	// callback still succeeds.
	response = h.post(t, "application/json", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusOK, "ok")
}

func TestCallbackDuplicateConflicts(t *testing.T) {
	h := startCallbackServer(t)

	first := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, first, http.StatusOK, "ok")

	second := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, second, http.StatusConflict, "already used")
}

func TestCallbackDecryptFailureConsumesSlot(t *testing.T) {
	h := startCallbackServer(t)

	request, err := EncryptPayload(h.handshakeKey.PublicKey().Bytes(), h.nonce, h.validPayload())
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}
	request.CiphertextHex = "00" + request.CiphertextHex
	body, _ := json.Marshal(request)

	response := h.post(t, "application/json", testProviderOrigin, body)
	requireStatusAndBody(t, response, http.StatusBadRequest, "Failed to decrypt payload")

	// The attempt is burned. Even a now-valid callback is refused;
	// the user must start a fresh login.
	response = h.post(t, "application/json", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusConflict, "already used")
}

func TestCallbackRejectsExpiredDelegation(t *testing.T) {
	h := startCallbackServer(t)

	payload := h.validPayload()
	payload.ExpirationNs = delegation.Uint64(uint64(h.clock.Now().UnixNano()))
	response := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, payload))
	requireStatusAndBody(t, response, http.StatusBadRequest, "Delegation already expired")
}

func TestCallbackRejectsForeignSessionKey(t *testing.T) {
	h := startCallbackServer(t)

	other, err := identity.GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey: %v", err)
	}
	payload := h.validPayload()
	payload.SessionPublicKey = delegation.ByteList(other.PublicKeyDER)
	response := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, payload))
	requireStatusAndBody(t, response, http.StatusBadRequest, "Session key mismatch")
}

func TestCallbackRejectsDerivationOriginMismatch(t *testing.T) {
	h := startCallbackServer(t)

	payload := h.validPayload()
	payload.DerivationOrigin = "https://other.example"
	response := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, payload))
	requireStatusAndBody(t, response, http.StatusBadRequest, "Derivation origin mismatch")
}

func TestCallbackAcceptsAnyDerivationOriginWhenUnconfigured(t *testing.T) {
	h := startCallbackServerExpecting(t, "")

	// The provider page always reports its derivation origin; the
	// default configuration takes it as-is.
	response := h.post(t, "application/json", testProviderOrigin, h.encrypt(t, h.validPayload()))
	requireStatusAndBody(t, response, http.StatusOK, "ok")

	result := testutil.RequireReceive(t, h.server.Result(), 5*time.Second, "callback result")
	if result.Payload.DerivationOrigin != testDerivationOrigin {
		t.Fatalf("derivation origin %q, want %q", result.Payload.DerivationOrigin, testDerivationOrigin)
	}
}

func TestCallbackConcurrentRequestsOneWinner(t *testing.T) {
	h := startCallbackServer(t)

	const attempts = 8
	statuses := make(chan int, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		body := h.encrypt(t, h.validPayload())
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			request, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(body))
			if err != nil {
				t.Errorf("building request: %v", err)
				return
			}
			request.Header.Set("Content-Type", "application/json")
			request.Header.Set("Origin", testProviderOrigin)
			response, err := http.DefaultClient.Do(request)
			if err != nil {
				t.Errorf("posting callback: %v", err)
				return
			}
			io.Copy(io.Discard, response.Body)
			response.Body.Close()
			statuses <- response.StatusCode
		}()
	}
	close(start)
	wg.Wait()
	close(statuses)

	oks, conflicts := 0, 0
	for status := range statuses {
		switch status {
		case http.StatusOK:
			oks++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	if oks != 1 {
		t.Fatalf("%d successful callbacks, want exactly 1", oks)
	}
	if conflicts != attempts-1 {
		t.Fatalf("%d conflicts, want %d", conflicts, attempts-1)
	}

	testutil.RequireReceive(t, h.server.Result(), 5*time.Second, "single result")
	select {
	case extra := <-h.server.Result():
		t.Fatalf("second result delivered: %+v", extra)
	default:
	}
}

func TestCallbackPreflight(t *testing.T) {
	h := startCallbackServer(t)

	request, err := http.NewRequest(http.MethodOptions, h.url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	request.Header.Set("Origin", testProviderOrigin)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d, want 204", response.StatusCode)
	}
	if got := response.Header.Get("Access-Control-Allow-Origin"); got != testProviderOrigin {
		t.Fatalf("Access-Control-Allow-Origin %q", got)
	}
	if got := response.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("Access-Control-Allow-Methods %q", got)
	}
}

func TestServeFixedPortConflict(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	handshakeKey, err := GenerateHandshakeKey()
	if err != nil {
		t.Fatalf("GenerateHandshakeKey: %v", err)
	}
	server := NewCallbackServer(CallbackServerConfig{
		Port:         port,
		HandshakeKey: handshakeKey,
		Logger:       discardLogger(),
	})

	err = server.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve succeeded on an occupied port")
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("port %d is already in use", port)) {
		t.Fatalf("error %q lacks the port-in-use hint", err)
	}
}
