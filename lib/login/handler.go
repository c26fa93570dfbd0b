// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/humandebri/kinic-cli/lib/principal"
	"github.com/humandebri/kinic-cli/lib/spki"
)

// handleOptions answers the browser's CORS pre-flight for the
// cross-origin POST.
func (s *CallbackServer) handleOptions(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, http.StatusNoContent, "")
}

// handleCallback validates and consumes one login callback. The
// checks short-circuit in a fixed order — size, content type, origin,
// JSON shape, nonce, single-use slot, decryption, payload bindings —
// and each failure answers immediately without touching later state.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxCallbackBodyBytes {
		s.writeResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes))
	if err != nil {
		s.writeResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	if !isJSONContentType(r.Header.Get("Content-Type")) {
		s.writeResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && origin != s.config.ExpectedOrigin {
		s.logReject(r, "origin mismatch")
		s.writeResponse(w, http.StatusForbidden, "Invalid origin")
		return
	}

	var request CallbackRequest
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if request.Nonce != s.config.ExpectedNonce {
		s.logReject(r, "nonce mismatch")
		s.writeResponse(w, http.StatusBadRequest, "Invalid nonce")
		return
	}

	// First callback wins. Everyone else — even structurally valid
	// requests — lands here once the slot is consumed.
	handshakeKey, deliver, ok := s.slot.take()
	if !ok {
		s.logReject(r, "callback already used")
		s.writeResponse(w, http.StatusConflict, "Callback already used")
		return
	}

	payload, err := decryptPayload(handshakeKey, &request)
	if err != nil {
		// One opaque message for every decryption failure.
		s.writeResponse(w, http.StatusBadRequest, "Failed to decrypt payload")
		return
	}

	derivedPrincipal, reason, ok := s.validatePayload(payload)
	if !ok {
		s.logReject(r, reason)
		s.writeResponse(w, http.StatusBadRequest, reason)
		return
	}

	deliver <- Result{Payload: payload, Principal: derivedPrincipal}

	responseBody, _ := json.Marshal(map[string]string{
		"status":    "ok",
		"principal": derivedPrincipal.Text(),
	})
	s.writeResponse(w, http.StatusOK, string(responseBody))
}

// validatePayload checks the decrypted payload's bindings to this
// attempt. Returns the derived principal on success, or a reason
// string safe to put in the HTTP response (never key material).
func (s *CallbackServer) validatePayload(payload *BrowserPayload) (principal.Principal, string, bool) {
	sessionKey, err := spki.Normalize(payload.SessionPublicKey)
	if err != nil || !bytes.Equal(sessionKey, s.config.SessionPublicKeyDER) {
		return principal.Principal{}, "Session key mismatch", false
	}

	// An empty expectation accepts whatever origin the provider
	// reports; a configured one must match exactly.
	if s.config.ExpectedDerivationOrigin != "" && payload.DerivationOrigin != s.config.ExpectedDerivationOrigin {
		return principal.Principal{}, "Derivation origin mismatch", false
	}

	now := uint64(s.config.Clock.Now().UnixNano())
	if uint64(payload.ExpirationNs) <= now {
		return principal.Principal{}, "Delegation already expired", false
	}

	userKey, err := spki.Normalize(payload.UserPublicKey)
	if err != nil {
		return principal.Principal{}, "Invalid public key", false
	}

	return principal.SelfAuthenticating(userKey), "", true
}

// writeResponse writes a response with the origin-scoped CORS headers
// every callback answer carries. Bodies that look like JSON are
// served as such; plain reasons go out as text.
func (s *CallbackServer) writeResponse(w http.ResponseWriter, status int, body string) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", s.config.ExpectedOrigin)
	header.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "content-type")
	if body != "" {
		if strings.HasPrefix(body, "{") {
			header.Set("Content-Type", "application/json")
		} else {
			header.Set("Content-Type", "text/plain; charset=utf-8")
		}
	}
	w.WriteHeader(status)
	if body != "" {
		fmt.Fprintln(w, body)
	}
}

// logReject records a rejected callback without any payload detail.
func (s *CallbackServer) logReject(r *http.Request, reason string) {
	s.config.Logger.Warn("callback rejected",
		"reason", reason,
		"remote", r.RemoteAddr,
	)
}

// isJSONContentType accepts exactly the JSON media type, ignoring
// parameters such as charset.
func isJSONContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, "application/json")
}
