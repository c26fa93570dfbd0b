// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/humandebri/kinic-cli/lib/clock"
	"github.com/humandebri/kinic-cli/lib/delegation"
	"github.com/humandebri/kinic-cli/lib/principal"
	"github.com/humandebri/kinic-cli/lib/spki"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeStored builds a persisted identity with one delegation signed by
// a fresh Ed25519 root key. The user public key is stored in raw form
// to exercise re-normalization on load.
func makeStored(t *testing.T, expirationNs uint64) (*Stored, principal.Principal) {
	t.Helper()

	rootPublic, rootPrivate, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating root key: %v", err)
	}
	rootDER, err := spki.Normalize(rootPublic)
	if err != nil {
		t.Fatalf("normalizing root key: %v", err)
	}

	session, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey error: %v", err)
	}

	entry := delegation.Signed{
		Delegation: delegation.Delegation{
			Pubkey:     delegation.ByteList(session.PublicKeyDER),
			Expiration: delegation.Uint64(expirationNs),
		},
	}
	entry.Signature = delegation.ByteList(ed25519.Sign(rootPrivate, delegation.Signable(entry.Delegation)))

	stored := &Stored{
		Version:          StoredVersion,
		IdentityProvider: "https://id.ai/#authorize",
		UserPublicKeyHex: hex.EncodeToString(rootPublic), // raw, not DER
		SessionPKCS8Hex:  hex.EncodeToString(session.PKCS8),
		Delegations:      []delegation.Signed{entry},
		ExpirationNs:     expirationNs,
		CreatedAtNs:      1,
	}
	return stored, principal.SelfAuthenticating(rootDER)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiration := uint64(now.Add(6 * time.Hour).UnixNano())
	stored, wantPrincipal := makeStored(t, expiration)

	path := filepath.Join(t.TempDir(), "deep", "nested", "identity.json")
	if err := Save(path, stored); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat identity file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("identity file permissions = %o, want 600", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after Save")
	}

	loaded, err := Load(path, clock.Fake(now), discardLogger())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !loaded.Sender().Equal(wantPrincipal) {
		t.Errorf("Sender = %s, want %s", loaded.Sender(), wantPrincipal)
	}
	if loaded.ExpirationNs() != expiration {
		t.Errorf("ExpirationNs = %d, want %d", loaded.ExpirationNs(), expiration)
	}
	if len(loaded.Delegations()) != 1 {
		t.Fatalf("got %d delegations, want 1", len(loaded.Delegations()))
	}
}

func TestSaveOverwritesWhole(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiration := uint64(now.Add(time.Hour).UnixNano())

	path := filepath.Join(t.TempDir(), "identity.json")
	first, _ := makeStored(t, expiration)
	if err := Save(path, first); err != nil {
		t.Fatalf("first Save error: %v", err)
	}

	second, wantPrincipal := makeStored(t, expiration)
	if err := Save(path, second); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	loaded, err := Load(path, clock.Fake(now), discardLogger())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !loaded.Sender().Equal(wantPrincipal) {
		t.Error("Load returned the first identity after a full overwrite")
	}
}

func TestLoadExpired(t *testing.T) {
	expiration := uint64(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	stored, _ := makeStored(t, expiration)

	path := filepath.Join(t.TempDir(), "identity.json")
	if err := Save(path, stored); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// 1 ns past the expiration is already too late.
	justPast := time.Unix(0, int64(expiration)).Add(time.Nanosecond)
	_, err := Load(path, clock.Fake(justPast), discardLogger())
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Load error = %v, want ErrExpired", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	_, err := Load(path, clock.Fake(time.Unix(0, 0)), discardLogger())
	if err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
	if !strings.Contains(err.Error(), "kinic login") {
		t.Errorf("missing-file error %q does not direct the user to login", err)
	}
}

func TestLoadRejectsTamperedChain(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiration := uint64(now.Add(time.Hour).UnixNano())
	stored, _ := makeStored(t, expiration)

	// Flip a signature byte. The Ed25519 root allows local
	// verification, so the tamper must be caught at load.
	stored.Delegations[0].Signature[0] ^= 0x01

	path := filepath.Join(t.TempDir(), "identity.json")
	if err := Save(path, stored); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if _, err := Load(path, clock.Fake(now), discardLogger()); err == nil {
		t.Error("Load accepted a tampered delegation signature")
	}
}

func TestSignVerifiesWithSessionKey(t *testing.T) {
	session, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey error: %v", err)
	}

	message := []byte("request body")
	signature := session.Sign(message)

	sessionRaw, err := spki.RawKey(session.PublicKeyDER)
	if err != nil {
		t.Fatalf("RawKey error: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(sessionRaw), message, signature) {
		t.Error("session signature did not verify against the session public key")
	}
}

func TestGenerateSessionKeyUnique(t *testing.T) {
	first, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey error: %v", err)
	}
	second, err := GenerateSessionKey()
	if err != nil {
		t.Fatalf("GenerateSessionKey error: %v", err)
	}
	if hex.EncodeToString(first.PKCS8) == hex.EncodeToString(second.PKCS8) {
		t.Error("two generated session keys are identical")
	}
}
