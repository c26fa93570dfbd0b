// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/humandebri/kinic-cli/lib/clock"
	"github.com/humandebri/kinic-cli/lib/delegation"
	"github.com/humandebri/kinic-cli/lib/spki"
)

// Stored is the persisted identity file layout. Byte-level fields are
// hex strings; delegations keep the provider's integer-array JSON form
// so files written by earlier CLI releases load unchanged.
type Stored struct {
	Version          int                 `json:"version"`
	IdentityProvider string              `json:"identity_provider"`
	UserPublicKeyHex string              `json:"user_public_key_hex"`
	SessionPKCS8Hex  string              `json:"session_pkcs8_hex"`
	Delegations      []delegation.Signed `json:"delegations"`
	ExpirationNs     uint64              `json:"expiration_ns"`
	CreatedAtNs      uint64              `json:"created_at_ns"`
}

// StoredVersion is the current identity file format version.
const StoredVersion = 1

// ErrExpired marks a persisted credential whose delegation chain has
// lapsed. Test with errors.Is; the user must re-run login.
var ErrExpired = errors.New("stored identity has expired")

// DefaultPath returns the identity file location. Checks the
// KINIC_IDENTITY_FILE environment variable first, then falls back to
// ~/.config/kinic/identity.json (honoring XDG_CONFIG_HOME).
func DefaultPath() string {
	if envPath := os.Getenv("KINIC_IDENTITY_FILE"); envPath != "" {
		return envPath
	}

	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			// Fallback — this should rarely happen.
			return filepath.Join("/tmp", "kinic-identity.json")
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, "kinic", "identity.json")
}

// Save writes the identity file atomically with owner-only
// permissions: temporary sibling, chmod 0600, write, fsync, rename
// into place, fsync the parent directory. The final path is never
// written directly, so a crash mid-write cannot corrupt or partially
// expose an existing credential.
func Save(path string, stored *Stored) error {
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating identity directory %s: %w", directory, err)
	}

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary identity file: %w", err)
	}

	// Write, sync, close — in that order. If any step fails, remove
	// the temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary identity file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary identity file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary identity file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming identity file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// between the rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(directory)
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Load reads and validates a persisted identity. Keys are
// re-normalized to canonical DER form, the delegation chain is
// verified locally where the root key's algorithm allows it (a warning
// is logged otherwise), and an expired credential fails with
// ErrExpired before anything else is returned. Load never mutates the
// file.
func Load(path string, clk clock.Clock, logger *slog.Logger) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no identity found at %s — run \"kinic login\" first", path)
		}
		return nil, fmt.Errorf("reading identity file %s: %w", path, err)
	}

	var stored Stored
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}

	now := uint64(clk.Now().UnixNano())
	if now >= stored.ExpirationNs {
		return nil, fmt.Errorf("%w — run \"kinic login\" to re-authenticate", ErrExpired)
	}

	return FromStored(&stored, logger)
}

// FromStored builds the identity handle from a parsed identity
// record, re-normalizing every stored key. Expiry is the caller's
// concern; Load checks it before calling here.
func FromStored(stored *Stored, logger *slog.Logger) (*Identity, error) {
	userKeyRaw, err := hex.DecodeString(stored.UserPublicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding user public key: %w", err)
	}
	userKeyDER, err := spki.Normalize(userKeyRaw)
	if err != nil {
		return nil, fmt.Errorf("unsupported user public key format: %w", err)
	}

	pkcs8, err := hex.DecodeString(stored.SessionPKCS8Hex)
	if err != nil {
		return nil, fmt.Errorf("decoding session key: %w", err)
	}
	session, err := parseSessionKey(pkcs8)
	if err != nil {
		return nil, err
	}

	chain := make([]delegation.Signed, len(stored.Delegations))
	for index, entry := range stored.Delegations {
		normalized, err := spki.Normalize(entry.Delegation.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("delegation %d: unsupported public key format: %w", index, err)
		}
		chain[index] = entry
		chain[index].Delegation.Pubkey = delegation.ByteList(normalized)
	}

	if reason, skip := delegation.SkipLocalVerification(userKeyDER); skip {
		logger.Warn(reason)
	} else if err := delegation.Verify(chain, userKeyDER); err != nil {
		return nil, fmt.Errorf("delegation chain rejected: %w", err)
	}

	return newIdentity(userKeyDER, session, chain, stored.ExpirationNs), nil
}
