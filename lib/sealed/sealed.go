// Copyright 2026 The Kinic Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/humandebri/kinic-cli/lib/secret"
)

// minPassphraseBytes rejects passphrases too short to slow an
// offline guesser even with scrypt in front.
const minPassphraseBytes = 8

// Seal encrypts plaintext under a passphrase and returns the
// ciphertext as a standard base64 string. The passphrase is borrowed
// from the secret.Buffer and NOT closed by this function.
func Seal(plaintext []byte, passphrase *secret.Buffer) (string, error) {
	if passphrase.Len() < minPassphraseBytes {
		return "", fmt.Errorf("passphrase must be at least %d bytes", minPassphraseBytes)
	}

	// age.NewScryptRecipient requires a string. The heap copy is
	// brief and call-scoped; the mmap buffer remains the durable one.
	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return "", fmt.Errorf("building scrypt recipient: %w", err)
	}

	var ciphertextBuffer bytes.Buffer
	writer, err := age.Encrypt(&ciphertextBuffer, recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertextBuffer.Bytes()), nil
}

// Open decrypts a base64-encoded sealed export with its passphrase
// and returns the plaintext in a secret.Buffer (mmap-backed, zeroed
// on close). The passphrase is borrowed and NOT closed.
//
// The caller must Close the returned buffer when done.
func Open(ciphertext string, passphrase *secret.Buffer) (*secret.Buffer, error) {
	scryptIdentity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("building scrypt identity: %w", err)
	}

	rawCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(rawCiphertext), scryptIdentity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed export is empty")
	}

	// Move the plaintext into mmap-backed memory immediately;
	// NewFromBytes zeros the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}
