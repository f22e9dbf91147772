// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed decrypts age-encrypted credential bundles. Burrow
// stores tenant credentials at rest as age ciphertext; the container
// runner decrypts the bundle with the host's x25519 identity at mount
// time and never writes the plaintext anywhere but the per-run
// credentials file.
//
// Private keys and decrypted plaintext live in secret.Buffer values
// (mmap-backed, locked against swap, zeroed on close).
package sealed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/burrow-systems/burrow/lib/secret"
)

// LoadIdentity reads an age x25519 identity (AGE-SECRET-KEY-1...) from
// a file into a protected buffer and validates it. The caller must
// Close the returned buffer.
func LoadIdentity(path string) (*secret.Buffer, error) {
	identity, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading age identity: %w", err)
	}
	if _, err := age.ParseX25519Identity(identity.String()); err != nil {
		identity.Close()
		return nil, fmt.Errorf("invalid age identity in %s: %w", path, err)
	}
	return identity, nil
}

// Decrypt decrypts age ciphertext with the given identity. The
// identity buffer is borrowed, not closed. The plaintext is returned
// in a protected buffer that the caller must Close.
func Decrypt(ciphertext []byte, identityKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(identityKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("decrypted bundle is empty")
	}

	// NewFromBytes zeros the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}

// DecryptFile reads an age-encrypted file and decrypts it with the
// given identity. The caller must Close the returned buffer.
func DecryptFile(path string, identityKey *secret.Buffer) (*secret.Buffer, error) {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sealed bundle: %w", err)
	}
	return Decrypt(ciphertext, identityKey)
}
