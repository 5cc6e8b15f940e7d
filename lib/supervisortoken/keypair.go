// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisortoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "supervisor-signing-key"
	publicKeyFile  = "supervisor-signing-key.pub"
)

// GenerateKeypair creates a new signing keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// SaveKeypair writes the keypair into directory. The private key file
// is 0600.
func SaveKeypair(directory string, public ed25519.PublicKey, private ed25519.PrivateKey) error {
	if err := os.WriteFile(filepath.Join(directory, privateKeyFile), private, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(directory, publicKeyFile), public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// LoadKeypair reads the keypair from directory.
func LoadKeypair(directory string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	privateBytes, err := os.ReadFile(filepath.Join(directory, privateKeyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
	}
	public, err := LoadPublicKey(filepath.Join(directory, publicKeyFile))
	if err != nil {
		return nil, nil, err
	}
	return public, ed25519.PrivateKey(privateBytes), nil
}

// LoadPublicKey reads a public key file on its own, for processes
// that verify but never mint.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	publicBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes, want %d", len(publicBytes), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(publicBytes), nil
}

// LoadOrGenerateKeypair loads the keypair from directory, creating one
// if neither file exists. A present but unreadable key is an error,
// never silently replaced. generated reports whether a new key was
// written.
func LoadOrGenerateKeypair(directory string) (public ed25519.PublicKey, private ed25519.PrivateKey, generated bool, err error) {
	public, private, err = LoadKeypair(directory)
	if err == nil {
		return public, private, false, nil
	}
	if _, statErr := os.Stat(filepath.Join(directory, privateKeyFile)); !errors.Is(statErr, fs.ErrNotExist) {
		return nil, nil, false, err
	}

	public, private, err = GenerateKeypair()
	if err != nil {
		return nil, nil, false, err
	}
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, nil, false, fmt.Errorf("creating key directory: %w", err)
	}
	if err := SaveKeypair(directory, public, private); err != nil {
		return nil, nil, false, err
	}
	return public, private, true, nil
}
