// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventarchive

import (
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// ParseRecipients parses age X25519 public keys.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("eventarchive: parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// ParseIdentities reads age identities in the standard key file
// format: one AGE-SECRET-KEY-1... per line, # comments allowed.
func ParseIdentities(source io.Reader) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(source)
	if err != nil {
		return nil, fmt.Errorf("eventarchive: parsing identities: %w", err)
	}
	return identities, nil
}

// GenerateIdentity returns a new X25519 secret key and its public
// recipient string.
func GenerateIdentity() (secretKey, recipient string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("eventarchive: generating identity: %w", err)
	}
	return identity.String(), identity.Recipient().String(), nil
}
