// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// crockford is Crockford's base32 alphabet: no I, L, O or U, so keys
// survive being read aloud or copied from a screenshot.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// activationKeyGroups and activationKeyGroupSize give 60 random bits.
const (
	activationKeyGroups    = 3
	activationKeyGroupSize = 4
)

// NewActivationKey returns a fresh key of the form KEY-XXXX-XXXX-XXXX.
func NewActivationKey() (string, error) {
	random := make([]byte, activationKeyGroups*activationKeyGroupSize)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generating activation key: %w", err)
	}

	var builder strings.Builder
	builder.WriteString("KEY")
	for group := 0; group < activationKeyGroups; group++ {
		builder.WriteByte('-')
		for index := 0; index < activationKeyGroupSize; index++ {
			builder.WriteByte(crockford[random[group*activationKeyGroupSize+index]&31])
		}
	}
	return builder.String(), nil
}

// NormalizeActivationKey trims whitespace and upper-cases the key.
// Keys are opaque, so no other validation happens here: an unknown key
// is reported by lookup, not by format.
func NormalizeActivationKey(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
