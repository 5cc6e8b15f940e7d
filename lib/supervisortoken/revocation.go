// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisortoken

import (
	"sync"
	"time"
)

// Revocations is a concurrency-safe set of revoked token ids. Each
// entry is kept until the token would have expired anyway.
type Revocations struct {
	mu      sync.RWMutex
	entries map[string]time.Time // id -> token expiry
}

// NewRevocations returns an empty set.
func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time)}
}

// Revoke adds id, remembering the token's natural expiry.
func (r *Revocations) Revoke(id string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = expiresAt
}

// IsRevoked reports whether id was revoked.
func (r *Revocations) IsRevoked(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, revoked := r.entries[id]
	return revoked
}

// Cleanup drops entries whose token has expired by now and returns how
// many were removed.
func (r *Revocations) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries.
func (r *Revocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
