// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"log/slog"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/statuswatch"
	"github.com/bureau-foundation/presence/lib/supervisortoken"
)

// presenceService holds what the HTTP handlers and socket actions
// share. The tracker carries all presence state; everything else here
// is authentication and bookkeeping.
type presenceService struct {
	tracker *presence.Tracker
	clock   clock.Clock

	// publicKey verifies dashboard bearer tokens. privateKey signs
	// tokens minted over the admin socket.
	publicKey   ed25519.PublicKey
	privateKey  ed25519.PrivateKey
	revocations *supervisortoken.Revocations
	tokenTTL    time.Duration

	broadcaster *statuswatch.Broadcaster

	startedAt time.Time
	logger    *slog.Logger
}
