// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presencestore

import (
	"context"
	"os"
	"testing"

	"github.com/bureau-foundation/presence/lib/presence"
)

// The Postgres run shares one database across subtests; testIDs keeps
// their rows apart.
func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("PRESENCE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set PRESENCE_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	store, err := OpenPostgres(context.Background(), dsn, nil)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Migrations must be safe to run twice.
	if err := store.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	runConformance(t, func(t *testing.T) presence.Store { return store })
}
