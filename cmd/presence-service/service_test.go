// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presencestore"
	"github.com/bureau-foundation/presence/lib/statuswatch"
	"github.com/bureau-foundation/presence/lib/supervisortoken"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newTestService builds a presenceService over an in-memory store and
// a fake clock.
func newTestService(t *testing.T) (*presenceService, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(epoch)
	store := presencestore.NewMemory()
	t.Cleanup(func() { store.Close() })

	broadcaster := statuswatch.NewBroadcaster(nil)
	tracker, err := presence.NewTracker(presence.TrackerConfig{
		Store: store,
		Clock: fakeClock,
		Sink:  broadcaster,
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	publicKey, privateKey, err := supervisortoken.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	return &presenceService{
		tracker:     tracker,
		clock:       fakeClock,
		publicKey:   publicKey,
		privateKey:  privateKey,
		revocations: supervisortoken.NewRevocations(),
		tokenTTL:    time.Hour,
		broadcaster: broadcaster,
		startedAt:   epoch,
		logger:      slog.New(slog.DiscardHandler),
	}, fakeClock
}

// createEmployee provisions an employee directly through the tracker.
func createEmployee(t *testing.T, svc *presenceService, companyID, name string) presence.Employee {
	t.Helper()
	employee, err := svc.tracker.CreateEmployee(context.Background(), companyID, name, "")
	if err != nil {
		t.Fatalf("CreateEmployee(%s, %s): %v", companyID, name, err)
	}
	return employee
}

// mintToken signs a supervisor token with the service's key.
func mintToken(t *testing.T, svc *presenceService, companyID string, superAdmin bool) (string, *supervisortoken.Token) {
	t.Helper()
	token := supervisortoken.New("supervisor@example.com", companyID, superAdmin, svc.clock.Now(), time.Hour)
	encoded, err := supervisortoken.MintString(svc.privateKey, token)
	if err != nil {
		t.Fatalf("MintString: %v", err)
	}
	return encoded, token
}
