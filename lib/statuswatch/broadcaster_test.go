// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statuswatch

import (
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/testutil"
)

func change(company, employee string, from, to presence.Status) presence.StatusChange {
	return presence.StatusChange{
		CompanyID:  company,
		EmployeeID: employee,
		From:       from,
		To:         to,
		Cause:      presence.CauseEvent,
	}
}

func TestBroadcasterScopesByCompany(t *testing.T) {
	broadcaster := NewBroadcaster(nil)
	acme := broadcaster.Subscribe("acme", 4)
	defer acme.Close()
	globex := broadcaster.Subscribe("globex", 4)
	defer globex.Close()
	everyone := broadcaster.Subscribe(AllCompanies, 4)
	defer everyone.Close()

	broadcaster.Publish(change("acme", "ada", presence.StatusOffline, presence.StatusPresent))

	got := testutil.RequireReceive(t, acme.C, 5*time.Second, "acme subscriber")
	if got.EmployeeID != "ada" {
		t.Errorf("acme received %+v", got)
	}
	testutil.RequireReceive(t, everyone.C, 5*time.Second, "all-companies subscriber")
	testutil.RequireNoReceive(t, globex.C, "globex must not see acme changes")
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	broadcaster := NewBroadcaster(nil)
	subscription := broadcaster.Subscribe("acme", 1)
	defer subscription.Close()

	broadcaster.Publish(change("acme", "ada", presence.StatusOffline, presence.StatusPresent))
	broadcaster.Publish(change("acme", "ada", presence.StatusPresent, presence.StatusAway))

	if !subscription.Lagged() {
		t.Error("Lagged() = false after overflow")
	}
	if subscription.Lagged() {
		t.Error("Lagged() did not reset")
	}
	first := testutil.RequireReceive(t, subscription.C, 5*time.Second, "buffered change")
	if first.To != presence.StatusPresent {
		t.Errorf("kept change = %+v, want the first one", first)
	}
	published, dropped := broadcaster.Stats()
	if published != 2 || dropped != 1 {
		t.Errorf("Stats = %d published %d dropped, want 2 and 1", published, dropped)
	}
}

func TestSubscriptionClose(t *testing.T) {
	broadcaster := NewBroadcaster(nil)
	subscription := broadcaster.Subscribe("acme", 1)
	subscription.Close()
	subscription.Close()

	testutil.RequireClosed(t, subscription.C, 5*time.Second, "closed subscription")

	// Publishing after close must not panic on the closed channel.
	broadcaster.Publish(change("acme", "ada", presence.StatusOffline, presence.StatusPresent))
}
