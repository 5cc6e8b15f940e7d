// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statuswatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presencestore"
	"github.com/bureau-foundation/presence/lib/statuswatch"
	"github.com/bureau-foundation/presence/lib/testutil"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock       *clock.FakeClock
	tracker     *presence.Tracker
	broadcaster *statuswatch.Broadcaster
	sweeper     *statuswatch.Sweeper
	changes     *statuswatch.Subscription
	employee    presence.Employee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: clock.Fake(start), broadcaster: statuswatch.NewBroadcaster(nil)}
	tracker, err := presence.NewTracker(presence.TrackerConfig{
		Store: presencestore.NewMemory(),
		Clock: f.clock,
		Sink:  f.broadcaster,
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	f.tracker = tracker
	f.sweeper, err = statuswatch.NewSweeper(statuswatch.SweeperConfig{
		Source:   tracker,
		Clock:    f.clock,
		Sink:     f.broadcaster,
		Interval: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	f.changes = f.broadcaster.Subscribe("acme", 16)
	t.Cleanup(f.changes.Close)

	f.employee, err = tracker.CreateEmployee(context.Background(), "acme", "Ada", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if _, err := tracker.Activate(context.Background(), f.employee.ActivationKey, "hw-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return f
}

func (f *fixture) heartbeat(t *testing.T, status presence.ReportedStatus) {
	t.Helper()
	if _, err := f.tracker.RecordHeartbeat(context.Background(), f.employee.ActivationKey, status, time.Time{}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
}

func (f *fixture) sweep(t *testing.T) {
	t.Helper()
	if err := f.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
}

func TestSweeperPublishesTimeouts(t *testing.T) {
	f := newFixture(t)

	f.heartbeat(t, presence.ReportPresent)
	event := testutil.RequireReceive(t, f.changes.C, 5*time.Second, "event-caused change")
	if event.Cause != presence.CauseEvent {
		t.Errorf("first change cause = %s, want event", event.Cause)
	}

	f.sweep(t) // baseline: present
	testutil.RequireNoReceive(t, f.changes.C, "baseline sweep publishes nothing")

	f.clock.Advance(11 * time.Second)
	f.sweep(t)
	away := testutil.RequireReceive(t, f.changes.C, 5*time.Second, "present -> away")
	if away.From != presence.StatusPresent || away.To != presence.StatusAway || away.Cause != presence.CauseTimeout {
		t.Errorf("timeout change = %+v", away)
	}
	if away.EmployeeName != "Ada" {
		t.Errorf("EmployeeName = %q, want Ada", away.EmployeeName)
	}

	f.clock.Advance(50 * time.Second)
	f.sweep(t)
	offline := testutil.RequireReceive(t, f.changes.C, 5*time.Second, "away -> offline")
	if offline.From != presence.StatusAway || offline.To != presence.StatusOffline {
		t.Errorf("timeout change = %+v", offline)
	}

	f.sweep(t)
	testutil.RequireNoReceive(t, f.changes.C, "steady state publishes nothing")
}

func TestSweeperSkipsEventCausedChanges(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, presence.ReportPresent)
	testutil.RequireReceive(t, f.changes.C, 5*time.Second, "offline -> present")
	f.sweep(t)

	f.clock.Advance(time.Second)
	f.heartbeat(t, presence.ReportAway)
	byEvent := testutil.RequireReceive(t, f.changes.C, 5*time.Second, "present -> away from event")
	if byEvent.Cause != presence.CauseEvent {
		t.Errorf("cause = %s, want event", byEvent.Cause)
	}

	f.sweep(t)
	testutil.RequireNoReceive(t, f.changes.C, "sweeper must not republish an event-caused change")
}

func TestSweeperPublishesExpiryBetweenSweeps(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, presence.ReportPresent)
	testutil.RequireReceive(t, f.changes.C, 5*time.Second, "offline -> present")
	f.sweep(t)

	// Away at start+10s, back before the next sweep sees it.
	f.clock.Advance(12 * time.Second)
	f.heartbeat(t, presence.ReportPresent)
	back := testutil.RequireReceive(t, f.changes.C, 5*time.Second, "away -> present from event")
	if back.From != presence.StatusAway || back.To != presence.StatusPresent || back.Cause != presence.CauseEvent {
		t.Errorf("event change = %+v", back)
	}

	f.clock.Advance(time.Second)
	f.sweep(t)
	missed := testutil.RequireReceive(t, f.changes.C, 5*time.Second, "present -> away between sweeps")
	if missed.From != presence.StatusPresent || missed.To != presence.StatusAway || missed.Cause != presence.CauseTimeout {
		t.Errorf("replayed change = %+v", missed)
	}
	if want := start.Add(10 * time.Second); !missed.At.Equal(want) {
		t.Errorf("replayed change at %v, want %v", missed.At, want)
	}
	testutil.RequireNoReceive(t, f.changes.C, "only the expiry is replayed")

	f.sweep(t)
	testutil.RequireNoReceive(t, f.changes.C, "steady state publishes nothing")
}

type failingSource struct{}

func (failingSource) Policy() presence.Policy { return presence.DefaultPolicy() }

func (failingSource) Events(context.Context, string, presence.EventQuery) ([]presence.Event, error) {
	return nil, errors.New("store down")
}

func (failingSource) Companies(context.Context) ([]string, error) {
	return nil, errors.New("store down")
}

func (failingSource) ListStatuses(context.Context, string) ([]presence.EmployeeStatus, error) {
	return nil, errors.New("store down")
}

func TestSweeperRunSurvivesErrors(t *testing.T) {
	fake := clock.Fake(start)
	sweeper, err := statuswatch.NewSweeper(statuswatch.SweeperConfig{
		Source:   failingSource{},
		Clock:    fake,
		Sink:     statuswatch.NewBroadcaster(nil),
		Interval: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	fake.WaitForTimers(1)
	cancel()

	err = testutil.RequireReceive(t, done, 5*time.Second, "Run returns after cancel")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestNewSweeperValidates(t *testing.T) {
	if _, err := statuswatch.NewSweeper(statuswatch.SweeperConfig{}); err == nil {
		t.Error("NewSweeper with empty config succeeded")
	}
}
