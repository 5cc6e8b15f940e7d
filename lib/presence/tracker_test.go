// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presencestore"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	tracker *presence.Tracker
	store   presence.Store
	clock   *clock.FakeClock

	mu      sync.Mutex
	changes []presence.StatusChange
}

func newHarness(t *testing.T, store presence.Store) *harness {
	t.Helper()
	h := &harness{store: store, clock: clock.Fake(start)}
	tracker, err := presence.NewTracker(presence.TrackerConfig{
		Store: store,
		Clock: h.clock,
		Sink: presence.SinkFunc(func(change presence.StatusChange) {
			h.mu.Lock()
			h.changes = append(h.changes, change)
			h.mu.Unlock()
		}),
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	h.tracker = tracker
	t.Cleanup(func() { store.Close() })
	return h
}

func newMemoryHarness(t *testing.T) *harness {
	return newHarness(t, presencestore.NewMemory())
}

func (h *harness) published() []presence.StatusChange {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]presence.StatusChange(nil), h.changes...)
}

// activeEmployee creates and activates an employee in company.
func (h *harness) activeEmployee(t *testing.T, company, name, hardware string) presence.Employee {
	t.Helper()
	employee, err := h.tracker.CreateEmployee(context.Background(), company, name, "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if _, err := h.tracker.Activate(context.Background(), employee.ActivationKey, hardware); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return employee
}

func (h *harness) status(t *testing.T, employee presence.Employee) presence.Status {
	t.Helper()
	status, err := h.tracker.Status(context.Background(), employee.CompanyID, employee.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	return status.Status
}

func TestNewTrackerRequiresStoreAndClock(t *testing.T) {
	if _, err := presence.NewTracker(presence.TrackerConfig{Clock: clock.Fake(start)}); err == nil {
		t.Error("NewTracker without Store succeeded")
	}
	if _, err := presence.NewTracker(presence.TrackerConfig{Store: presencestore.NewMemory()}); err == nil {
		t.Error("NewTracker without Clock succeeded")
	}
	_, err := presence.NewTracker(presence.TrackerConfig{
		Store:  presencestore.NewMemory(),
		Clock:  clock.Fake(start),
		Policy: presence.Policy{AwayTimeout: time.Minute, OfflineTimeout: time.Second},
	})
	if err == nil {
		t.Error("NewTracker with offline <= away succeeded")
	}
}

func TestCreateEmployee(t *testing.T) {
	h := newMemoryHarness(t)

	employee, err := h.tracker.CreateEmployee(context.Background(), "acme", "  Ada  ", "Engineering")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if employee.ID == "" || employee.ActivationKey == "" {
		t.Fatalf("CreateEmployee returned %+v", employee)
	}
	if employee.Name != "Ada" {
		t.Errorf("Name = %q, want trimmed Ada", employee.Name)
	}
	if employee.State() != presence.LifecycleInvited {
		t.Errorf("State = %s, want invited", employee.State())
	}

	if _, err := h.tracker.CreateEmployee(context.Background(), "", "Ada", ""); !errors.Is(err, presence.ErrInvalidRequest) {
		t.Errorf("CreateEmployee without company = %v, want ErrInvalidRequest", err)
	}
	if _, err := h.tracker.CreateEmployee(context.Background(), "acme", " ", ""); !errors.Is(err, presence.ErrInvalidRequest) {
		t.Errorf("CreateEmployee without name = %v, want ErrInvalidRequest", err)
	}
}

func TestActivateIdempotent(t *testing.T) {
	h := newMemoryHarness(t)
	employee, err := h.tracker.CreateEmployee(context.Background(), "acme", "Ada", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	first, err := h.tracker.Activate(context.Background(), employee.ActivationKey, "hw-1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	h.clock.Advance(time.Hour)
	second, err := h.tracker.Activate(context.Background(), employee.ActivationKey, "hw-1")
	if err != nil {
		t.Fatalf("repeat Activate: %v", err)
	}
	if !second.ActivatedAt.Equal(first.ActivatedAt) {
		t.Errorf("repeat activation changed ActivatedAt from %v to %v", first.ActivatedAt, second.ActivatedAt)
	}
	if second.State() != presence.LifecycleActive {
		t.Errorf("State = %s, want active", second.State())
	}
}

func TestActivateNormalizesKey(t *testing.T) {
	h := newMemoryHarness(t)
	employee, err := h.tracker.CreateEmployee(context.Background(), "acme", "Ada", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	sloppy := "  " + strings.ToLower(employee.ActivationKey) + "\n"
	if _, err := h.tracker.Activate(context.Background(), sloppy, "hw-1"); err != nil {
		t.Fatalf("Activate with lower-case key: %v", err)
	}
}

func TestActivateConflicts(t *testing.T) {
	h := newMemoryHarness(t)
	ada := h.activeEmployee(t, "acme", "Ada", "hw-ada")
	grace, err := h.tracker.CreateEmployee(context.Background(), "acme", "Grace", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	if _, err := h.tracker.Activate(context.Background(), ada.ActivationKey, "hw-other"); !errors.Is(err, presence.ErrHardwareMismatch) {
		t.Errorf("Activate from different hardware = %v, want ErrHardwareMismatch", err)
	}
	if _, err := h.tracker.Activate(context.Background(), grace.ActivationKey, "hw-ada"); !errors.Is(err, presence.ErrAlreadyBound) {
		t.Errorf("Activate with hardware bound elsewhere = %v, want ErrAlreadyBound", err)
	}
	if _, err := h.tracker.Activate(context.Background(), "KEY-0000-0000-0000", "hw-x"); !errors.Is(err, presence.ErrInvalidKey) {
		t.Errorf("Activate with unknown key = %v, want ErrInvalidKey", err)
	}
	if _, err := h.tracker.Activate(context.Background(), grace.ActivationKey, "  "); !errors.Is(err, presence.ErrInvalidRequest) {
		t.Errorf("Activate with empty hardware = %v, want ErrInvalidRequest", err)
	}

	// The original binding is untouched by the failed attempts.
	stored, err := h.store.EmployeeByID(context.Background(), ada.ID)
	if err != nil {
		t.Fatalf("EmployeeByID: %v", err)
	}
	if stored.HardwareID != "hw-ada" {
		t.Errorf("HardwareID = %q after conflicts, want hw-ada", stored.HardwareID)
	}
}

func TestConcurrentActivationOneWinner(t *testing.T) {
	h := newHarness(t, openSQLite(t))
	employee, err := h.tracker.CreateEmployee(context.Background(), "acme", "Ada", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for index := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[index] = h.tracker.Activate(context.Background(), employee.ActivationKey, "hw-"+string(rune('a'+index)))
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, presence.ErrHardwareMismatch):
		default:
			t.Errorf("unexpected activation error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("%d activations succeeded, want exactly 1", successes)
	}
}

func TestHeartbeatDerivation(t *testing.T) {
	h := newMemoryHarness(t)
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")

	if got := h.status(t, employee); got != presence.StatusOffline {
		t.Errorf("status before any heartbeat = %s, want offline", got)
	}

	// A client clock an hour off must not matter.
	ack, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportPresent, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if !ack.ReceivedAt.Equal(start) {
		t.Errorf("ReceivedAt = %v, want server time %v", ack.ReceivedAt, start)
	}
	if ack.Status != presence.StatusPresent {
		t.Errorf("ack status = %s, want present", ack.Status)
	}

	steps := []struct {
		advance time.Duration
		want    presence.Status
	}{
		{5 * time.Second, presence.StatusPresent},
		{5 * time.Second, presence.StatusPresent}, // exactly 10s: still inside the window
		{1 * time.Second, presence.StatusAway},
		{49 * time.Second, presence.StatusAway}, // exactly 60s
		{1 * time.Second, presence.StatusOffline},
	}
	for _, step := range steps {
		h.clock.Advance(step.advance)
		if got := h.status(t, employee); got != step.want {
			t.Errorf("status at T+%s = %s, want %s", h.clock.Now().Sub(start), got, step.want)
		}
	}
}

func TestAwayReportIsAwayImmediately(t *testing.T) {
	h := newMemoryHarness(t)
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")

	if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportAway, time.Time{}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if got := h.status(t, employee); got != presence.StatusAway {
		t.Errorf("status after away report = %s, want away", got)
	}
	h.clock.Advance(61 * time.Second)
	if got := h.status(t, employee); got != presence.StatusOffline {
		t.Errorf("status 61s after away report = %s, want offline", got)
	}
}

func TestHeartbeatRejections(t *testing.T) {
	h := newMemoryHarness(t)
	invited, err := h.tracker.CreateEmployee(context.Background(), "acme", "Grace", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	active := h.activeEmployee(t, "acme", "Ada", "hw-1")

	tests := []struct {
		name   string
		key    string
		status presence.ReportedStatus
		want   error
	}{
		{"unknown key", "KEY-NOPE", presence.ReportPresent, presence.ErrUnknownKey},
		{"not activated", invited.ActivationKey, presence.ReportPresent, presence.ErrNotActivated},
		{"bad status", active.ActivationKey, presence.ReportedStatus("sleeping"), presence.ErrInvalidStatus},
		{"unknown key and bad status", "KEY-NOPE", presence.ReportedStatus("bogus"), presence.ErrUnknownKey},
		{"not activated and bad status", invited.ActivationKey, presence.ReportedStatus("bogus"), presence.ErrNotActivated},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := h.tracker.RecordHeartbeat(context.Background(), test.key, test.status, time.Time{})
			if !errors.Is(err, test.want) {
				t.Errorf("RecordHeartbeat = %v, want %v", err, test.want)
			}
		})
	}

	events, err := h.tracker.Events(context.Background(), "acme", presence.EventQuery{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("rejected heartbeats wrote %d events", len(events))
	}
}

func TestConcurrentHeartbeatsAllRecorded(t *testing.T) {
	h := newHarness(t, openSQLite(t))
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")

	const count = 40
	var wg sync.WaitGroup
	errs := make(chan error, count)
	for range count {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportPresent, time.Time{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("RecordHeartbeat: %v", err)
	}

	events, err := h.tracker.Events(context.Background(), "acme", presence.EventQuery{EmployeeID: employee.ID})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != count {
		t.Errorf("recorded %d events, want %d", len(events), count)
	}
	seen := make(map[int64]bool)
	for _, event := range events {
		if seen[event.Sequence] {
			t.Errorf("duplicate sequence %d", event.Sequence)
		}
		seen[event.Sequence] = true
	}
}

func TestCheckInFlow(t *testing.T) {
	h := newMemoryHarness(t)
	invited, err := h.tracker.CreateEmployee(context.Background(), "acme", "Grace", "")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	verdict, err := h.tracker.VerifyCheckIn(context.Background(), invited.ActivationKey)
	if err != nil {
		t.Fatalf("VerifyCheckIn: %v", err)
	}
	if verdict.Valid || verdict.State != presence.LifecycleInvited {
		t.Errorf("VerifyCheckIn before activation = %+v, want invalid/invited", verdict)
	}

	if _, err := h.tracker.Activate(context.Background(), invited.ActivationKey, "hw-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	verdict, err = h.tracker.VerifyCheckIn(context.Background(), invited.ActivationKey)
	if err != nil {
		t.Fatalf("VerifyCheckIn: %v", err)
	}
	if !verdict.Valid || verdict.EmployeeName != "Grace" {
		t.Errorf("VerifyCheckIn after activation = %+v", verdict)
	}

	ack, err := h.tracker.RecordCheckIn(context.Background(), invited.ActivationKey, time.Time{})
	if err != nil {
		t.Fatalf("RecordCheckIn: %v", err)
	}
	if ack.Status != presence.StatusPresent {
		t.Errorf("status after check-in = %s, want present", ack.Status)
	}
	events, err := h.tracker.Events(context.Background(), "acme", presence.EventQuery{EmployeeID: invited.ID})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != presence.KindCheckIn {
		t.Errorf("events after check-in = %+v", events)
	}

	if _, err := h.tracker.VerifyCheckIn(context.Background(), "KEY-NOPE"); !errors.Is(err, presence.ErrUnknownKey) {
		t.Errorf("VerifyCheckIn(unknown) = %v, want ErrUnknownKey", err)
	}
}

func TestDeactivate(t *testing.T) {
	h := newMemoryHarness(t)
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")

	if _, err := h.tracker.Deactivate(context.Background(), "globex", employee.ID); !errors.Is(err, presence.ErrTenantViolation) {
		t.Errorf("Deactivate from another company = %v, want ErrTenantViolation", err)
	}
	deactivated, err := h.tracker.Deactivate(context.Background(), "acme", employee.ID)
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if deactivated.State() != presence.LifecycleDeactivated {
		t.Errorf("State = %s, want deactivated", deactivated.State())
	}

	if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportPresent, time.Time{}); !errors.Is(err, presence.ErrUnknownKey) {
		t.Errorf("heartbeat after deactivation = %v, want ErrUnknownKey", err)
	}
	if _, err := h.tracker.Activate(context.Background(), employee.ActivationKey, "hw-1"); !errors.Is(err, presence.ErrInvalidKey) {
		t.Errorf("activation after deactivation = %v, want ErrInvalidKey", err)
	}
	verdict, err := h.tracker.VerifyCheckIn(context.Background(), employee.ActivationKey)
	if err != nil {
		t.Fatalf("VerifyCheckIn: %v", err)
	}
	if verdict.Valid || verdict.State != presence.LifecycleDeactivated {
		t.Errorf("VerifyCheckIn after deactivation = %+v", verdict)
	}
}

func TestTenantIsolation(t *testing.T) {
	h := newMemoryHarness(t)
	ada := h.activeEmployee(t, "acme", "Ada", "hw-ada")
	bob := h.activeEmployee(t, "globex", "Bob", "hw-bob")
	for _, employee := range []presence.Employee{ada, bob} {
		if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportPresent, time.Time{}); err != nil {
			t.Fatalf("RecordHeartbeat: %v", err)
		}
	}

	statuses, err := h.tracker.ListStatuses(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListStatuses: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Employee.ID != ada.ID {
		t.Errorf("ListStatuses(acme) = %+v, want only Ada", statuses)
	}

	if _, err := h.tracker.Status(context.Background(), "acme", bob.ID); !errors.Is(err, presence.ErrTenantViolation) {
		t.Errorf("Status of another company's employee = %v, want ErrTenantViolation", err)
	}
	if _, err := h.tracker.Events(context.Background(), "acme", presence.EventQuery{EmployeeID: bob.ID}); !errors.Is(err, presence.ErrTenantViolation) {
		t.Errorf("Events for another company's employee = %v, want ErrTenantViolation", err)
	}
	if _, err := h.tracker.Report(context.Background(), "acme", bob.ID, start, start.Add(time.Hour)); !errors.Is(err, presence.ErrTenantViolation) {
		t.Errorf("Report for another company's employee = %v, want ErrTenantViolation", err)
	}

	events, err := h.tracker.Events(context.Background(), "acme", presence.EventQuery{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	for _, event := range events {
		if event.CompanyID != "acme" {
			t.Errorf("foreign event %+v in acme history", event)
		}
	}

	if _, err := h.tracker.Status(context.Background(), "acme", "missing"); !errors.Is(err, presence.ErrNotFound) {
		t.Errorf("Status(missing) = %v, want ErrNotFound", err)
	}
	if _, err := h.tracker.ListStatuses(context.Background(), ""); !errors.Is(err, presence.ErrInvalidRequest) {
		t.Errorf("ListStatuses without company = %v, want ErrInvalidRequest", err)
	}
}

// leakyStore returns another company's employee from ListEmployees.
type leakyStore struct {
	presence.Store
	foreign presence.Employee
}

func (s leakyStore) ListEmployees(ctx context.Context, companyID string) ([]presence.Employee, error) {
	employees, err := s.Store.ListEmployees(ctx, companyID)
	return append(employees, s.foreign), err
}

func TestListStatusesFailsClosedOnForeignRows(t *testing.T) {
	memory := presencestore.NewMemory()
	h := newHarness(t, memory)
	h.activeEmployee(t, "acme", "Ada", "hw-ada")
	bob := h.activeEmployee(t, "globex", "Bob", "hw-bob")

	tracker, err := presence.NewTracker(presence.TrackerConfig{
		Store: leakyStore{Store: memory, foreign: bob},
		Clock: h.clock,
	})
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	statuses, err := tracker.ListStatuses(context.Background(), "acme")
	if !errors.Is(err, presence.ErrTenantViolation) {
		t.Errorf("ListStatuses with leaking store = %v, %v; want ErrTenantViolation", statuses, err)
	}
}

func TestListStatusesAndSummary(t *testing.T) {
	h := newMemoryHarness(t)
	present := h.activeEmployee(t, "acme", "Ada", "hw-1")
	away := h.activeEmployee(t, "acme", "Grace", "hw-2")
	h.activeEmployee(t, "acme", "Linus", "hw-3")
	retired := h.activeEmployee(t, "acme", "Zed", "hw-4")

	if _, err := h.tracker.RecordHeartbeat(context.Background(), away.ActivationKey, presence.ReportAway, time.Time{}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if _, err := h.tracker.RecordHeartbeat(context.Background(), present.ActivationKey, presence.ReportPresent, time.Time{}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	if _, err := h.tracker.Deactivate(context.Background(), "acme", retired.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	statuses, err := h.tracker.ListStatuses(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListStatuses: %v", err)
	}
	want := map[string]presence.Status{
		"Ada":   presence.StatusPresent,
		"Grace": presence.StatusAway,
		"Linus": presence.StatusOffline,
		"Zed":   presence.StatusOffline,
	}
	if len(statuses) != len(want) {
		t.Fatalf("ListStatuses returned %d rows, want %d", len(statuses), len(want))
	}
	for _, status := range statuses {
		if status.Status != want[status.Employee.Name] {
			t.Errorf("%s: status %s, want %s", status.Employee.Name, status.Status, want[status.Employee.Name])
		}
		if status.Employee.Name == "Linus" && status.LastEvent != nil {
			t.Errorf("Linus has no events but LastEvent = %+v", status.LastEvent)
		}
	}

	summary, err := h.tracker.Summary(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	wantSummary := presence.Summary{CompanyID: "acme", Present: 1, Away: 1, Offline: 1, Total: 3}
	if summary != wantSummary {
		t.Errorf("Summary = %+v, want %+v", summary, wantSummary)
	}
}

func TestStatusByKey(t *testing.T) {
	h := newMemoryHarness(t)
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")
	if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportPresent, time.Time{}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	status, err := h.tracker.StatusByKey(context.Background(), employee.ActivationKey)
	if err != nil {
		t.Fatalf("StatusByKey: %v", err)
	}
	if status.Status != presence.StatusPresent || status.LastEvent == nil {
		t.Errorf("StatusByKey = %+v", status)
	}
	if _, err := h.tracker.StatusByKey(context.Background(), "KEY-NOPE"); !errors.Is(err, presence.ErrUnknownKey) {
		t.Errorf("StatusByKey(unknown) = %v, want ErrUnknownKey", err)
	}
}

func TestStatusChangesPublished(t *testing.T) {
	h := newMemoryHarness(t)
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")

	record := func(status presence.ReportedStatus) {
		t.Helper()
		if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, status, time.Time{}); err != nil {
			t.Fatalf("RecordHeartbeat: %v", err)
		}
	}

	record(presence.ReportPresent) // offline -> present
	h.clock.Advance(2 * time.Second)
	record(presence.ReportPresent) // no change
	h.clock.Advance(2 * time.Second)
	record(presence.ReportAway) // present -> away

	changes := h.published()
	if len(changes) != 2 {
		t.Fatalf("published %d changes, want 2: %+v", len(changes), changes)
	}
	if changes[0].From != presence.StatusOffline || changes[0].To != presence.StatusPresent {
		t.Errorf("first change = %s -> %s", changes[0].From, changes[0].To)
	}
	if changes[1].From != presence.StatusPresent || changes[1].To != presence.StatusAway {
		t.Errorf("second change = %s -> %s", changes[1].From, changes[1].To)
	}
	for _, change := range changes {
		if change.Cause != presence.CauseEvent || change.EmployeeName != "Ada" || change.CompanyID != "acme" {
			t.Errorf("change metadata = %+v", change)
		}
	}
}

func TestReport(t *testing.T) {
	h := newMemoryHarness(t)
	employee := h.activeEmployee(t, "acme", "Ada", "hw-1")

	// Present heartbeats every 5s for a minute, then silence.
	for range 12 {
		if _, err := h.tracker.RecordHeartbeat(context.Background(), employee.ActivationKey, presence.ReportPresent, time.Time{}); err != nil {
			t.Fatalf("RecordHeartbeat: %v", err)
		}
		h.clock.Advance(5 * time.Second)
	}

	report, err := h.tracker.Report(context.Background(), "acme", employee.ID, start, start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	// Last heartbeat at 55s: present until 65s, away until 115s.
	if report.Present != 65*time.Second {
		t.Errorf("Present = %s, want 1m5s", report.Present)
	}
	if report.Away != 50*time.Second {
		t.Errorf("Away = %s, want 50s", report.Away)
	}
	if report.Offline != 5*time.Minute-115*time.Second {
		t.Errorf("Offline = %s, want 3m5s", report.Offline)
	}
	if len(report.Transitions) != 2 {
		t.Errorf("Transitions = %+v, want present->away->offline", report.Transitions)
	}

	if _, err := h.tracker.Report(context.Background(), "acme", employee.ID, start, start); !errors.Is(err, presence.ErrInvalidRequest) {
		t.Errorf("Report with empty window = %v, want ErrInvalidRequest", err)
	}
}

func openSQLite(t *testing.T) presence.Store {
	t.Helper()
	store, err := presencestore.OpenSQLite(filepath.Join(t.TempDir(), "presence.db"), 4, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return store
}
