// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presencestore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/testutil"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// runConformance checks the behavior every backend must share. open
// returns a fresh, empty store; ids are unique per call so that the
// Postgres run can share a database between subtests.
func runConformance(t *testing.T, open func(t *testing.T) presence.Store) {
	t.Run("CreateAndLookup", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		employee := ids.employee("acme", "Ada")

		if err := store.CreateEmployee(context.Background(), employee); err != nil {
			t.Fatalf("CreateEmployee: %v", err)
		}
		byID, err := store.EmployeeByID(context.Background(), employee.ID)
		if err != nil {
			t.Fatalf("EmployeeByID: %v", err)
		}
		if byID.Name != "Ada" || byID.CompanyID != ids.company("acme") {
			t.Errorf("EmployeeByID = %+v", byID)
		}
		if !byID.CreatedAt.Equal(employee.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, employee.CreatedAt)
		}
		if byID.Bound() || byID.Deactivated() {
			t.Errorf("new employee should be invited, got state %s", byID.State())
		}

		byKey, err := store.EmployeeByKey(context.Background(), employee.ActivationKey)
		if err != nil {
			t.Fatalf("EmployeeByKey: %v", err)
		}
		if byKey.ID != employee.ID {
			t.Errorf("EmployeeByKey ID = %q, want %q", byKey.ID, employee.ID)
		}
	})

	t.Run("LookupMissing", func(t *testing.T) {
		store := open(t)
		if _, err := store.EmployeeByID(context.Background(), "missing"); !errors.Is(err, presence.ErrNotFound) {
			t.Errorf("EmployeeByID(missing) = %v, want ErrNotFound", err)
		}
		if _, err := store.EmployeeByKey(context.Background(), "KEY-NONE"); !errors.Is(err, presence.ErrNotFound) {
			t.Errorf("EmployeeByKey(missing) = %v, want ErrNotFound", err)
		}
		_, ok, err := store.LatestEvent(context.Background(), "missing")
		if err != nil || ok {
			t.Errorf("LatestEvent(missing) = ok %v err %v, want no event", ok, err)
		}
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		first := ids.employee("acme", "Ada")
		second := ids.employee("acme", "Grace")
		second.ActivationKey = first.ActivationKey

		if err := store.CreateEmployee(context.Background(), first); err != nil {
			t.Fatalf("CreateEmployee: %v", err)
		}
		if err := store.CreateEmployee(context.Background(), second); !errors.Is(err, presence.ErrDuplicateKey) {
			t.Errorf("CreateEmployee(duplicate key) = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("ListEmployeesScopedAndOrdered", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		for _, employee := range []presence.Employee{
			ids.employee("acme", "Zed"),
			ids.employee("acme", "Ada"),
			ids.employee("globex", "Bob"),
		} {
			if err := store.CreateEmployee(context.Background(), employee); err != nil {
				t.Fatalf("CreateEmployee: %v", err)
			}
		}

		employees, err := store.ListEmployees(context.Background(), ids.company("acme"))
		if err != nil {
			t.Fatalf("ListEmployees: %v", err)
		}
		if len(employees) != 2 {
			t.Fatalf("ListEmployees returned %d rows, want 2", len(employees))
		}
		if employees[0].Name != "Ada" || employees[1].Name != "Zed" {
			t.Errorf("order = [%s %s], want [Ada Zed]", employees[0].Name, employees[1].Name)
		}
		for _, employee := range employees {
			if employee.CompanyID != ids.company("acme") {
				t.Errorf("foreign row %+v", employee)
			}
		}
	})

	t.Run("ListCompanies", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		for _, employee := range []presence.Employee{
			ids.employee("globex", "Bob"),
			ids.employee("acme", "Ada"),
			ids.employee("acme", "Grace"),
		} {
			if err := store.CreateEmployee(context.Background(), employee); err != nil {
				t.Fatalf("CreateEmployee: %v", err)
			}
		}
		companies, err := store.ListCompanies(context.Background())
		if err != nil {
			t.Fatalf("ListCompanies: %v", err)
		}
		var mine []string
		for _, company := range companies {
			if company == ids.company("acme") || company == ids.company("globex") {
				mine = append(mine, company)
			}
		}
		if len(mine) != 2 || mine[0] != ids.company("acme") || mine[1] != ids.company("globex") {
			t.Errorf("ListCompanies = %v, want acme then globex once each", mine)
		}
	})

	t.Run("BindHardware", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ada := ids.employee("acme", "Ada")
		grace := ids.employee("acme", "Grace")
		for _, employee := range []presence.Employee{ada, grace} {
			if err := store.CreateEmployee(context.Background(), employee); err != nil {
				t.Fatalf("CreateEmployee: %v", err)
			}
		}
		hardware := ids.id("hw")
		at := epoch.Add(time.Minute)

		bound, err := store.BindHardware(context.Background(), ada.ID, hardware, at)
		if err != nil {
			t.Fatalf("BindHardware: %v", err)
		}
		if bound.HardwareID != hardware || !bound.ActivatedAt.Equal(at) {
			t.Errorf("BindHardware = %+v", bound)
		}

		again, err := store.BindHardware(context.Background(), ada.ID, hardware, at.Add(time.Hour))
		if err != nil {
			t.Fatalf("BindHardware (same hardware): %v", err)
		}
		if !again.ActivatedAt.Equal(at) {
			t.Errorf("rebinding same hardware moved ActivatedAt to %v", again.ActivatedAt)
		}

		if _, err := store.BindHardware(context.Background(), ada.ID, ids.id("hw"), at); !errors.Is(err, presence.ErrHardwareMismatch) {
			t.Errorf("BindHardware(other hardware) = %v, want ErrHardwareMismatch", err)
		}
		if _, err := store.BindHardware(context.Background(), grace.ID, hardware, at); !errors.Is(err, presence.ErrAlreadyBound) {
			t.Errorf("BindHardware(hardware of another employee) = %v, want ErrAlreadyBound", err)
		}
		if _, err := store.BindHardware(context.Background(), "missing", ids.id("hw"), at); !errors.Is(err, presence.ErrNotFound) {
			t.Errorf("BindHardware(missing) = %v, want ErrNotFound", err)
		}

		stored, err := store.EmployeeByID(context.Background(), grace.ID)
		if err != nil {
			t.Fatalf("EmployeeByID: %v", err)
		}
		if stored.Bound() {
			t.Errorf("failed bind left grace bound to %q", stored.HardwareID)
		}
	})

	t.Run("DeactivateIdempotent", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ada := ids.employee("acme", "Ada")
		if err := store.CreateEmployee(context.Background(), ada); err != nil {
			t.Fatalf("CreateEmployee: %v", err)
		}
		first := epoch.Add(time.Hour)
		employee, err := store.Deactivate(context.Background(), ada.ID, first)
		if err != nil {
			t.Fatalf("Deactivate: %v", err)
		}
		if !employee.DeactivatedAt.Equal(first) {
			t.Errorf("DeactivatedAt = %v, want %v", employee.DeactivatedAt, first)
		}
		employee, err = store.Deactivate(context.Background(), ada.ID, first.Add(time.Hour))
		if err != nil {
			t.Fatalf("second Deactivate: %v", err)
		}
		if !employee.DeactivatedAt.Equal(first) {
			t.Errorf("second Deactivate moved DeactivatedAt to %v", employee.DeactivatedAt)
		}
		if _, err := store.Deactivate(context.Background(), "missing", first); !errors.Is(err, presence.ErrNotFound) {
			t.Errorf("Deactivate(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("AppendEvent", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ada := ids.employee("acme", "Ada")
		if err := store.CreateEmployee(context.Background(), ada); err != nil {
			t.Fatalf("CreateEmployee: %v", err)
		}

		later := ids.event(ada, presence.ReportPresent, epoch.Add(20*time.Second))
		earlier := ids.event(ada, presence.ReportAway, epoch.Add(10*time.Second))
		earlier.ClientTime = epoch.Add(-time.Hour)

		storedLater, err := store.AppendEvent(context.Background(), later)
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
		storedEarlier, err := store.AppendEvent(context.Background(), earlier)
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
		if storedEarlier.Sequence <= storedLater.Sequence {
			t.Errorf("sequences %d then %d, want increasing", storedLater.Sequence, storedEarlier.Sequence)
		}

		employee, err := store.EmployeeByID(context.Background(), ada.ID)
		if err != nil {
			t.Fatalf("EmployeeByID: %v", err)
		}
		if !employee.LastHeartbeat.Equal(later.ReceivedAt) {
			t.Errorf("LastHeartbeat = %v, want %v (never lowered)", employee.LastHeartbeat, later.ReceivedAt)
		}

		latest, ok, err := store.LatestEvent(context.Background(), ada.ID)
		if err != nil || !ok {
			t.Fatalf("LatestEvent: ok %v err %v", ok, err)
		}
		if latest.ID != later.ID {
			t.Errorf("LatestEvent = %s, want the one received later", latest.ID)
		}

		events, err := store.ListEvents(context.Background(), presence.EventQuery{CompanyID: ada.CompanyID})
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(events) != 2 || events[0].ID != earlier.ID {
			t.Fatalf("ListEvents not oldest-first by receipt: %+v", events)
		}
		if !events[0].ClientTime.Equal(earlier.ClientTime) {
			t.Errorf("ClientTime = %v, want %v", events[0].ClientTime, earlier.ClientTime)
		}
		if events[0].Kind != presence.KindHeartbeat || events[0].Status != presence.ReportAway {
			t.Errorf("event fields = %s/%s", events[0].Kind, events[0].Status)
		}
	})

	t.Run("AppendEventUnknownEmployee", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ghost := ids.employee("acme", "Ghost")
		event := ids.event(ghost, presence.ReportPresent, epoch)
		if _, err := store.AppendEvent(context.Background(), event); !errors.Is(err, presence.ErrNotFound) {
			t.Errorf("AppendEvent(unknown employee) = %v, want ErrNotFound", err)
		}
	})

	t.Run("LatestTieBreaksOnSequence", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ada := ids.employee("acme", "Ada")
		if err := store.CreateEmployee(context.Background(), ada); err != nil {
			t.Fatalf("CreateEmployee: %v", err)
		}
		first := ids.event(ada, presence.ReportPresent, epoch)
		second := ids.event(ada, presence.ReportAway, epoch)
		for _, event := range []presence.Event{first, second} {
			if _, err := store.AppendEvent(context.Background(), event); err != nil {
				t.Fatalf("AppendEvent: %v", err)
			}
		}
		latest, ok, err := store.LatestEvent(context.Background(), ada.ID)
		if err != nil || !ok {
			t.Fatalf("LatestEvent: ok %v err %v", ok, err)
		}
		if latest.ID != second.ID {
			t.Errorf("LatestEvent with equal receipt times = %s, want the later insert", latest.ID)
		}
		all, err := store.LatestEvents(context.Background(), ada.CompanyID)
		if err != nil {
			t.Fatalf("LatestEvents: %v", err)
		}
		if all[ada.ID].ID != second.ID {
			t.Errorf("LatestEvents[%s] = %s, want %s", ada.ID, all[ada.ID].ID, second.ID)
		}
	})

	t.Run("LatestEventsScoped", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ada := ids.employee("acme", "Ada")
		grace := ids.employee("acme", "Grace")
		bob := ids.employee("globex", "Bob")
		for _, employee := range []presence.Employee{ada, grace, bob} {
			if err := store.CreateEmployee(context.Background(), employee); err != nil {
				t.Fatalf("CreateEmployee: %v", err)
			}
		}
		for index, employee := range []presence.Employee{ada, ada, bob} {
			event := ids.event(employee, presence.ReportPresent, epoch.Add(time.Duration(index)*time.Second))
			if _, err := store.AppendEvent(context.Background(), event); err != nil {
				t.Fatalf("AppendEvent: %v", err)
			}
		}

		latest, err := store.LatestEvents(context.Background(), ids.company("acme"))
		if err != nil {
			t.Fatalf("LatestEvents: %v", err)
		}
		if len(latest) != 1 {
			t.Fatalf("LatestEvents returned %d entries, want 1 (grace has none, bob is foreign)", len(latest))
		}
		if !latest[ada.ID].ReceivedAt.Equal(epoch.Add(time.Second)) {
			t.Errorf("latest for ada received at %v, want %v", latest[ada.ID].ReceivedAt, epoch.Add(time.Second))
		}
	})

	t.Run("ListEventsFilters", func(t *testing.T) {
		store := open(t)
		ids := newIDs(t)
		ada := ids.employee("acme", "Ada")
		grace := ids.employee("acme", "Grace")
		for _, employee := range []presence.Employee{ada, grace} {
			if err := store.CreateEmployee(context.Background(), employee); err != nil {
				t.Fatalf("CreateEmployee: %v", err)
			}
		}
		for index := range 5 {
			for _, employee := range []presence.Employee{ada, grace} {
				event := ids.event(employee, presence.ReportPresent, epoch.Add(time.Duration(index)*time.Minute))
				if _, err := store.AppendEvent(context.Background(), event); err != nil {
					t.Fatalf("AppendEvent: %v", err)
				}
			}
		}

		events, err := store.ListEvents(context.Background(), presence.EventQuery{
			CompanyID:  ada.CompanyID,
			EmployeeID: ada.ID,
			Since:      epoch.Add(time.Minute),
			Until:      epoch.Add(3 * time.Minute),
		})
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("ListEvents returned %d events, want 3 (bounds inclusive)", len(events))
		}
		for _, event := range events {
			if event.EmployeeID != ada.ID {
				t.Errorf("event for %s leaked into ada's query", event.EmployeeID)
			}
		}

		limited, err := store.ListEvents(context.Background(), presence.EventQuery{CompanyID: ada.CompanyID, Limit: 4})
		if err != nil {
			t.Fatalf("ListEvents(limit): %v", err)
		}
		if len(limited) != 4 {
			t.Errorf("ListEvents(limit 4) returned %d", len(limited))
		}

		if _, err := store.ListEvents(context.Background(), presence.EventQuery{}); !errors.Is(err, presence.ErrInvalidRequest) {
			t.Errorf("ListEvents without company = %v, want ErrInvalidRequest", err)
		}
	})
}

// testIDs hands out identifiers that do not collide across subtests.
type testIDs struct {
	prefix  string
	counter int
}

func newIDs(t *testing.T) *testIDs {
	t.Helper()
	return &testIDs{prefix: testutil.UniqueID("t")}
}

func (ids *testIDs) id(kind string) string {
	ids.counter++
	return fmt.Sprintf("%s-%s-%d", ids.prefix, kind, ids.counter)
}

func (ids *testIDs) company(name string) string {
	return ids.prefix + "-" + name
}

func (ids *testIDs) employee(company, name string) presence.Employee {
	return presence.Employee{
		ID:            ids.id("employee"),
		CompanyID:     ids.company(company),
		Name:          name,
		ActivationKey: ids.id("KEY"),
		CreatedAt:     epoch,
	}
}

func (ids *testIDs) event(employee presence.Employee, status presence.ReportedStatus, received time.Time) presence.Event {
	return presence.Event{
		ID:         ids.id("event"),
		EmployeeID: employee.ID,
		CompanyID:  employee.CompanyID,
		Kind:       presence.KindHeartbeat,
		Status:     status,
		ReceivedAt: received,
	}
}
