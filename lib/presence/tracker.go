// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/presence/lib/clock"
)

// keyAttempts bounds retries when a generated activation key collides.
const keyAttempts = 5

// TrackerConfig wires a Tracker. Store and Clock are required.
type TrackerConfig struct {
	Store  Store
	Clock  clock.Clock
	Policy Policy

	// Sink receives status changes caused by writes. Optional.
	Sink Sink

	Logger *slog.Logger
}

// Tracker implements the presence operations over a Store. It is
// stateless apart from its configuration and safe for concurrent use.
type Tracker struct {
	store  Store
	clock  clock.Clock
	policy Policy
	sink   Sink
	logger *slog.Logger
}

// NewTracker validates cfg and returns a Tracker. A zero Policy means
// DefaultPolicy.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("presence: Store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("presence: Clock is required")
	}
	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("presence: %w", err)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		store:  cfg.Store,
		clock:  cfg.Clock,
		policy: policy,
		sink:   sink,
		logger: logger,
	}, nil
}

// Policy returns the staleness windows in use.
func (t *Tracker) Policy() Policy { return t.policy }

// CreateEmployee provisions an invited employee with a fresh
// activation key.
func (t *Tracker) CreateEmployee(ctx context.Context, companyID, name, department string) (Employee, error) {
	companyID = strings.TrimSpace(companyID)
	name = strings.TrimSpace(name)
	if companyID == "" {
		return Employee{}, fmt.Errorf("%w: company id is required", ErrInvalidRequest)
	}
	if name == "" {
		return Employee{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	for attempt := 1; attempt <= keyAttempts; attempt++ {
		key, err := NewActivationKey()
		if err != nil {
			return Employee{}, err
		}
		employee := Employee{
			ID:            uuid.NewString(),
			CompanyID:     companyID,
			Name:          name,
			Department:    strings.TrimSpace(department),
			ActivationKey: key,
			CreatedAt:     t.clock.Now().UTC(),
		}
		err = t.store.CreateEmployee(ctx, employee)
		if errors.Is(err, ErrDuplicateKey) {
			t.logger.Warn("activation key collision, regenerating", "attempt", attempt)
			continue
		}
		if err != nil {
			return Employee{}, unavailable("creating employee", err)
		}
		t.logger.Info("employee created",
			"employee_id", employee.ID,
			"company_id", companyID,
		)
		return employee, nil
	}
	return Employee{}, fmt.Errorf("creating employee: no unique activation key after %d attempts", keyAttempts)
}

// Activate binds hardwareID to the key's employee. Repeating a
// successful activation from the same hardware is a no-op success.
func (t *Tracker) Activate(ctx context.Context, activationKey, hardwareID string) (Employee, error) {
	hardwareID = strings.TrimSpace(hardwareID)
	if hardwareID == "" {
		return Employee{}, fmt.Errorf("%w: hardware id is required", ErrInvalidRequest)
	}

	employee, err := t.store.EmployeeByKey(ctx, NormalizeActivationKey(activationKey))
	if errors.Is(err, ErrNotFound) {
		return Employee{}, ErrInvalidKey
	}
	if err != nil {
		return Employee{}, unavailable("activating device", err)
	}
	if employee.Deactivated() {
		return Employee{}, ErrInvalidKey
	}
	if employee.Bound() {
		if employee.HardwareID != hardwareID {
			t.logger.Warn("activation from different hardware rejected",
				"employee_id", employee.ID,
				"company_id", employee.CompanyID,
			)
			return Employee{}, ErrHardwareMismatch
		}
		return employee, nil
	}

	bound, err := t.store.BindHardware(ctx, employee.ID, hardwareID, t.clock.Now().UTC())
	switch {
	case errors.Is(err, ErrHardwareMismatch), errors.Is(err, ErrAlreadyBound):
		t.logger.Warn("activation conflict",
			"employee_id", employee.ID,
			"company_id", employee.CompanyID,
			"error", err,
		)
		return Employee{}, err
	case errors.Is(err, ErrNotFound):
		return Employee{}, ErrInvalidKey
	case err != nil:
		return Employee{}, unavailable("binding hardware", err)
	}

	t.logger.Info("device activated",
		"employee_id", bound.ID,
		"company_id", bound.CompanyID,
	)
	return bound, nil
}

// RecordHeartbeat appends a heartbeat event. clientTime is stored but
// never trusted.
func (t *Tracker) RecordHeartbeat(ctx context.Context, activationKey string, status ReportedStatus, clientTime time.Time) (Ack, error) {
	return t.record(ctx, activationKey, KindHeartbeat, status, clientTime)
}

// RecordCheckIn appends a start-of-shift check-in, which counts as a
// present report.
func (t *Tracker) RecordCheckIn(ctx context.Context, activationKey string, clientTime time.Time) (Ack, error) {
	return t.record(ctx, activationKey, KindCheckIn, ReportPresent, clientTime)
}

func (t *Tracker) record(ctx context.Context, activationKey string, kind EventKind, status ReportedStatus, clientTime time.Time) (Ack, error) {
	employee, err := t.employeeForReport(ctx, activationKey)
	if err != nil {
		return Ack{}, err
	}
	if status != ReportPresent && status != ReportAway {
		return Ack{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	previous, hadPrevious, err := t.store.LatestEvent(ctx, employee.ID)
	if err != nil {
		return Ack{}, unavailable("reading latest event", err)
	}

	now := t.clock.Now().UTC()
	event := Event{
		ID:         uuid.NewString(),
		EmployeeID: employee.ID,
		CompanyID:  employee.CompanyID,
		Kind:       kind,
		Status:     status,
		ClientTime: clientTime,
		ReceivedAt: now,
	}
	stored, err := t.store.AppendEvent(ctx, event)
	if err != nil {
		return Ack{}, unavailable("appending event", err)
	}

	before := t.policy.Derive(previous, hadPrevious, now)
	after := t.policy.Derive(stored, true, now)
	if before != after {
		t.sink.Publish(StatusChange{
			EmployeeID:   employee.ID,
			EmployeeName: employee.Name,
			CompanyID:    employee.CompanyID,
			From:         before,
			To:           after,
			At:           now,
			Cause:        CauseEvent,
		})
	}

	t.logger.Debug("event recorded",
		"employee_id", employee.ID,
		"company_id", employee.CompanyID,
		"kind", string(kind),
		"status", string(status),
	)
	return Ack{EventID: stored.ID, ReceivedAt: stored.ReceivedAt, Status: after}, nil
}

// employeeForReport resolves a key for a write: unknown and
// deactivated keys are ErrUnknownKey, unbound keys ErrNotActivated.
func (t *Tracker) employeeForReport(ctx context.Context, activationKey string) (Employee, error) {
	employee, err := t.store.EmployeeByKey(ctx, NormalizeActivationKey(activationKey))
	if errors.Is(err, ErrNotFound) {
		return Employee{}, ErrUnknownKey
	}
	if err != nil {
		return Employee{}, unavailable("resolving activation key", err)
	}
	if employee.Deactivated() {
		return Employee{}, ErrUnknownKey
	}
	if !employee.Bound() {
		return Employee{}, ErrNotActivated
	}
	return employee, nil
}

// VerifyCheckIn reports whether the key may start sending heartbeats.
// It writes nothing.
func (t *Tracker) VerifyCheckIn(ctx context.Context, activationKey string) (CheckIn, error) {
	employee, err := t.store.EmployeeByKey(ctx, NormalizeActivationKey(activationKey))
	if errors.Is(err, ErrNotFound) {
		return CheckIn{}, ErrUnknownKey
	}
	if err != nil {
		return CheckIn{}, unavailable("verifying check-in", err)
	}
	state := employee.State()
	return CheckIn{
		Valid:        state == LifecycleActive,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		State:        state,
	}, nil
}

// StatusByKey derives the status of the key's employee. This is the
// agent's view and needs no company id.
func (t *Tracker) StatusByKey(ctx context.Context, activationKey string) (EmployeeStatus, error) {
	employee, err := t.store.EmployeeByKey(ctx, NormalizeActivationKey(activationKey))
	if errors.Is(err, ErrNotFound) {
		return EmployeeStatus{}, ErrUnknownKey
	}
	if err != nil {
		return EmployeeStatus{}, unavailable("resolving activation key", err)
	}
	return t.statusOf(ctx, employee)
}

// Status derives one employee's status for a caller in companyID.
func (t *Tracker) Status(ctx context.Context, companyID, employeeID string) (EmployeeStatus, error) {
	employee, err := t.tenantEmployee(ctx, companyID, employeeID)
	if err != nil {
		return EmployeeStatus{}, err
	}
	return t.statusOf(ctx, employee)
}

func (t *Tracker) statusOf(ctx context.Context, employee Employee) (EmployeeStatus, error) {
	latest, ok, err := t.store.LatestEvent(ctx, employee.ID)
	if err != nil {
		return EmployeeStatus{}, unavailable("reading latest event", err)
	}
	result := EmployeeStatus{
		Employee: employee,
		Status:   t.policy.Derive(latest, ok, t.clock.Now()),
	}
	if ok {
		result.LastEvent = &latest
	}
	return result, nil
}

// ListStatuses derives the status of every employee in companyID at a
// single instant. If the store ever hands back a row from another
// company the whole call fails rather than filter silently.
func (t *Tracker) ListStatuses(ctx context.Context, companyID string) ([]EmployeeStatus, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("%w: company id is required", ErrInvalidRequest)
	}
	employees, err := t.store.ListEmployees(ctx, companyID)
	if err != nil {
		return nil, unavailable("listing employees", err)
	}
	latest, err := t.store.LatestEvents(ctx, companyID)
	if err != nil {
		return nil, unavailable("reading latest events", err)
	}

	now := t.clock.Now()
	statuses := make([]EmployeeStatus, 0, len(employees))
	for _, employee := range employees {
		if employee.CompanyID != companyID {
			t.logger.Error("store returned foreign employee",
				"company_id", companyID,
				"employee_id", employee.ID,
			)
			return nil, ErrTenantViolation
		}
		event, ok := latest[employee.ID]
		if ok && event.CompanyID != companyID {
			t.logger.Error("store returned foreign event",
				"company_id", companyID,
				"employee_id", employee.ID,
			)
			return nil, ErrTenantViolation
		}
		status := EmployeeStatus{
			Employee: employee,
			Status:   t.policy.Derive(event, ok, now),
		}
		if ok {
			eventCopy := event
			status.LastEvent = &eventCopy
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Summary counts a company's employees by derived status. Deactivated
// employees are left out.
func (t *Tracker) Summary(ctx context.Context, companyID string) (Summary, error) {
	statuses, err := t.ListStatuses(ctx, companyID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{CompanyID: companyID}
	for _, status := range statuses {
		if status.Employee.Deactivated() {
			continue
		}
		summary.Total++
		switch status.Status {
		case StatusPresent:
			summary.Present++
		case StatusAway:
			summary.Away++
		case StatusOffline:
			summary.Offline++
		}
	}
	return summary, nil
}

// Companies lists every company with at least one employee. It is an
// operator view with no tenant scope.
func (t *Tracker) Companies(ctx context.Context) ([]string, error) {
	companies, err := t.store.ListCompanies(ctx)
	if err != nil {
		return nil, unavailable("listing companies", err)
	}
	return companies, nil
}

// Deactivate retires an employee's activation key.
func (t *Tracker) Deactivate(ctx context.Context, companyID, employeeID string) (Employee, error) {
	if _, err := t.tenantEmployee(ctx, companyID, employeeID); err != nil {
		return Employee{}, err
	}
	employee, err := t.store.Deactivate(ctx, employeeID, t.clock.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, unavailable("deactivating employee", err)
	}
	t.logger.Info("employee deactivated",
		"employee_id", employee.ID,
		"company_id", employee.CompanyID,
	)
	return employee, nil
}

// Events returns a company's event history. A query naming an employee
// of another company fails with ErrTenantViolation.
func (t *Tracker) Events(ctx context.Context, companyID string, query EventQuery) ([]Event, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, fmt.Errorf("%w: company id is required", ErrInvalidRequest)
	}
	if query.EmployeeID != "" {
		if _, err := t.tenantEmployee(ctx, companyID, query.EmployeeID); err != nil {
			return nil, err
		}
	}
	query.CompanyID = companyID
	events, err := t.store.ListEvents(ctx, query)
	if err != nil {
		return nil, unavailable("listing events", err)
	}
	for _, event := range events {
		if event.CompanyID != companyID {
			t.logger.Error("store returned foreign event",
				"company_id", companyID,
				"event_id", event.ID,
			)
			return nil, ErrTenantViolation
		}
	}
	return events, nil
}

// Report replays an employee's events over [from, to).
func (t *Tracker) Report(ctx context.Context, companyID, employeeID string, from, to time.Time) (Report, error) {
	if !to.After(from) {
		return Report{}, fmt.Errorf("%w: report window is empty", ErrInvalidRequest)
	}
	// Events older than one offline window before from cannot affect
	// the status at from.
	events, err := t.Events(ctx, companyID, EventQuery{
		EmployeeID: employeeID,
		Since:      from.Add(-t.policy.OfflineTimeout),
		Until:      to,
	})
	if err != nil {
		return Report{}, err
	}
	return t.policy.BuildReport(employeeID, events, from, to), nil
}

// tenantEmployee loads an employee and checks it belongs to companyID.
func (t *Tracker) tenantEmployee(ctx context.Context, companyID, employeeID string) (Employee, error) {
	if strings.TrimSpace(companyID) == "" {
		return Employee{}, fmt.Errorf("%w: company id is required", ErrInvalidRequest)
	}
	employee, err := t.store.EmployeeByID(ctx, employeeID)
	if errors.Is(err, ErrNotFound) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, unavailable("loading employee", err)
	}
	if employee.CompanyID != companyID {
		t.logger.Warn("cross-company access denied",
			"company_id", companyID,
			"employee_id", employeeID,
		)
		return Employee{}, ErrTenantViolation
	}
	return employee, nil
}
