// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"fmt"
	"strings"
	"time"
)

// EventKind distinguishes periodic heartbeats from start-of-shift
// check-ins. Both feed derivation identically.
type EventKind string

const (
	KindHeartbeat EventKind = "heartbeat"
	KindCheckIn   EventKind = "check-in"
)

// ReportedStatus is what the agent claims about the employee.
type ReportedStatus string

const (
	ReportPresent ReportedStatus = "present"
	ReportAway    ReportedStatus = "away"
)

// ParseReportedStatus accepts "present" or "away" in any case.
func ParseReportedStatus(raw string) (ReportedStatus, error) {
	switch ReportedStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case ReportPresent:
		return ReportPresent, nil
	case ReportAway:
		return ReportAway, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Status is the derived presence of an employee at a point in time.
type Status string

const (
	StatusPresent Status = "present"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Lifecycle is the provisioning state of an employee record.
type Lifecycle string

const (
	// LifecycleInvited: provisioned, no device bound yet.
	LifecycleInvited Lifecycle = "invited"
	// LifecycleActive: a device is bound and the key is live.
	LifecycleActive Lifecycle = "active"
	// LifecycleDeactivated: the key was retired by an administrator.
	LifecycleDeactivated Lifecycle = "deactivated"
)

// Employee is the identity and binding state of one tracked person.
type Employee struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	Name          string    `json:"name"`
	Department    string    `json:"department,omitempty"`
	ActivationKey string    `json:"activation_key"`
	HardwareID    string    `json:"hardware_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ActivatedAt   time.Time `json:"activated_at,omitzero"`
	DeactivatedAt time.Time `json:"deactivated_at,omitzero"`

	// LastHeartbeat is the receipt time of the newest event. It is an
	// index for "who reported recently" queries; derivation reads the
	// event log.
	LastHeartbeat time.Time `json:"last_heartbeat,omitzero"`
}

// Bound reports whether a device has been bound to the key.
func (e Employee) Bound() bool { return e.HardwareID != "" }

// Deactivated reports whether the key has been retired.
func (e Employee) Deactivated() bool { return !e.DeactivatedAt.IsZero() }

// State returns the lifecycle state.
func (e Employee) State() Lifecycle {
	switch {
	case e.Deactivated():
		return LifecycleDeactivated
	case e.Bound():
		return LifecycleActive
	default:
		return LifecycleInvited
	}
}

// Event is one immutable report from an agent.
type Event struct {
	// Sequence is assigned by the store on append and increases with
	// insertion order. It breaks ties between equal receipt times.
	Sequence int64 `json:"sequence"`

	ID         string         `json:"id"`
	EmployeeID string         `json:"employee_id"`
	CompanyID  string         `json:"company_id"`
	Kind       EventKind      `json:"kind"`
	Status     ReportedStatus `json:"status"`

	// ClientTime is whatever the agent put in the request. Never used
	// for ordering or staleness.
	ClientTime time.Time `json:"client_time,omitzero"`

	// ReceivedAt is the server clock when the event was accepted.
	ReceivedAt time.Time `json:"received_at"`
}

// Newer reports whether a was received after b.
func (a Event) Newer(b Event) bool {
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.After(b.ReceivedAt)
	}
	return a.Sequence > b.Sequence
}

// EmployeeStatus pairs an employee with its derived status.
type EmployeeStatus struct {
	Employee  Employee `json:"employee"`
	Status    Status   `json:"status"`
	LastEvent *Event   `json:"last_event,omitempty"`
}

// Ack confirms an appended event.
type Ack struct {
	EventID    string    `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
	Status     Status    `json:"status"`
}

// CheckIn is the answer to VerifyCheckIn. Valid is true only for a
// bound, non-deactivated key.
type CheckIn struct {
	Valid        bool      `json:"valid"`
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	State        Lifecycle `json:"state"`
}

// Summary is a headcount by derived status for one company.
type Summary struct {
	CompanyID string `json:"company_id"`
	Present   int    `json:"present"`
	Away      int    `json:"away"`
	Offline   int    `json:"offline"`
	Total     int    `json:"total"`
}

// StatusChange is published when an employee's derived status moves.
type StatusChange struct {
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	CompanyID    string    `json:"company_id"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
	At           time.Time `json:"at"`

	// Cause is "event" when a report triggered the change and
	// "timeout" when a sweep observed a window expiring.
	Cause string `json:"cause"`
}

const (
	CauseEvent   = "event"
	CauseTimeout = "timeout"
)

// Sink receives status changes. Publish must not block; the tracker
// calls it on the request path.
type Sink interface {
	Publish(change StatusChange)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(StatusChange)

func (f SinkFunc) Publish(change StatusChange) { f(change) }

type nopSink struct{}

func (nopSink) Publish(StatusChange) {}
