// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"time"
)

// Store is the shared persistent state behind a Tracker. Each method is
// atomic on its own; the tracker never spans a transaction across
// calls. Implementations live in lib/presencestore.
//
// Lookups that find nothing return an error wrapping ErrNotFound.
type Store interface {
	// CreateEmployee inserts a new record. Returns ErrDuplicateKey if
	// the activation key is taken.
	CreateEmployee(ctx context.Context, employee Employee) error

	EmployeeByID(ctx context.Context, id string) (Employee, error)
	EmployeeByKey(ctx context.Context, activationKey string) (Employee, error)

	// ListEmployees returns only rows whose company matches, ordered
	// by name.
	ListEmployees(ctx context.Context, companyID string) ([]Employee, error)

	// ListCompanies returns every company id with at least one
	// employee, sorted.
	ListCompanies(ctx context.Context) ([]string, error)

	// BindHardware sets the hardware id if none is set and returns the
	// resulting record. A record already bound to hardwareID is
	// returned unchanged. Returns ErrHardwareMismatch if bound to
	// something else and ErrAlreadyBound if hardwareID belongs to a
	// different employee.
	BindHardware(ctx context.Context, employeeID, hardwareID string, at time.Time) (Employee, error)

	// Deactivate stamps DeactivatedAt if unset. Idempotent.
	Deactivate(ctx context.Context, employeeID string, at time.Time) (Employee, error)

	// AppendEvent inserts the event, assigns its Sequence, and raises
	// the employee's LastHeartbeat to the event's receipt time (never
	// lowers it), all in one transaction.
	AppendEvent(ctx context.Context, event Event) (Event, error)

	// LatestEvent returns the newest event for an employee by receipt
	// time then sequence. ok is false if there are none.
	LatestEvent(ctx context.Context, employeeID string) (event Event, ok bool, err error)

	// LatestEvents returns the newest event per employee for one
	// company, keyed by employee id.
	LatestEvents(ctx context.Context, companyID string) (map[string]Event, error)

	// ListEvents returns events matching query, oldest first.
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)

	Close() error
}

// EventQuery selects events. CompanyID is mandatory.
type EventQuery struct {
	CompanyID  string
	EmployeeID string

	// Since and Until bound ReceivedAt, inclusive. Zero means open.
	Since time.Time
	Until time.Time

	// Limit caps the result; zero means no cap.
	Limit int
}
