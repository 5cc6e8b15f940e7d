// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statuswatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/presence"
)

// DefaultSweepInterval is how often the Sweeper re-derives statuses.
// It bounds how late a timeout-driven change is noticed.
const DefaultSweepInterval = 2 * time.Second

// StatusSource is the part of presence.Tracker the Sweeper reads.
type StatusSource interface {
	Policy() presence.Policy
	Companies(ctx context.Context) ([]string, error)
	ListStatuses(ctx context.Context, companyID string) ([]presence.EmployeeStatus, error)
	Events(ctx context.Context, companyID string, query presence.EventQuery) ([]presence.Event, error)
}

// SweeperConfig wires a Sweeper. Source, Clock and Sink are required.
type SweeperConfig struct {
	Source   StatusSource
	Clock    clock.Clock
	Sink     presence.Sink
	Interval time.Duration
	Logger   *slog.Logger
}

// observation is what one sweep saw for one employee.
type observation struct {
	status presence.Status
	event  string // id of the latest event, "" if none
}

// companySnapshot is one company's result from the last successful
// sweep.
type companySnapshot struct {
	at        time.Time
	employees map[string]observation
}

// Sweeper publishes status changes caused by time passing.
type Sweeper struct {
	source   StatusSource
	clock    clock.Clock
	sink     presence.Sink
	interval time.Duration
	logger   *slog.Logger

	// snapshot maps company id to the last sweep's observations.
	// Only Sweep touches it.
	snapshot map[string]companySnapshot
}

// NewSweeper validates cfg.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("statuswatch: Source is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("statuswatch: Clock is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("statuswatch: Sink is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		source:   cfg.Source,
		clock:    cfg.Clock,
		sink:     cfg.Sink,
		interval: interval,
		logger:   logger,
		snapshot: make(map[string]companySnapshot),
	}, nil
}

// Run sweeps once immediately and then every interval until ctx is
// done. Sweep errors are logged; the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.Sweep(ctx); err != nil {
		s.logger.Warn("status sweep failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Warn("status sweep failed", "error", err)
			}
		}
	}
}

// Sweep re-derives every company's statuses and publishes the changes
// caused by time passing since the previous sweep. When an employee's
// latest event is unchanged, that is a plain diff against the previous
// sweep. When new events arrived in between, the interval is replayed
// from the event log and only the window expiries are published; the
// tracker already published the changes the events caused. The first
// sweep of a company only records a baseline.
func (s *Sweeper) Sweep(ctx context.Context) error {
	companies, err := s.source.Companies(ctx)
	if err != nil {
		return fmt.Errorf("listing companies: %w", err)
	}
	now := s.clock.Now().UTC()
	next := make(map[string]companySnapshot, len(companies))

	var firstErr error
	for _, companyID := range companies {
		statuses, err := s.source.ListStatuses(ctx, companyID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("listing statuses for %s: %w", companyID, err)
			}
			// Carry the old baseline so the next sweep still diffs
			// against it.
			if previous, ok := s.snapshot[companyID]; ok {
				next[companyID] = previous
			}
			continue
		}

		previousCompany, hadPrevious := s.snapshot[companyID]
		current := companySnapshot{at: now, employees: make(map[string]observation, len(statuses))}
		for _, status := range statuses {
			observed := observation{status: status.Status}
			if status.LastEvent != nil {
				observed.event = status.LastEvent.ID
			}
			current.employees[status.Employee.ID] = observed

			if !hadPrevious {
				continue
			}
			previous, known := previousCompany.employees[status.Employee.ID]
			if !known {
				continue
			}
			if previous.event == observed.event {
				if previous.status != observed.status {
					s.publish(status.Employee, companyID, previous.status, observed.status, now)
				}
				continue
			}
			if err := s.replayExpiries(ctx, status.Employee, companyID, previousCompany.at, now); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		next[companyID] = current
	}
	s.snapshot = next
	return firstErr
}

// replayExpiries rebuilds the employee's timeline over (since, now]
// and publishes each transition that no event caused: a present report
// aging into away, or any report aging into offline, between two
// heartbeats that both landed within one sweep interval.
func (s *Sweeper) replayExpiries(ctx context.Context, employee presence.Employee, companyID string, since, now time.Time) error {
	policy := s.source.Policy()
	events, err := s.source.Events(ctx, companyID, presence.EventQuery{
		EmployeeID: employee.ID,
		Since:      since.Add(-policy.OfflineTimeout),
		Until:      now,
	})
	if err != nil {
		return fmt.Errorf("replaying events for %s: %w", employee.ID, err)
	}
	received := make(map[int64]bool, len(events))
	for _, event := range events {
		received[event.ReceivedAt.UnixNano()] = true
	}
	segments := policy.Timeline(events, since, now)
	for index := 1; index < len(segments); index++ {
		at := segments[index].Start
		if received[at.UnixNano()] {
			continue
		}
		s.publish(employee, companyID, segments[index-1].Status, segments[index].Status, at)
	}
	return nil
}

func (s *Sweeper) publish(employee presence.Employee, companyID string, from, to presence.Status, at time.Time) {
	s.logger.Debug("status timed out",
		"company_id", companyID,
		"employee_id", employee.ID,
		"from", string(from),
		"to", string(to),
	)
	s.sink.Publish(presence.StatusChange{
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		CompanyID:    companyID,
		From:         from,
		To:           to,
		At:           at,
		Cause:        presence.CauseTimeout,
	})
}
