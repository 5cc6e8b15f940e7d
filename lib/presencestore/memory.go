// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presencestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
)

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex

	employees map[string]presence.Employee // by id
	byKey     map[string]string            // activation key -> id
	byHW      map[string]string            // hardware id -> id
	events    []presence.Event             // append order
	latest    map[string]int               // employee id -> index into events
	sequence  int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		employees: make(map[string]presence.Employee),
		byKey:     make(map[string]string),
		byHW:      make(map[string]string),
		latest:    make(map[string]int),
	}
}

func (m *Memory) CreateEmployee(_ context.Context, employee presence.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[employee.ActivationKey]; exists {
		return presence.ErrDuplicateKey
	}
	if _, exists := m.employees[employee.ID]; exists {
		return fmt.Errorf("employee %s already exists", employee.ID)
	}
	m.employees[employee.ID] = employee
	m.byKey[employee.ActivationKey] = employee.ID
	if employee.HardwareID != "" {
		m.byHW[employee.HardwareID] = employee.ID
	}
	return nil
}

func (m *Memory) EmployeeByID(_ context.Context, id string) (presence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	employee, ok := m.employees[id]
	if !ok {
		return presence.Employee{}, fmt.Errorf("employee %s: %w", id, presence.ErrNotFound)
	}
	return employee, nil
}

func (m *Memory) EmployeeByKey(_ context.Context, activationKey string) (presence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[activationKey]
	if !ok {
		return presence.Employee{}, fmt.Errorf("activation key: %w", presence.ErrNotFound)
	}
	return m.employees[id], nil
}

func (m *Memory) ListEmployees(_ context.Context, companyID string) ([]presence.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []presence.Employee
	for _, employee := range m.employees {
		if employee.CompanyID == companyID {
			result = append(result, employee)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) ListCompanies(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var companies []string
	for _, employee := range m.employees {
		if !seen[employee.CompanyID] {
			seen[employee.CompanyID] = true
			companies = append(companies, employee.CompanyID)
		}
	}
	sort.Strings(companies)
	return companies, nil
}

func (m *Memory) BindHardware(_ context.Context, employeeID, hardwareID string, at time.Time) (presence.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee, ok := m.employees[employeeID]
	if !ok {
		return presence.Employee{}, fmt.Errorf("employee %s: %w", employeeID, presence.ErrNotFound)
	}
	if employee.HardwareID == hardwareID {
		return employee, nil
	}
	if employee.HardwareID != "" {
		return presence.Employee{}, presence.ErrHardwareMismatch
	}
	if owner, taken := m.byHW[hardwareID]; taken && owner != employeeID {
		return presence.Employee{}, presence.ErrAlreadyBound
	}
	employee.HardwareID = hardwareID
	employee.ActivatedAt = at
	m.employees[employeeID] = employee
	m.byHW[hardwareID] = employeeID
	return employee, nil
}

func (m *Memory) Deactivate(_ context.Context, employeeID string, at time.Time) (presence.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee, ok := m.employees[employeeID]
	if !ok {
		return presence.Employee{}, fmt.Errorf("employee %s: %w", employeeID, presence.ErrNotFound)
	}
	if employee.DeactivatedAt.IsZero() {
		employee.DeactivatedAt = at
		m.employees[employeeID] = employee
	}
	return employee, nil
}

func (m *Memory) AppendEvent(_ context.Context, event presence.Event) (presence.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee, ok := m.employees[event.EmployeeID]
	if !ok {
		return presence.Event{}, fmt.Errorf("employee %s: %w", event.EmployeeID, presence.ErrNotFound)
	}
	m.sequence++
	event.Sequence = m.sequence
	m.events = append(m.events, event)

	index := len(m.events) - 1
	if previous, ok := m.latest[event.EmployeeID]; !ok || event.Newer(m.events[previous]) {
		m.latest[event.EmployeeID] = index
	}
	if event.ReceivedAt.After(employee.LastHeartbeat) {
		employee.LastHeartbeat = event.ReceivedAt
		m.employees[event.EmployeeID] = employee
	}
	return event, nil
}

func (m *Memory) LatestEvent(_ context.Context, employeeID string) (presence.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	index, ok := m.latest[employeeID]
	if !ok {
		return presence.Event{}, false, nil
	}
	return m.events[index], true, nil
}

func (m *Memory) LatestEvents(_ context.Context, companyID string) (map[string]presence.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]presence.Event)
	for employeeID, index := range m.latest {
		event := m.events[index]
		if event.CompanyID == companyID {
			result[employeeID] = event
		}
	}
	return result, nil
}

func (m *Memory) ListEvents(_ context.Context, query presence.EventQuery) ([]presence.Event, error) {
	if query.CompanyID == "" {
		return nil, fmt.Errorf("%w: company id is required", presence.ErrInvalidRequest)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []presence.Event
	for _, event := range m.events {
		if !matches(event, query) {
			continue
		}
		result = append(result, event)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[j].Newer(result[i])
	})
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

func matches(event presence.Event, query presence.EventQuery) bool {
	if event.CompanyID != query.CompanyID {
		return false
	}
	if query.EmployeeID != "" && event.EmployeeID != query.EmployeeID {
		return false
	}
	if !query.Since.IsZero() && event.ReceivedAt.Before(query.Since) {
		return false
	}
	if !query.Until.IsZero() && event.ReceivedAt.After(query.Until) {
		return false
	}
	return true
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

var _ presence.Store = (*Memory)(nil)
