// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presencestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/sqlitepool"
)

// sqliteMigrations is the schema history. Append only: an applied
// entry must never change.
var sqliteMigrations = []string{
	`CREATE TABLE employees (
		id             TEXT PRIMARY KEY,
		company_id     TEXT NOT NULL,
		name           TEXT NOT NULL,
		department     TEXT NOT NULL DEFAULT '',
		activation_key TEXT NOT NULL UNIQUE,
		hardware_id    TEXT,
		created_at     INTEGER NOT NULL,
		activated_at   INTEGER,
		deactivated_at INTEGER,
		last_heartbeat INTEGER
	);
	CREATE UNIQUE INDEX employees_hardware ON employees(hardware_id)
		WHERE hardware_id IS NOT NULL;
	CREATE INDEX employees_company ON employees(company_id, name);

	CREATE TABLE events (
		sequence    INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		company_id  TEXT NOT NULL,
		kind        TEXT NOT NULL,
		status      TEXT NOT NULL,
		client_time INTEGER,
		received_at INTEGER NOT NULL
	);
	CREATE INDEX events_employee ON events(employee_id, received_at, sequence);
	CREATE INDEX events_company ON events(company_id, received_at, sequence);`,
}

const employeeColumns = `id, company_id, name, department, activation_key, hardware_id,
	created_at, activated_at, deactivated_at, last_heartbeat`

const eventColumns = `sequence, id, employee_id, company_id, kind, status,
	client_time, received_at`

// SQLite is a Store backed by one SQLite database file.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at path and brings its
// schema up to date.
func OpenSQLite(path string, poolSize int, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:       path,
		PoolSize:   poolSize,
		Migrations: sqliteMigrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("presence store: %w", err)
	}
	store := &SQLite{pool: pool, logger: logger}

	// Take one connection now so schema errors surface at startup
	// rather than on the first request.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("presence store: %w", err)
	}
	pool.Put(conn)
	return store, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func (s *SQLite) CreateEmployee(ctx context.Context, employee presence.Employee) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("presence store: create employee: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO employees (`+employeeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				employee.ID,
				employee.CompanyID,
				employee.Name,
				employee.Department,
				employee.ActivationKey,
				nullText(employee.HardwareID),
				employee.CreatedAt.UnixNano(),
				nullTime(employee.ActivatedAt),
				nullTime(employee.DeactivatedAt),
				nullTime(employee.LastHeartbeat),
			},
		})
	if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique && strings.Contains(err.Error(), "activation_key") {
		return presence.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("presence store: create employee: %w", err)
	}
	return nil
}

func (s *SQLite) EmployeeByID(ctx context.Context, id string) (presence.Employee, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: employee by id: %w", err)
	}
	defer s.pool.Put(conn)
	return s.employeeWhere(conn, "id = ?", id)
}

func (s *SQLite) EmployeeByKey(ctx context.Context, activationKey string) (presence.Employee, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: employee by key: %w", err)
	}
	defer s.pool.Put(conn)
	return s.employeeWhere(conn, "activation_key = ?", activationKey)
}

// employeeWhere loads the single employee matching condition.
func (s *SQLite) employeeWhere(conn *sqlite.Conn, condition string, arg any) (presence.Employee, error) {
	var (
		employee presence.Employee
		found    bool
	)
	err := sqlitex.Execute(conn,
		"SELECT "+employeeColumns+" FROM employees WHERE "+condition,
		&sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				employee = scanEmployee(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: query employee: %w", err)
	}
	if !found {
		return presence.Employee{}, fmt.Errorf("employee: %w", presence.ErrNotFound)
	}
	return employee, nil
}

func (s *SQLite) ListEmployees(ctx context.Context, companyID string) ([]presence.Employee, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence store: list employees: %w", err)
	}
	defer s.pool.Put(conn)

	var employees []presence.Employee
	err = sqlitex.Execute(conn,
		"SELECT "+employeeColumns+" FROM employees WHERE company_id = ? ORDER BY name, id",
		&sqlitex.ExecOptions{
			Args: []any{companyID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				employees = append(employees, scanEmployee(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("presence store: list employees: %w", err)
	}
	return employees, nil
}

func (s *SQLite) ListCompanies(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence store: list companies: %w", err)
	}
	defer s.pool.Put(conn)

	var companies []string
	err = sqlitex.Execute(conn,
		"SELECT DISTINCT company_id FROM employees ORDER BY company_id",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				companies = append(companies, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("presence store: list companies: %w", err)
	}
	return companies, nil
}

func (s *SQLite) BindHardware(ctx context.Context, employeeID, hardwareID string, at time.Time) (_ presence.Employee, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: bind hardware: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	employee, err := s.employeeWhere(conn, "id = ?", employeeID)
	if err != nil {
		return presence.Employee{}, err
	}
	if employee.HardwareID == hardwareID {
		return employee, nil
	}
	if employee.HardwareID != "" {
		return presence.Employee{}, presence.ErrHardwareMismatch
	}

	err = sqlitex.Execute(conn,
		"UPDATE employees SET hardware_id = ?, activated_at = ? WHERE id = ? AND hardware_id IS NULL",
		&sqlitex.ExecOptions{Args: []any{hardwareID, at.UnixNano(), employeeID}})
	if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
		return presence.Employee{}, presence.ErrAlreadyBound
	}
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: bind hardware: %w", err)
	}
	employee.HardwareID = hardwareID
	employee.ActivatedAt = time.Unix(0, at.UnixNano()).UTC()
	return employee, nil
}

func (s *SQLite) Deactivate(ctx context.Context, employeeID string, at time.Time) (_ presence.Employee, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: deactivate: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"UPDATE employees SET deactivated_at = ? WHERE id = ? AND deactivated_at IS NULL",
		&sqlitex.ExecOptions{Args: []any{at.UnixNano(), employeeID}})
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: deactivate: %w", err)
	}
	return s.employeeWhere(conn, "id = ?", employeeID)
}

func (s *SQLite) AppendEvent(ctx context.Context, event presence.Event) (_ presence.Event, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: append event: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	received := event.ReceivedAt.UnixNano()
	err = sqlitex.Execute(conn,
		"UPDATE employees SET last_heartbeat = MAX(COALESCE(last_heartbeat, 0), ?) WHERE id = ?",
		&sqlitex.ExecOptions{Args: []any{received, event.EmployeeID}})
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: update last heartbeat: %w", err)
	}
	if conn.Changes() == 0 {
		return presence.Event{}, fmt.Errorf("employee %s: %w", event.EmployeeID, presence.ErrNotFound)
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO events (id, employee_id, company_id, kind, status, client_time, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				event.ID,
				event.EmployeeID,
				event.CompanyID,
				string(event.Kind),
				string(event.Status),
				nullTime(event.ClientTime),
				received,
			},
		})
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: insert event: %w", err)
	}
	event.Sequence = conn.LastInsertRowID()
	event.ReceivedAt = time.Unix(0, received).UTC()
	return event, nil
}

func (s *SQLite) LatestEvent(ctx context.Context, employeeID string) (presence.Event, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return presence.Event{}, false, fmt.Errorf("presence store: latest event: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		event presence.Event
		found bool
	)
	err = sqlitex.Execute(conn,
		"SELECT "+eventColumns+` FROM events WHERE employee_id = ?
		 ORDER BY received_at DESC, sequence DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{employeeID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				event = scanEvent(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return presence.Event{}, false, fmt.Errorf("presence store: latest event: %w", err)
	}
	return event, found, nil
}

func (s *SQLite) LatestEvents(ctx context.Context, companyID string) (map[string]presence.Event, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence store: latest events: %w", err)
	}
	defer s.pool.Put(conn)

	latest := make(map[string]presence.Event)
	err = sqlitex.Execute(conn,
		"SELECT "+eventColumns+` FROM events AS e
		 WHERE e.company_id = ? AND e.sequence = (
			SELECT newest.sequence FROM events AS newest
			WHERE newest.employee_id = e.employee_id
			ORDER BY newest.received_at DESC, newest.sequence DESC LIMIT 1)`,
		&sqlitex.ExecOptions{
			Args: []any{companyID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				event := scanEvent(stmt)
				latest[event.EmployeeID] = event
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("presence store: latest events: %w", err)
	}
	return latest, nil
}

func (s *SQLite) ListEvents(ctx context.Context, query presence.EventQuery) ([]presence.Event, error) {
	if query.CompanyID == "" {
		return nil, fmt.Errorf("%w: company id is required", presence.ErrInvalidRequest)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence store: list events: %w", err)
	}
	defer s.pool.Put(conn)

	conditions := []string{"company_id = ?"}
	args := []any{query.CompanyID}
	if query.EmployeeID != "" {
		conditions = append(conditions, "employee_id = ?")
		args = append(args, query.EmployeeID)
	}
	if !query.Since.IsZero() {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, query.Since.UnixNano())
	}
	if !query.Until.IsZero() {
		conditions = append(conditions, "received_at <= ?")
		args = append(args, query.Until.UnixNano())
	}

	statement := "SELECT " + eventColumns + " FROM events WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY received_at, sequence"
	if query.Limit > 0 {
		statement += " LIMIT ?"
		args = append(args, query.Limit)
	}

	var events []presence.Event
	err = sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			events = append(events, scanEvent(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("presence store: list events: %w", err)
	}
	return events, nil
}

func scanEmployee(stmt *sqlite.Stmt) presence.Employee {
	return presence.Employee{
		ID:            stmt.ColumnText(0),
		CompanyID:     stmt.ColumnText(1),
		Name:          stmt.ColumnText(2),
		Department:    stmt.ColumnText(3),
		ActivationKey: stmt.ColumnText(4),
		HardwareID:    stmt.ColumnText(5),
		CreatedAt:     time.Unix(0, stmt.ColumnInt64(6)).UTC(),
		ActivatedAt:   columnTime(stmt, 7),
		DeactivatedAt: columnTime(stmt, 8),
		LastHeartbeat: columnTime(stmt, 9),
	}
}

func scanEvent(stmt *sqlite.Stmt) presence.Event {
	return presence.Event{
		Sequence:   stmt.ColumnInt64(0),
		ID:         stmt.ColumnText(1),
		EmployeeID: stmt.ColumnText(2),
		CompanyID:  stmt.ColumnText(3),
		Kind:       presence.EventKind(stmt.ColumnText(4)),
		Status:     presence.ReportedStatus(stmt.ColumnText(5)),
		ClientTime: columnTime(stmt, 6),
		ReceivedAt: time.Unix(0, stmt.ColumnInt64(7)).UTC(),
	}
}

func columnTime(stmt *sqlite.Stmt, column int) time.Time {
	if stmt.ColumnIsNull(column) {
		return time.Time{}
	}
	return time.Unix(0, stmt.ColumnInt64(column)).UTC()
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func nullText(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ presence.Store = (*SQLite)(nil)
