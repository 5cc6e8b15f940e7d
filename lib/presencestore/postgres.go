// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presencestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/bureau-foundation/presence/lib/presence"
)

//go:embed migrations/*.sql
var postgresMigrations embed.FS

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Postgres is a Store shared by any number of service instances.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenPostgres connects with dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("presence store: opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("presence store: connecting to postgres: %w", err)
	}
	store := &Postgres{db: db, logger: logger}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// migrate applies every embedded migration not yet recorded in
// schema_migrations, in file name order, each in its own transaction.
func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`,
	); err != nil {
		return fmt.Errorf("presence store: creating schema_migrations: %w", err)
	}
	files, err := migrationFiles(postgresMigrations)
	if err != nil {
		return fmt.Errorf("presence store: listing migrations: %w", err)
	}
	for _, file := range files {
		var applied bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("presence store: checking migration %s: %w", file, err)
		}
		if applied {
			continue
		}
		if err := p.applyMigration(ctx, file); err != nil {
			return err
		}
		p.logger.Info("schema migration applied", "version", file)
	}
	return nil
}

func (p *Postgres) applyMigration(ctx context.Context, file string) error {
	script, err := postgresMigrations.ReadFile(file)
	if err != nil {
		return fmt.Errorf("presence store: reading migration %s: %w", file, err)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("presence store: begin migration %s: %w", file, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("presence store: applying migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, file, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("presence store: recording migration %s: %w", file, err)
	}
	return tx.Commit()
}

// migrationFiles lists the .sql files under migrations/ in order.
func migrationFiles(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, "migrations")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, "migrations/"+entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) CreateEmployee(ctx context.Context, employee presence.Employee) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO employees (`+employeeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
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
	)
	if isUniqueViolation(err, "employees_activation_key") {
		return presence.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("presence store: create employee: %w", err)
	}
	return nil
}

// queryer is the subset of *sql.DB and *sql.Tx the scans need.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) EmployeeByID(ctx context.Context, id string) (presence.Employee, error) {
	return pgEmployeeWhere(ctx, p.db, "id = $1", id)
}

func (p *Postgres) EmployeeByKey(ctx context.Context, activationKey string) (presence.Employee, error) {
	return pgEmployeeWhere(ctx, p.db, "activation_key = $1", activationKey)
}

func pgEmployeeWhere(ctx context.Context, q queryer, condition string, arg any) (presence.Employee, error) {
	row := q.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE "+condition, arg)
	employee, err := pgScanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return presence.Employee{}, fmt.Errorf("employee: %w", presence.ErrNotFound)
	}
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: query employee: %w", err)
	}
	return employee, nil
}

func (p *Postgres) ListEmployees(ctx context.Context, companyID string) ([]presence.Employee, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE company_id = $1 ORDER BY name, id", companyID)
	if err != nil {
		return nil, fmt.Errorf("presence store: list employees: %w", err)
	}
	defer rows.Close()

	var employees []presence.Employee
	for rows.Next() {
		employee, err := pgScanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("presence store: scanning employee: %w", err)
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence store: list employees: %w", err)
	}
	return employees, nil
}

func (p *Postgres) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT DISTINCT company_id FROM employees ORDER BY company_id")
	if err != nil {
		return nil, fmt.Errorf("presence store: list companies: %w", err)
	}
	defer rows.Close()

	var companies []string
	for rows.Next() {
		var company string
		if err := rows.Scan(&company); err != nil {
			return nil, fmt.Errorf("presence store: scanning company: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence store: list companies: %w", err)
	}
	return companies, nil
}

func (p *Postgres) BindHardware(ctx context.Context, employeeID, hardwareID string, at time.Time) (presence.Employee, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	employee, err := pgEmployeeWhere(ctx, tx, "id = $1 FOR UPDATE", employeeID)
	if err != nil {
		return presence.Employee{}, err
	}
	if employee.HardwareID == hardwareID {
		return employee, nil
	}
	if employee.HardwareID != "" {
		return presence.Employee{}, presence.ErrHardwareMismatch
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE employees SET hardware_id = $1, activated_at = $2 WHERE id = $3 AND hardware_id IS NULL",
		hardwareID, at.UnixNano(), employeeID)
	if isUniqueViolation(err, "employees_hardware") {
		return presence.Employee{}, presence.ErrAlreadyBound
	}
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: bind hardware: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, "employees_hardware") {
			return presence.Employee{}, presence.ErrAlreadyBound
		}
		return presence.Employee{}, fmt.Errorf("presence store: commit bind hardware: %w", err)
	}
	employee.HardwareID = hardwareID
	employee.ActivatedAt = time.Unix(0, at.UnixNano()).UTC()
	return employee, nil
}

func (p *Postgres) Deactivate(ctx context.Context, employeeID string, at time.Time) (presence.Employee, error) {
	_, err := p.db.ExecContext(ctx,
		"UPDATE employees SET deactivated_at = $1 WHERE id = $2 AND deactivated_at IS NULL",
		at.UnixNano(), employeeID)
	if err != nil {
		return presence.Employee{}, fmt.Errorf("presence store: deactivate: %w", err)
	}
	return pgEmployeeWhere(ctx, p.db, "id = $1", employeeID)
}

func (p *Postgres) AppendEvent(ctx context.Context, event presence.Event) (presence.Event, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	received := event.ReceivedAt.UnixNano()
	result, err := tx.ExecContext(ctx,
		"UPDATE employees SET last_heartbeat = GREATEST(COALESCE(last_heartbeat, 0), $1) WHERE id = $2",
		received, event.EmployeeID)
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: update last heartbeat: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return presence.Event{}, fmt.Errorf("employee %s: %w", event.EmployeeID, presence.ErrNotFound)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (id, employee_id, company_id, kind, status, client_time, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING sequence`,
		event.ID,
		event.EmployeeID,
		event.CompanyID,
		string(event.Kind),
		string(event.Status),
		nullTime(event.ClientTime),
		received,
	).Scan(&event.Sequence)
	if err != nil {
		return presence.Event{}, fmt.Errorf("presence store: insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return presence.Event{}, fmt.Errorf("presence store: commit event: %w", err)
	}
	event.ReceivedAt = time.Unix(0, received).UTC()
	return event, nil
}

func (p *Postgres) LatestEvent(ctx context.Context, employeeID string) (presence.Event, bool, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+` FROM events WHERE employee_id = $1
		 ORDER BY received_at DESC, sequence DESC LIMIT 1`, employeeID)
	event, err := pgScanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return presence.Event{}, false, nil
	}
	if err != nil {
		return presence.Event{}, false, fmt.Errorf("presence store: latest event: %w", err)
	}
	return event, true, nil
}

func (p *Postgres) LatestEvents(ctx context.Context, companyID string) (map[string]presence.Event, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT DISTINCT ON (employee_id) "+eventColumns+` FROM events
		 WHERE company_id = $1
		 ORDER BY employee_id, received_at DESC, sequence DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("presence store: latest events: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]presence.Event)
	for rows.Next() {
		event, err := pgScanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("presence store: scanning event: %w", err)
		}
		latest[event.EmployeeID] = event
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence store: latest events: %w", err)
	}
	return latest, nil
}

func (p *Postgres) ListEvents(ctx context.Context, query presence.EventQuery) ([]presence.Event, error) {
	if query.CompanyID == "" {
		return nil, fmt.Errorf("%w: company id is required", presence.ErrInvalidRequest)
	}
	conditions := []string{"company_id = $1"}
	args := []any{query.CompanyID}
	placeholder := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if query.EmployeeID != "" {
		conditions = append(conditions, "employee_id = "+placeholder(query.EmployeeID))
	}
	if !query.Since.IsZero() {
		conditions = append(conditions, "received_at >= "+placeholder(query.Since.UnixNano()))
	}
	if !query.Until.IsZero() {
		conditions = append(conditions, "received_at <= "+placeholder(query.Until.UnixNano()))
	}
	statement := "SELECT " + eventColumns + " FROM events WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY received_at, sequence"
	if query.Limit > 0 {
		statement += " LIMIT " + placeholder(query.Limit)
	}

	rows, err := p.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("presence store: list events: %w", err)
	}
	defer rows.Close()

	var events []presence.Event
	for rows.Next() {
		event, err := pgScanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("presence store: scanning event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence store: list events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func pgScanEmployee(row scanner) (presence.Employee, error) {
	var (
		employee                                  presence.Employee
		hardwareID                                sql.NullString
		createdAt                                 int64
		activatedAt, deactivatedAt, lastHeartbeat sql.NullInt64
	)
	err := row.Scan(
		&employee.ID,
		&employee.CompanyID,
		&employee.Name,
		&employee.Department,
		&employee.ActivationKey,
		&hardwareID,
		&createdAt,
		&activatedAt,
		&deactivatedAt,
		&lastHeartbeat,
	)
	if err != nil {
		return presence.Employee{}, err
	}
	employee.HardwareID = hardwareID.String
	employee.CreatedAt = time.Unix(0, createdAt).UTC()
	employee.ActivatedAt = fromNullNanos(activatedAt)
	employee.DeactivatedAt = fromNullNanos(deactivatedAt)
	employee.LastHeartbeat = fromNullNanos(lastHeartbeat)
	return employee, nil
}

func pgScanEvent(row scanner) (presence.Event, error) {
	var (
		event           presence.Event
		kind, status    string
		clientTime      sql.NullInt64
		receivedAtNanos int64
	)
	err := row.Scan(
		&event.Sequence,
		&event.ID,
		&event.EmployeeID,
		&event.CompanyID,
		&kind,
		&status,
		&clientTime,
		&receivedAtNanos,
	)
	if err != nil {
		return presence.Event{}, err
	}
	event.Kind = presence.EventKind(kind)
	event.Status = presence.ReportedStatus(status)
	event.ClientTime = fromNullNanos(clientTime)
	event.ReceivedAt = time.Unix(0, receivedAtNanos).UTC()
	return event, nil
}

func fromNullNanos(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return time.Unix(0, value.Int64).UTC()
}

// isUniqueViolation reports whether err is a unique violation on the
// named constraint or index.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

var _ presence.Store = (*Postgres)(nil)
