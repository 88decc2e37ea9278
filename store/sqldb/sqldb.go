/*
Package sqldb provides a SQL-backed implementation of aia.Store.

PURPOSE:
  Persists payment applications in SQLite (mattn/go-sqlite3) or PostgreSQL
  (jackc/pgx via database/sql). The schema and queries are shared; only the
  placeholder syntax differs, and queries are written with "?" and rebound
  for PostgreSQL.

KEY TABLES:
  applications:   one row per application; summary inputs, derived figures,
                  status and version
  line_items:     continuation sheet rows, ordered by ordinal
  status_history: append-only status changes

STORED AS WRITTEN:
  Derived figures are stored and loaded verbatim, never recomputed on read,
  so an audit run can detect rows that were edited behind the engine's back.

COMMIT:
  One transaction:
    1. UPDATE applications ... SET version = version + 1
       WHERE id = ? AND version = ?
    2. zero rows → *aia.StaleWriteError (or ErrApplicationNotFound)
    3. replace line_items
    4. insert status_history entries newer than the stored ones

CONCURRENCY:
  SQLite uses a single connection and a sync.RWMutex. PostgreSQL relies on
  the version predicate in step 1.

MIGRATION:
  Schema is auto-migrated by OpenSQLite and OpenPostgres. For production,
  use a proper migration tool with versioned migrations.

SEE ALSO:
  - aia/store.go: interface definition
  - aia/store/memory.go: in-memory implementation for testing
*/
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/payapp-engine/aia"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Store implements aia.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

var _ aia.Store = (*Store)(nil)

// New wraps an open database. Call Migrate before use unless the schema
// already exists.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// OpenSQLite opens (or creates) a SQLite database at path.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: each ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)

	store := New(db, SQLite)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// OpenPostgres connects to PostgreSQL with the pgx driver.
func OpenPostgres(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := New(db, Postgres)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which database the store talks to.
func (s *Store) Dialect() Dialect { return s.dialect }

// =============================================================================
// SCHEMA
// =============================================================================

var schema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		application_number INTEGER NOT NULL,
		period_to TEXT NOT NULL,
		status TEXT NOT NULL,
		original_contract_sum BIGINT NOT NULL,
		net_change_by_change_orders BIGINT NOT NULL,
		retainage_percentage TEXT NOT NULL,
		less_previous_certificates BIGINT NOT NULL,
		total_completed_and_stored_to_date BIGINT NOT NULL,
		contract_sum_to_date BIGINT NOT NULL,
		retainage_amount BIGINT NOT NULL,
		total_earned_less_retainage BIGINT NOT NULL,
		current_payment_due BIGINT NOT NULL,
		balance_to_finish BIGINT NOT NULL,
		version BIGINT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (project_id, application_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_project ON applications(project_id)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		item_number TEXT NOT NULL,
		description TEXT NOT NULL,
		csi_division TEXT NOT NULL,
		csi_division_name TEXT NOT NULL,
		scheduled_value BIGINT NOT NULL,
		work_completed_previous BIGINT NOT NULL,
		work_completed_this_period BIGINT NOT NULL,
		materials_stored BIGINT NOT NULL,
		total_completed_and_stored BIGINT NOT NULL,
		percent_complete TEXT NOT NULL,
		balance_to_finish BIGINT NOT NULL,
		PRIMARY KEY (application_id, item_number)
	)`,
	`CREATE TABLE IF NOT EXISTS status_history (
		application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		note TEXT NOT NULL,
		changed_at TEXT NOT NULL,
		PRIMARY KEY (application_id, seq)
	)`,
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STORE OPERATIONS
// =============================================================================

const insertApplication = `INSERT INTO applications (
	id, project_id, application_number, period_to, status,
	original_contract_sum, net_change_by_change_orders, retainage_percentage, less_previous_certificates,
	total_completed_and_stored_to_date, contract_sum_to_date, retainage_amount,
	total_earned_less_retainage, current_payment_due, balance_to_finish,
	version, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Create inserts app at version 1.
func (s *Store) Create(ctx context.Context, app *aia.Application) (aia.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const version aia.Version = 1
	sm := app.Summary
	_, err = tx.ExecContext(ctx, s.rebind(insertApplication),
		string(app.ID), app.ProjectID, sm.ApplicationNumber, formatTime(sm.PeriodTo), string(sm.Status),
		sm.OriginalContractSum, sm.NetChangeByChangeOrders, sm.RetainagePercentage.String(), sm.LessPreviousCertificates,
		sm.TotalCompletedAndStoredToDate, sm.ContractSumToDate, sm.RetainageAmount,
		sm.TotalEarnedLessRetainage, sm.CurrentPaymentDue, sm.BalanceToFinish,
		int64(version), formatTime(app.CreatedAt), formatTime(app.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("%w: project %s number %d", aia.ErrDuplicateApplication, app.ProjectID, sm.ApplicationNumber)
		}
		return 0, fmt.Errorf("insert application: %w", err)
	}

	if err := s.insertItems(ctx, tx, app); err != nil {
		return 0, err
	}
	if err := s.insertHistory(ctx, tx, app.ID, app.History); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

const updateApplication = `UPDATE applications SET
	period_to = ?, status = ?,
	original_contract_sum = ?, net_change_by_change_orders = ?, retainage_percentage = ?, less_previous_certificates = ?,
	total_completed_and_stored_to_date = ?, contract_sum_to_date = ?, retainage_amount = ?,
	total_earned_less_retainage = ?, current_payment_due = ?, balance_to_finish = ?,
	version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`

// Commit replaces the stored snapshot when expected matches the stored version.
func (s *Store) Commit(ctx context.Context, app *aia.Application, expected aia.Version) (aia.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	sm := app.Summary
	res, err := tx.ExecContext(ctx, s.rebind(updateApplication),
		formatTime(sm.PeriodTo), string(sm.Status),
		sm.OriginalContractSum, sm.NetChangeByChangeOrders, sm.RetainagePercentage.String(), sm.LessPreviousCertificates,
		sm.TotalCompletedAndStoredToDate, sm.ContractSumToDate, sm.RetainageAmount,
		sm.TotalEarnedLessRetainage, sm.CurrentPaymentDue, sm.BalanceToFinish,
		formatTime(app.UpdatedAt),
		string(app.ID), int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var actual int64
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT version FROM applications WHERE id = ?`), string(app.ID)).Scan(&actual)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, aia.ErrApplicationNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, &aia.StaleWriteError{ID: app.ID, Expected: expected, Actual: aia.Version(actual)}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM line_items WHERE application_id = ?`), string(app.ID)); err != nil {
		return 0, fmt.Errorf("delete line items: %w", err)
	}
	if err := s.insertItems(ctx, tx, app); err != nil {
		return 0, err
	}

	var lastSeq int
	if err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(seq), 0) FROM status_history WHERE application_id = ?`),
		string(app.ID)).Scan(&lastSeq); err != nil {
		return 0, err
	}
	var fresh []aia.StatusChange
	for _, h := range app.History {
		if h.Seq > lastSeq {
			fresh = append(fresh, h)
		}
	}
	if err := s.insertHistory(ctx, tx, app.ID, fresh); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return expected + 1, nil
}

// Load reads one application with its ledger and history.
func (s *Store) Load(ctx context.Context, id aia.ApplicationID) (*aia.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, s.db, id)
}

// List returns applications ordered by project then number.
func (s *Store) List(ctx context.Context, filter aia.ListFilter) ([]*aia.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id FROM applications`
	var where []string
	var args []any
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY project_id, application_number"

	ids, err := s.queryIDs(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}

	apps := make([]*aia.Application, 0, len(ids))
	for _, id := range ids {
		app, err := s.load(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// NextApplicationNumber returns one past the highest number in the project.
func (s *Store) NextApplicationNumber(ctx context.Context, projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(application_number), 0) + 1 FROM applications WHERE project_id = ?`),
		projectID).Scan(&next)
	return next, err
}

// Reset deletes all data.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"status_history", "line_items", "applications"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

const selectApplication = `SELECT
	id, project_id, application_number, period_to, status,
	original_contract_sum, net_change_by_change_orders, retainage_percentage, less_previous_certificates,
	total_completed_and_stored_to_date, contract_sum_to_date, retainage_amount,
	total_earned_less_retainage, current_payment_due, balance_to_finish,
	version, created_at, updated_at
FROM applications WHERE id = ?`

func (s *Store) load(ctx context.Context, q queryer, id aia.ApplicationID) (*aia.Application, error) {
	var (
		app                            aia.Application
		appID, status, retainage       string
		periodTo, createdAt, updatedAt string
		version                        int64
	)
	sm := &app.Summary
	err := q.QueryRowContext(ctx, s.rebind(selectApplication), string(id)).Scan(
		&appID, &app.ProjectID, &sm.ApplicationNumber, &periodTo, &status,
		&sm.OriginalContractSum, &sm.NetChangeByChangeOrders, &retainage, &sm.LessPreviousCertificates,
		&sm.TotalCompletedAndStoredToDate, &sm.ContractSumToDate, &sm.RetainageAmount,
		&sm.TotalEarnedLessRetainage, &sm.CurrentPaymentDue, &sm.BalanceToFinish,
		&version, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, aia.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load application %s: %w", id, err)
	}

	app.ID = aia.ApplicationID(appID)
	app.Version = aia.Version(version)
	sm.Status = aia.Status(status)
	if sm.RetainagePercentage, err = aia.ParsePercent(retainage); err != nil {
		return nil, err
	}
	if sm.PeriodTo, err = parseTime(periodTo); err != nil {
		return nil, err
	}
	if app.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	app.Ledger = aia.RestoreLedger(items)

	if app.History, err = s.loadHistory(ctx, q, id); err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) loadItems(ctx context.Context, q queryer, id aia.ApplicationID) ([]aia.LineItem, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`SELECT
		item_number, description, csi_division, csi_division_name,
		scheduled_value, work_completed_previous, work_completed_this_period, materials_stored,
		total_completed_and_stored, percent_complete, balance_to_finish
	FROM line_items WHERE application_id = ? ORDER BY ordinal`), string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []aia.LineItem
	for rows.Next() {
		var item aia.LineItem
		var pct string
		if err := rows.Scan(
			&item.ItemNumber, &item.Description, &item.CSIDivision, &item.CSIDivisionName,
			&item.ScheduledValue, &item.WorkCompletedPrevious, &item.WorkCompletedThisPeriod, &item.MaterialsStored,
			&item.TotalCompletedAndStored, &pct, &item.BalanceToFinish,
		); err != nil {
			return nil, err
		}
		if item.PercentComplete, err = aia.ParsePercent(pct); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, q queryer, id aia.ApplicationID) ([]aia.StatusChange, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`SELECT seq, from_status, to_status, actor, note, changed_at
	FROM status_history WHERE application_id = ? ORDER BY seq`), string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []aia.StatusChange
	for rows.Next() {
		var h aia.StatusChange
		var from, to, at string
		if err := rows.Scan(&h.Seq, &from, &to, &h.Actor, &h.Note, &at); err != nil {
			return nil, err
		}
		h.From, h.To = aia.Status(from), aia.Status(to)
		if h.At, err = parseTime(at); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *Store) insertItems(ctx context.Context, q queryer, app *aia.Application) error {
	if app.Ledger == nil {
		return nil
	}
	stmt := s.rebind(`INSERT INTO line_items (
		application_id, ordinal, item_number, description, csi_division, csi_division_name,
		scheduled_value, work_completed_previous, work_completed_this_period, materials_stored,
		total_completed_and_stored, percent_complete, balance_to_finish
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for pos, item := range app.Ledger.Items() {
		if _, err := q.ExecContext(ctx, stmt,
			string(app.ID), pos, item.ItemNumber, item.Description, item.CSIDivision, item.CSIDivisionName,
			item.ScheduledValue, item.WorkCompletedPrevious, item.WorkCompletedThisPeriod, item.MaterialsStored,
			item.TotalCompletedAndStored, item.PercentComplete.String(), item.BalanceToFinish,
		); err != nil {
			return fmt.Errorf("insert line item %s: %w", item.ItemNumber, err)
		}
	}
	return nil
}

func (s *Store) insertHistory(ctx context.Context, q queryer, id aia.ApplicationID, history []aia.StatusChange) error {
	stmt := s.rebind(`INSERT INTO status_history (application_id, seq, from_status, to_status, actor, note, changed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, h := range history {
		if _, err := q.ExecContext(ctx, stmt,
			string(id), h.Seq, string(h.From), string(h.To), h.Actor, h.Note, formatTime(h.At),
		); err != nil {
			return fmt.Errorf("insert status change %d: %w", h.Seq, err)
		}
	}
	return nil
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]aia.ApplicationID, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []aia.ApplicationID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, aia.ApplicationID(id))
	}
	return ids, rows.Err()
}

// rebind rewrites "?" placeholders to "$1", "$2", ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
