/*
Package sqlite provides a SQLite-backed implementation of the payroll ports.

PURPOSE:
  Persists work sessions, compensation plans, calculation output,
  compensatory-day grants and the operator holiday calendar. The same
  schema ports to PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  payroll.WorkSessionSource:      Sessions of an employee-month
  payroll.CompensationPlanSource: Active plan, normalized by factory
  payroll.PayrollResultSink:      Daily/monthly upserts and grants
  holidays.FactStore:             Stored holiday entries

IDEMPOTENCE:
  Recalculation writes the same rows again:
  - daily_calculations is upserted on (employee_id, work_date); days of
    the month that no longer have sessions are deleted in the same
    transaction, and a month without sessions is cleared
  - monthly_summaries is upserted on (employee_id, year, month)
  - compensatory_days is UNIQUE on (employee_id, date_earned, reason);
    a second grant is a no-op that returns the existing row

KEY TABLES:
  work_sessions:      Check-in/check-out records (start_unix for range scans)
  compensation_plans: Plan documents (factory.PlanJSON), one per employee
  daily_calculations: DailyResult JSON per employee-date
  monthly_summaries:  MonthlyResult JSON per employee-month
  compensatory_days:  Grants and their usage
  holidays:           Operator-maintained paid holidays (optionally recurring)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/payroll.db", sqlite.WithLocation(loc))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewService(store, store, store, lookup)

SEE ALSO:
  - payroll/ports.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
  - factory/plan.go: Plan normalization applied on load
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

const (
	timeFormat = time.RFC3339Nano
	dateFormat = "2006-01-02"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	loc   *time.Location
	plans *factory.PlanFactory
	now   func() time.Time
}

type Option func(*Store)

// WithLocation sets the zone sessions and dates are returned in.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPlanFactory sets the factory used to normalize stored plans.
func WithPlanFactory(f *factory.PlanFactory) Option {
	return func(s *Store) { s.plans = f }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db:    db,
		loc:   time.UTC,
		plans: factory.NewPlanFactory("ILS"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_at TEXT NOT NULL,
		start_unix INTEGER NOT NULL,
		end_at TEXT,
		end_unix INTEGER,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Month scans (hot path)
	CREATE INDEX IF NOT EXISTS idx_work_sessions_employee_start
		ON work_sessions(employee_id, start_unix);

	CREATE TABLE IF NOT EXISTS compensation_plans (
		employee_id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_calculations (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		total_pay TEXT NOT NULL,
		result_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date)
	);

	CREATE TABLE IF NOT EXISTS monthly_summaries (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		total_gross_pay TEXT NOT NULL,
		result_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year, month)
	);

	-- One grant per employee, date and reason
	CREATE TABLE IF NOT EXISTS compensatory_days (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date_earned TEXT NOT NULL,
		reason TEXT NOT NULL,
		date_used TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, date_earned, reason)
	);

	CREATE INDEX IF NOT EXISTS idx_compensatory_days_employee
		ON compensatory_days(employee_id, date_earned);

	-- Operator-maintained holidays; recurring entries match on month-day
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT TRUE,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_date
		ON holidays(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORK SESSIONS (payroll.WorkSessionSource)
// =============================================================================

// SaveSession inserts or replaces a session, assigning an ID when empty.
func (s *Store) SaveSession(ctx context.Context, ws payroll.WorkSession) (payroll.WorkSession, error) {
	if ws.ID == "" {
		ws.ID = payroll.SessionID(uuid.NewString())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO work_sessions
		(id, employee_id, start_at, start_unix, end_at, end_unix, break_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			start_at = excluded.start_at,
			start_unix = excluded.start_unix,
			end_at = excluded.end_at,
			end_unix = excluded.end_unix,
			break_minutes = excluded.break_minutes,
			updated_at = excluded.updated_at
	`

	var endAt sql.NullString
	var endUnix sql.NullInt64
	if ws.End != nil {
		endAt = sql.NullString{String: ws.End.Format(timeFormat), Valid: true}
		endUnix = sql.NullInt64{Int64: ws.End.Unix(), Valid: true}
	}
	now := s.now().UTC().Format(timeFormat)

	_, err := s.db.ExecContext(ctx, query,
		string(ws.ID),
		string(ws.EmployeeID),
		ws.Start.Format(timeFormat),
		ws.Start.Unix(),
		endAt,
		endUnix,
		ws.BreakMinutes,
		now, now,
	)
	if err != nil {
		return payroll.WorkSession{}, fmt.Errorf("failed to save session: %w", err)
	}
	return ws, nil
}

// Sessions returns the sessions touching the month in the store location,
// ordered by start. Open sessions that started before the month ends are
// included so that the aggregator can report them.
func (s *Store) Sessions(ctx context.Context, employeeID payroll.EmployeeID, year int, month time.Month) ([]payroll.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := payroll.MonthBounds(year, month, s.loc)

	// A session is at most 24h long; the window below is a superset that the
	// loop narrows down.
	query := `
		SELECT id, employee_id, start_at, end_at, break_minutes
		FROM work_sessions
		WHERE employee_id = ?
		  AND start_unix < ?
		  AND (end_unix IS NULL OR end_unix > ?)
		ORDER BY start_unix ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(employeeID), to.Unix(), from.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []payroll.WorkSession
	for rows.Next() {
		ws, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		startsIn := !ws.Start.Before(from) && ws.Start.Before(to)
		endsIn := ws.End != nil && ws.End.After(from) && !ws.End.After(to)
		openIn := ws.End == nil && ws.Start.Before(to)
		if startsIn || endsIn || openIn {
			out = append(out, ws)
		}
	}
	return out, rows.Err()
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id payroll.SessionID) (*payroll.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, employee_id, start_at, end_at, break_minutes FROM work_sessions WHERE id = ?",
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ws, err := s.scanSession(rows)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id payroll.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM work_sessions WHERE id = ?", string(id))
	return err
}

func (s *Store) scanSession(rows *sql.Rows) (payroll.WorkSession, error) {
	var ws payroll.WorkSession
	var id, employeeID, startAt string
	var endAt sql.NullString

	if err := rows.Scan(&id, &employeeID, &startAt, &endAt, &ws.BreakMinutes); err != nil {
		return payroll.WorkSession{}, fmt.Errorf("failed to scan session: %w", err)
	}
	ws.ID = payroll.SessionID(id)
	ws.EmployeeID = payroll.EmployeeID(employeeID)

	start, err := time.Parse(timeFormat, startAt)
	if err != nil {
		return payroll.WorkSession{}, fmt.Errorf("session %s: bad start_at: %w", id, err)
	}
	ws.Start = start.In(s.loc)
	if endAt.Valid {
		end, err := time.Parse(timeFormat, endAt.String)
		if err != nil {
			return payroll.WorkSession{}, fmt.Errorf("session %s: bad end_at: %w", id, err)
		}
		end = end.In(s.loc)
		ws.End = &end
	}
	return ws, nil
}

// =============================================================================
// COMPENSATION PLANS (payroll.CompensationPlanSource)
// =============================================================================

// SavePlan normalizes pj and stores the normalized document.
func (s *Store) SavePlan(ctx context.Context, pj factory.PlanJSON) (payroll.CompensationPlan, error) {
	plan, err := s.plans.FromJSON(pj)
	if err != nil {
		return payroll.CompensationPlan{}, err
	}
	bs, err := json.Marshal(s.plans.ToJSON(plan))
	if err != nil {
		return payroll.CompensationPlan{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO compensation_plans (employee_id, config_json, version, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			config_json = excluded.config_json,
			version = compensation_plans.version + 1,
			updated_at = excluded.updated_at
	`
	now := s.now().UTC().Format(timeFormat)
	if _, err := s.db.ExecContext(ctx, query, string(plan.EmployeeID), string(bs), now, now); err != nil {
		return payroll.CompensationPlan{}, fmt.Errorf("failed to save plan: %w", err)
	}
	return plan, nil
}

// ActivePlan loads the stored document and normalizes it. A missing or
// unusable document is NotConfigured; only storage failures are errors.
func (s *Store) ActivePlan(ctx context.Context, employeeID payroll.EmployeeID) (payroll.PlanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM compensation_plans WHERE employee_id = ?",
		string(employeeID),
	).Scan(&configJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return payroll.NotConfigured(fmt.Sprintf("no compensation plan configured for employee %s", employeeID)), nil
	}
	if err != nil {
		return payroll.PlanResult{}, fmt.Errorf("failed to load plan: %w", err)
	}

	plan, err := s.plans.ParsePlan([]byte(configJSON))
	if err != nil {
		return payroll.NotConfigured(fmt.Sprintf("compensation plan for employee %s is unusable: %v", employeeID, err)), nil
	}
	return payroll.Configured(plan), nil
}

// PlanEmployees lists employees with a stored plan, sorted.
func (s *Store) PlanEmployees(ctx context.Context) ([]payroll.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT employee_id FROM compensation_plans ORDER BY employee_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, payroll.EmployeeID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// CALCULATION OUTPUT (payroll.PayrollResultSink)
// =============================================================================

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReplaceDaily upserts days and deletes the employee's other daily rows of
// the month, in one transaction, so a date that lost its sessions does not
// keep a stale result.
func (s *Store) ReplaceDaily(ctx context.Context, employeeID payroll.EmployeeID, year int, month time.Month, days []payroll.DailyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "DELETE FROM daily_calculations WHERE employee_id = ? AND work_date LIKE ?"
	args := []any{string(employeeID), monthPattern(year, month)}
	if len(days) > 0 {
		query += " AND work_date NOT IN (?" + strings.Repeat(", ?", len(days)-1) + ")"
		for _, d := range days {
			args = append(args, d.WorkDate.Format(dateFormat))
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete stale daily results: %w", err)
	}
	for _, d := range days {
		if err := s.upsertDaily(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily results: %w", err)
	}
	return nil
}

// ClearMonth deletes the daily and monthly results of an employee-month.
func (s *Store) ClearMonth(ctx context.Context, employeeID payroll.EmployeeID, year int, month time.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM daily_calculations WHERE employee_id = ? AND work_date LIKE ?",
		string(employeeID), monthPattern(year, month)); err != nil {
		return fmt.Errorf("failed to clear daily results: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM monthly_summaries WHERE employee_id = ? AND year = ? AND month = ?",
		string(employeeID), year, int(month)); err != nil {
		return fmt.Errorf("failed to clear monthly result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit month clear: %w", err)
	}
	return nil
}

func (s *Store) upsertDaily(ctx context.Context, db execer, r payroll.DailyResult) error {
	bs, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode daily result: %w", err)
	}

	query := `
		INSERT INTO daily_calculations (employee_id, work_date, total_pay, result_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, work_date) DO UPDATE SET
			total_pay = excluded.total_pay,
			result_json = excluded.result_json,
			updated_at = excluded.updated_at
	`
	_, err = db.ExecContext(ctx, query,
		string(r.EmployeeID),
		r.WorkDate.Format(dateFormat),
		r.TotalPay.String(),
		string(bs),
		s.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save daily result: %w", err)
	}
	return nil
}

// monthPattern matches the work_date column of every day of a month.
func monthPattern(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d-%%", year, int(month))
}

func (s *Store) SaveMonthly(ctx context.Context, r payroll.MonthlyResult) error {
	bs, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode monthly result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO monthly_summaries (employee_id, year, month, total_gross_pay, result_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			total_gross_pay = excluded.total_gross_pay,
			result_json = excluded.result_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		string(r.EmployeeID),
		r.Year,
		int(r.Month),
		r.TotalGrossPay.String(),
		string(bs),
		s.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save monthly result: %w", err)
	}
	return nil
}

// Daily returns the stored daily results of the month, ordered by date.
func (s *Store) Daily(ctx context.Context, employeeID payroll.EmployeeID, year int, month time.Month) ([]payroll.DailyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT result_json FROM daily_calculations
		WHERE employee_id = ? AND work_date LIKE ?
		ORDER BY work_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(employeeID), monthPattern(year, month))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily results: %w", err)
	}
	defer rows.Close()

	var out []payroll.DailyResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r payroll.DailyResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to decode daily result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Monthly returns the stored result and whether it exists.
func (s *Store) Monthly(ctx context.Context, employeeID payroll.EmployeeID, year int, month time.Month) (payroll.MonthlyResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT result_json FROM monthly_summaries WHERE employee_id = ? AND year = ? AND month = ?",
		string(employeeID), year, int(month),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.MonthlyResult{}, false, nil
	}
	if err != nil {
		return payroll.MonthlyResult{}, false, fmt.Errorf("failed to load monthly result: %w", err)
	}

	var r payroll.MonthlyResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return payroll.MonthlyResult{}, false, fmt.Errorf("failed to decode monthly result: %w", err)
	}
	return r, true, nil
}

// =============================================================================
// COMPENSATORY DAYS (payroll.CompensatoryGranter)
// =============================================================================

// GrantCompensatoryDay inserts the grant unless the (employee, date, reason)
// row exists; either way the stored row is returned.
func (s *Store) GrantCompensatoryDay(ctx context.Context, employeeID payroll.EmployeeID, date time.Time, reason payroll.CompensatoryReason) (bool, payroll.CompensatoryDayGrant, error) {
	if !reason.Valid() {
		return false, payroll.CompensatoryDayGrant{}, fmt.Errorf("unknown compensatory reason %q", reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dateEarned := date.Format(dateFormat)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO compensatory_days (id, employee_id, date_earned, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date_earned, reason) DO NOTHING
	`, uuid.NewString(), string(employeeID), dateEarned, string(reason), s.now().UTC().Format(timeFormat))
	if err != nil {
		return false, payroll.CompensatoryDayGrant{}, fmt.Errorf("failed to grant compensatory day: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, payroll.CompensatoryDayGrant{}, err
	}

	grant, err := s.scanGrant(s.db.QueryRowContext(ctx, grantSelect+`
		WHERE employee_id = ? AND date_earned = ? AND reason = ?
	`, string(employeeID), dateEarned, string(reason)))
	if err != nil {
		return false, payroll.CompensatoryDayGrant{}, err
	}
	return n == 1, grant, nil
}

// Grants lists an employee's grants ordered by date earned.
func (s *Store) Grants(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.CompensatoryDayGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, grantSelect+`
		WHERE employee_id = ?
		ORDER BY date_earned ASC, reason ASC
	`, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var out []payroll.CompensatoryDayGrant
	for rows.Next() {
		g, err := s.scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UseGrant marks a grant as taken on date.
func (s *Store) UseGrant(ctx context.Context, grantID string, date time.Time) (payroll.CompensatoryDayGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.scanGrant(s.db.QueryRowContext(ctx, grantSelect+" WHERE id = ?", grantID))
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.CompensatoryDayGrant{}, payroll.ErrGrantNotFound
	}
	if err != nil {
		return payroll.CompensatoryDayGrant{}, err
	}
	if g.IsUsed() {
		return g, payroll.ErrGrantAlreadyUsed
	}

	used := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	_, err = s.db.ExecContext(ctx,
		"UPDATE compensatory_days SET date_used = ? WHERE id = ? AND date_used IS NULL",
		used.Format(dateFormat), grantID,
	)
	if err != nil {
		return payroll.CompensatoryDayGrant{}, fmt.Errorf("failed to use grant: %w", err)
	}
	g.DateUsed = &used
	return g, nil
}

const grantSelect = `SELECT id, employee_id, date_earned, reason, date_used, created_at FROM compensatory_days`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanGrant(row rowScanner) (payroll.CompensatoryDayGrant, error) {
	var g payroll.CompensatoryDayGrant
	var employeeID, dateEarned, reason, createdAt string
	var dateUsed sql.NullString

	if err := row.Scan(&g.ID, &employeeID, &dateEarned, &reason, &dateUsed, &createdAt); err != nil {
		return payroll.CompensatoryDayGrant{}, err
	}
	g.EmployeeID = payroll.EmployeeID(employeeID)
	g.Reason = payroll.CompensatoryReason(reason)
	g.DateEarned, _ = time.ParseInLocation(dateFormat, dateEarned, s.loc)
	g.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if dateUsed.Valid {
		used, _ := time.ParseInLocation(dateFormat, dateUsed.String, s.loc)
		g.DateUsed = &used
	}
	return g, nil
}

// =============================================================================
// HOLIDAY CALENDAR (holidays.FactStore)
// =============================================================================

// Holiday is an operator-maintained calendar entry. A recurring entry
// applies to the same month and day of every year.
type Holiday struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Name      string    `json:"name"`
	IsPaid    bool      `json:"is_paid"`
	Recurring bool      `json:"recurring"`
}

// SaveHoliday inserts or replaces the entry for h.Date.
func (s *Store) SaveHoliday(ctx context.Context, h Holiday) (Holiday, error) {
	if strings.TrimSpace(h.Name) == "" {
		return Holiday{}, errors.New("holiday name is required")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, date, name, is_paid, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			name = excluded.name,
			is_paid = excluded.is_paid,
			recurring = excluded.recurring
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.Date.Format(dateFormat),
		h.Name,
		h.IsPaid,
		h.Recurring,
		s.now().UTC().Format(timeFormat),
	)
	if err != nil {
		return Holiday{}, fmt.Errorf("failed to save holiday: %w", err)
	}
	return h, nil
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// HolidayFact returns the stored entry for date, if any. An exact-date entry
// wins over a recurring one.
func (s *Store) HolidayFact(ctx context.Context, date time.Time) (payroll.HolidayFact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT name, is_paid FROM holidays
		WHERE date = ?
		   OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		ORDER BY CASE WHEN date = ? THEN 0 ELSE 1 END
		LIMIT 1
	`
	dateStr := date.Format(dateFormat)
	var fact payroll.HolidayFact
	err := s.db.QueryRowContext(ctx, query, dateStr, date.Format("01-02"), dateStr).
		Scan(&fact.Name, &fact.IsPaidHoliday)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.HolidayFact{}, false, nil
	}
	if err != nil {
		return payroll.HolidayFact{}, false, fmt.Errorf("failed to load holiday: %w", err)
	}
	fact.Date = payroll.DateOf(date)
	return fact, true, nil
}

// ListHolidays returns the entries that apply to year, with recurring
// entries moved into that year.
func (s *Store) ListHolidays(ctx context.Context, year int) ([]Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, date, name, is_paid, recurring
		FROM holidays
		WHERE recurring = TRUE OR strftime('%Y', date) = ?
	`
	rows, err := s.db.QueryContext(ctx, query, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Holiday
	for rows.Next() {
		var h Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &h.IsPaid, &h.Recurring); err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation(dateFormat, dateStr, s.loc)
		if err != nil {
			return nil, fmt.Errorf("holiday %s: bad date: %w", h.ID, err)
		}
		if h.Recurring {
			t = time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
		}
		h.Date = t
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
