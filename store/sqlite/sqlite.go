/*
Package sqlite provides a SQLite-backed implementation of payroll.Store.

PURPOSE:
  Persists runs, pay lines, the approval ledger, benefits, refunds and the
  employee directory. In production the same schema ports to PostgreSQL
  with only dialect changes.

APPEND-ONLY ENFORCEMENT:
  The approval_ledger table is only ever INSERTed into:
  - No UPDATE statements on approval_ledger
  - No DELETE statements on approval_ledger (except Reset for demos)
  - seq is an AUTOINCREMENT key, so entries keep their insertion order

KEY TABLES:
  payroll_runs:          one row per run, status + cached actor stamps
  pay_lines:             keyed by (run_id, employee_id)
  approval_ledger:       append-only, foreign-keyed to payroll_runs
  benefits:              ancillary benefits with their review state
  benefit_applications:  keyed by (employee_id, benefit_id, run_id)
  benefit_templates, refunds, employees

UNIQUENESS:
  - idx_runs_entity_period: one run per (entity, period end)
  - benefit_applications primary key: a benefit posts once per run

CONCURRENCY:
  WithTx holds a write mutex for its duration so transactions from this
  process serialize. UpdateRun compares versions in its WHERE clause, which
  also catches writers in other processes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := payroll.NewService(store, engine)

SEE ALSO:
  - payroll/store.go: Interface definition
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements payroll.Store using SQLite.
type Store struct {
	*conn
	db *sql.DB
	mu sync.Mutex
}

var _ payroll.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{conn: &conn{q: db}, db: db}
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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		roster_json TEXT,
		created_by TEXT, created_by_at TEXT,
		reviewed_by TEXT, reviewed_by_at TEXT,
		published_by TEXT, published_by_at TEXT,
		manager_approved_by TEXT, manager_approved_by_at TEXT,
		finance_approved_by TEXT, finance_approved_by_at TEXT,
		locked_by TEXT, locked_by_at TEXT,
		rejected_by TEXT, rejected_by_at TEXT,
		unlocked_by TEXT, unlocked_by_at TEXT,
		rejection_reason TEXT,
		unlock_reason TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- At most one run per payroll cycle
	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_entity_period
		ON payroll_runs(entity, period_end);
	CREATE INDEX IF NOT EXISTS idx_runs_status
		ON payroll_runs(status);

	CREATE TABLE IF NOT EXISTS pay_lines (
		run_id TEXT NOT NULL REFERENCES payroll_runs(id),
		employee_id TEXT NOT NULL,
		employee_name TEXT,
		base_salary TEXT NOT NULL,
		allowances TEXT NOT NULL,
		deductions TEXT NOT NULL,
		bonus TEXT NOT NULL,
		benefit TEXT NOT NULL,
		net_pay TEXT NOT NULL,
		bank_status TEXT NOT NULL,
		bank_account_number TEXT,
		exceptions_json TEXT,
		notes TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (run_id, employee_id)
	);

	-- Approval ledger (append-only)
	CREATE TABLE IF NOT EXISTS approval_ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES payroll_runs(id),
		actor_id TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT NOT NULL,
		reason TEXT,
		metadata_json TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_run_at
		ON approval_ledger(run_id, at, seq);

	CREATE TABLE IF NOT EXISTS benefit_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		default_amount TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS benefits (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		review_state TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TEXT,
		rejection_reason TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_benefits_employee
		ON benefits(employee_id);

	-- Applied-to-run markers
	CREATE TABLE IF NOT EXISTS benefit_applications (
		employee_id TEXT NOT NULL,
		benefit_id TEXT NOT NULL REFERENCES benefits(id),
		run_id TEXT NOT NULL REFERENCES payroll_runs(id),
		amount TEXT NOT NULL,
		field TEXT NOT NULL,
		applied_by TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, benefit_id, run_id)
	);

	CREATE TABLE IF NOT EXISTS refunds (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		paid_in_run TEXT,
		paid_at TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refunds_employee
		ON refunds(employee_id);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		entity TEXT,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx runs fn inside one SQL transaction.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn: &conn{q: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"benefit_applications", "approval_ledger", "pay_lines", "refunds",
		"benefits", "benefit_templates", "payroll_runs", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// txStore is the Store handed to WithTx callbacks.
type txStore struct {
	*conn
}

// WithTx on an open transaction joins it.
func (ts *txStore) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	return fn(ts)
}

// =============================================================================
// CONN - Queries shared by the pool and by open transactions
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q querier
}

// =============================================================================
// LEDGER
// =============================================================================

func (c *conn) AppendEntry(ctx context.Context, e *generic.LedgerEntry) error {
	var metadataJSON sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadataJSON = nullString(string(b))
	}

	res, err := c.q.ExecContext(ctx, `
		INSERT INTO approval_ledger
		(run_id, actor_id, actor_role, action, from_status, to_status, reason, metadata_json, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SubjectID, e.ActorID, string(e.ActorRole), e.Action,
		nullString(e.FromStatus), e.ToStatus, nullString(e.Reason),
		metadataJSON, formatTime(e.At),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &generic.NotFoundError{Kind: "run", ID: e.SubjectID}
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.Seq = seq
	return nil
}

func (c *conn) LoadEntries(ctx context.Context, subjectID string) ([]generic.LedgerEntry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT seq, run_id, actor_id, actor_role, action, from_status, to_status, reason, metadata_json, at
		FROM approval_ledger WHERE run_id = ? ORDER BY at, seq`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []generic.LedgerEntry
	for rows.Next() {
		var e generic.LedgerEntry
		var role, at string
		var from, reason, metadataJSON sql.NullString
		if err := rows.Scan(&e.Seq, &e.SubjectID, &e.ActorID, &role, &e.Action,
			&from, &e.ToStatus, &reason, &metadataJSON, &at); err != nil {
			return nil, err
		}
		e.ActorRole = generic.Role(role)
		e.FromStatus = from.String
		e.Reason = reason.String
		e.At = parseTime(at)
		if metadataJSON.Valid {
			if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("ledger entry %d: bad metadata: %w", e.Seq, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// RUNS
// =============================================================================

// stampColumns lists the cached actor stamps in column order.
var stampColumns = []string{
	"created_by", "reviewed_by", "published_by", "manager_approved_by",
	"finance_approved_by", "locked_by", "rejected_by", "unlocked_by",
}

func stampsOf(st *payroll.RunState) []*payroll.Stamp {
	return []*payroll.Stamp{
		&st.CreatedBy, &st.ReviewedBy, &st.PublishedBy, &st.ApprovedByManager,
		&st.ApprovedByFinance, &st.LockedBy, &st.RejectedBy, &st.UnlockedBy,
	}
}

func stampArgs(st *payroll.RunState) []any {
	var args []any
	for _, stamp := range stampsOf(st) {
		if stamp.IsZero() {
			args = append(args, nil, nil)
			continue
		}
		args = append(args, stamp.By, formatTime(stamp.At))
	}
	return args
}

var runSelect = func() string {
	cols := []string{"id", "entity", "period_start", "period_end", "status", "roster_json"}
	for _, c := range stampColumns {
		cols = append(cols, c, c+"_at")
	}
	cols = append(cols, "rejection_reason", "unlock_reason", "version", "created_at", "updated_at")
	return "SELECT " + strings.Join(cols, ", ") + " FROM payroll_runs"
}()

func (c *conn) CreateRun(ctx context.Context, run payroll.PayrollRun) error {
	roster, err := json.Marshal(run.Roster)
	if err != nil {
		return err
	}

	cols := []string{"id", "entity", "period_start", "period_end", "status", "roster_json"}
	args := []any{
		string(run.ID), run.Entity, run.Period.Start.String(), run.Period.End.String(),
		string(run.Status), string(roster),
	}
	for _, col := range stampColumns {
		cols = append(cols, col, col+"_at")
	}
	args = append(args, stampArgs(&run.RunState)...)
	cols = append(cols, "rejection_reason", "unlock_reason", "version", "created_at", "updated_at")
	args = append(args,
		nullString(run.RejectionReason), nullString(run.UnlockReason),
		run.Version, formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
	)

	query := "INSERT INTO payroll_runs (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	if _, err := c.q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return payroll.ErrDuplicateRun
		}
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (c *conn) UpdateRun(ctx context.Context, run payroll.PayrollRun, expectedVersion int64) error {
	sets := []string{"status = ?"}
	args := []any{string(run.Status)}
	for _, col := range stampColumns {
		sets = append(sets, col+" = ?", col+"_at = ?")
	}
	args = append(args, stampArgs(&run.RunState)...)
	sets = append(sets, "rejection_reason = ?", "unlock_reason = ?", "version = ?", "updated_at = ?")
	args = append(args,
		nullString(run.RejectionReason), nullString(run.UnlockReason),
		run.Version, formatTime(run.UpdatedAt),
		string(run.ID), expectedVersion,
	)

	res, err := c.q.ExecContext(ctx,
		"UPDATE payroll_runs SET "+strings.Join(sets, ", ")+" WHERE id = ? AND version = ?",
		args...)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	existing, err := c.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &generic.NotFoundError{Kind: "run", ID: string(run.ID)}
	}
	return &generic.ConcurrencyError{Kind: "run", ID: string(run.ID), ExpectedVersion: expectedVersion}
}

func (c *conn) GetRun(ctx context.Context, id payroll.RunID) (*payroll.PayrollRun, error) {
	runs, err := c.queryRuns(ctx, runSelect+" WHERE id = ?", string(id))
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (c *conn) FindRun(ctx context.Context, entity string, period generic.PayPeriod) (*payroll.PayrollRun, error) {
	runs, err := c.queryRuns(ctx, runSelect+" WHERE entity = ? AND period_end = ?", entity, period.End.String())
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (c *conn) ListRuns(ctx context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	var where []string
	var args []any
	if filter.Entity != "" {
		where = append(where, "entity = ?")
		args = append(args, filter.Entity)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := runSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_end DESC, entity, id"
	return c.queryRuns(ctx, query, args...)
}

func (c *conn) queryRuns(ctx context.Context, query string, args ...any) ([]payroll.PayrollRun, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		var run payroll.PayrollRun
		var id, status, periodStart, periodEnd, createdAt, updatedAt string
		var roster, rejectionReason, unlockReason sql.NullString
		stampBy := make([]sql.NullString, len(stampColumns))
		stampAt := make([]sql.NullString, len(stampColumns))

		dest := []any{&id, &run.Entity, &periodStart, &periodEnd, &status, &roster}
		for i := range stampColumns {
			dest = append(dest, &stampBy[i], &stampAt[i])
		}
		dest = append(dest, &rejectionReason, &unlockReason, &run.Version, &createdAt, &updatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		run.ID = payroll.RunID(id)
		run.Status = payroll.RunStatus(status)
		run.Period = generic.PayPeriod{Start: parseDay(periodStart), End: parseDay(periodEnd)}
		if roster.Valid && roster.String != "" && roster.String != "null" {
			if err := json.Unmarshal([]byte(roster.String), &run.Roster); err != nil {
				return nil, fmt.Errorf("run %s: bad roster: %w", id, err)
			}
		}
		for i, stamp := range stampsOf(&run.RunState) {
			if stampBy[i].Valid {
				*stamp = payroll.Stamp{By: stampBy[i].String, At: parseTime(stampAt[i].String)}
			}
		}
		run.RejectionReason = rejectionReason.String
		run.UnlockReason = unlockReason.String
		run.CreatedAt = parseTime(createdAt)
		run.UpdatedAt = parseTime(updatedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// PAY LINES
// =============================================================================

const payLineColumns = `run_id, employee_id, employee_name, base_salary, allowances, deductions,
	bonus, benefit, net_pay, bank_status, bank_account_number, exceptions_json, notes, updated_at`

func (c *conn) SavePayLine(ctx context.Context, line payroll.PayLine) error {
	exceptions, err := json.Marshal(line.Exceptions)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO pay_lines (`+payLineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, employee_id) DO UPDATE SET
			employee_name = excluded.employee_name,
			base_salary = excluded.base_salary,
			allowances = excluded.allowances,
			deductions = excluded.deductions,
			bonus = excluded.bonus,
			benefit = excluded.benefit,
			net_pay = excluded.net_pay,
			bank_status = excluded.bank_status,
			bank_account_number = excluded.bank_account_number,
			exceptions_json = excluded.exceptions_json,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		string(line.RunID), string(line.EmployeeID), nullString(line.EmployeeName),
		line.BaseSalary, line.Allowances, line.Deductions, line.Bonus, line.Benefit, line.NetPay,
		string(line.BankStatus), nullString(line.BankAccountNumber), string(exceptions),
		nullString(line.Notes), formatTime(line.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &generic.NotFoundError{Kind: "run", ID: string(line.RunID)}
		}
		return fmt.Errorf("failed to save pay line: %w", err)
	}
	return nil
}

func (c *conn) GetPayLine(ctx context.Context, runID payroll.RunID, employeeID payroll.EmployeeID) (*payroll.PayLine, error) {
	lines, err := c.queryPayLines(ctx,
		"SELECT "+payLineColumns+" FROM pay_lines WHERE run_id = ? AND employee_id = ?",
		string(runID), string(employeeID))
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	return &lines[0], nil
}

func (c *conn) ListPayLines(ctx context.Context, runID payroll.RunID) ([]payroll.PayLine, error) {
	return c.queryPayLines(ctx,
		"SELECT "+payLineColumns+" FROM pay_lines WHERE run_id = ? ORDER BY employee_id",
		string(runID))
}

func (c *conn) queryPayLines(ctx context.Context, query string, args ...any) ([]payroll.PayLine, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []payroll.PayLine
	for rows.Next() {
		var l payroll.PayLine
		var runID, employeeID, bankStatus, updatedAt string
		var name, account, exceptions, notes sql.NullString
		if err := rows.Scan(&runID, &employeeID, &name,
			&l.BaseSalary, &l.Allowances, &l.Deductions, &l.Bonus, &l.Benefit, &l.NetPay,
			&bankStatus, &account, &exceptions, &notes, &updatedAt); err != nil {
			return nil, err
		}
		l.RunID = payroll.RunID(runID)
		l.EmployeeID = payroll.EmployeeID(employeeID)
		l.EmployeeName = name.String
		l.BankStatus = payroll.BankStatus(bankStatus)
		l.BankAccountNumber = account.String
		l.Notes = notes.String
		l.UpdatedAt = parseTime(updatedAt)
		if exceptions.Valid && exceptions.String != "null" {
			if err := json.Unmarshal([]byte(exceptions.String), &l.Exceptions); err != nil {
				return nil, fmt.Errorf("pay line %s/%s: bad exceptions: %w", runID, employeeID, err)
			}
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// =============================================================================
// BENEFIT TEMPLATES
// =============================================================================

func (c *conn) SaveBenefitTemplate(ctx context.Context, t payroll.BenefitTemplate) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO benefit_templates (id, name, kind, default_amount, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			default_amount = excluded.default_amount,
			description = excluded.description`,
		t.ID, t.Name, string(t.Kind), t.DefaultAmount, nullString(t.Description),
	)
	return err
}

func (c *conn) GetBenefitTemplate(ctx context.Context, id string) (*payroll.BenefitTemplate, error) {
	ts, err := c.queryTemplates(ctx,
		"SELECT id, name, kind, default_amount, description FROM benefit_templates WHERE id = ?", id)
	if err != nil || len(ts) == 0 {
		return nil, err
	}
	return &ts[0], nil
}

func (c *conn) ListBenefitTemplates(ctx context.Context) ([]payroll.BenefitTemplate, error) {
	return c.queryTemplates(ctx,
		"SELECT id, name, kind, default_amount, description FROM benefit_templates ORDER BY id")
}

func (c *conn) queryTemplates(ctx context.Context, query string, args ...any) ([]payroll.BenefitTemplate, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.BenefitTemplate
	for rows.Next() {
		var t payroll.BenefitTemplate
		var kind string
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &kind, &t.DefaultAmount, &desc); err != nil {
			return nil, err
		}
		t.Kind = payroll.BenefitKind(kind)
		t.Description = desc.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// BENEFITS
// =============================================================================

const benefitColumns = `id, employee_id, template_id, kind, amount, review_state,
	reviewed_by, reviewed_at, rejection_reason, created_by, created_at`

func (c *conn) SaveBenefit(ctx context.Context, b payroll.AncillaryBenefit) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO benefits (`+benefitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			review_state = excluded.review_state,
			reviewed_by = excluded.reviewed_by,
			reviewed_at = excluded.reviewed_at,
			rejection_reason = excluded.rejection_reason`,
		string(b.ID), string(b.EmployeeID), b.TemplateID, string(b.Kind), b.Amount,
		string(b.State), nullString(b.ReviewedBy), nullTime(b.ReviewedAt),
		nullString(b.RejectionReason), b.CreatedBy, formatTime(b.CreatedAt),
	)
	return err
}

func (c *conn) GetBenefit(ctx context.Context, id payroll.BenefitID) (*payroll.AncillaryBenefit, error) {
	bs, err := c.queryBenefits(ctx, "SELECT "+benefitColumns+" FROM benefits WHERE id = ?", string(id))
	if err != nil || len(bs) == 0 {
		return nil, err
	}
	return &bs[0], nil
}

func (c *conn) ListBenefits(ctx context.Context, filter payroll.BenefitFilter) ([]payroll.AncillaryBenefit, error) {
	var where []string
	var args []any
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(filter.EmployeeID))
	}
	if filter.State != "" {
		where = append(where, "review_state = ?")
		args = append(args, string(filter.State))
	}
	query := "SELECT " + benefitColumns + " FROM benefits"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	return c.queryBenefits(ctx, query, args...)
}

func (c *conn) queryBenefits(ctx context.Context, query string, args ...any) ([]payroll.AncillaryBenefit, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.AncillaryBenefit
	for rows.Next() {
		var b payroll.AncillaryBenefit
		var id, employeeID, kind, state, createdAt string
		var reviewedBy, reviewedAt, reason sql.NullString
		if err := rows.Scan(&id, &employeeID, &b.TemplateID, &kind, &b.Amount, &state,
			&reviewedBy, &reviewedAt, &reason, &b.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		b.ID = payroll.BenefitID(id)
		b.EmployeeID = payroll.EmployeeID(employeeID)
		b.Kind = payroll.BenefitKind(kind)
		b.State = payroll.ReviewState(state)
		b.ReviewedBy = reviewedBy.String
		b.ReviewedAt = parseNullTime(reviewedAt)
		b.RejectionReason = reason.String
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (c *conn) RecordApplication(ctx context.Context, app payroll.BenefitApplication) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO benefit_applications
		(employee_id, benefit_id, run_id, amount, field, applied_by, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(app.EmployeeID), string(app.BenefitID), string(app.RunID),
		app.Amount, string(app.Field), app.AppliedBy, formatTime(app.AppliedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return payroll.ErrAlreadyApplied
		}
		return fmt.Errorf("failed to record application: %w", err)
	}
	return nil
}

func (c *conn) HasApplication(ctx context.Context, employeeID payroll.EmployeeID, benefitID payroll.BenefitID, runID payroll.RunID) (bool, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM benefit_applications
		WHERE employee_id = ? AND benefit_id = ? AND run_id = ?`,
		string(employeeID), string(benefitID), string(runID),
	).Scan(&n)
	return n > 0, err
}

func (c *conn) ListApplications(ctx context.Context, benefitID payroll.BenefitID) ([]payroll.BenefitApplication, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT employee_id, benefit_id, run_id, amount, field, applied_by, applied_at
		FROM benefit_applications WHERE benefit_id = ? ORDER BY applied_at, run_id`,
		string(benefitID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.BenefitApplication
	for rows.Next() {
		var a payroll.BenefitApplication
		var employeeID, bID, runID, field, appliedAt string
		if err := rows.Scan(&employeeID, &bID, &runID, &a.Amount, &field, &a.AppliedBy, &appliedAt); err != nil {
			return nil, err
		}
		a.EmployeeID = payroll.EmployeeID(employeeID)
		a.BenefitID = payroll.BenefitID(bID)
		a.RunID = payroll.RunID(runID)
		a.Field = payroll.PayField(field)
		a.AppliedAt = parseTime(appliedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// REFUNDS
// =============================================================================

const refundColumns = `id, employee_id, amount, description, status, paid_in_run, paid_at, created_by, created_at`

func (c *conn) SaveRefund(ctx context.Context, r payroll.Refund) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO refunds (`+refundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			paid_in_run = excluded.paid_in_run,
			paid_at = excluded.paid_at`,
		string(r.ID), string(r.EmployeeID), r.Amount, nullString(r.Description),
		string(r.Status), nullString(string(r.PaidInRun)), nullTime(r.PaidAt),
		r.CreatedBy, formatTime(r.CreatedAt),
	)
	return err
}

func (c *conn) GetRefund(ctx context.Context, id payroll.RefundID) (*payroll.Refund, error) {
	rs, err := c.queryRefunds(ctx, "SELECT "+refundColumns+" FROM refunds WHERE id = ?", string(id))
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

func (c *conn) ListRefunds(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.Refund, error) {
	if employeeID == "" {
		return c.queryRefunds(ctx, "SELECT "+refundColumns+" FROM refunds ORDER BY created_at, id")
	}
	return c.queryRefunds(ctx,
		"SELECT "+refundColumns+" FROM refunds WHERE employee_id = ? ORDER BY created_at, id",
		string(employeeID))
}

func (c *conn) queryRefunds(ctx context.Context, query string, args ...any) ([]payroll.Refund, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Refund
	for rows.Next() {
		var r payroll.Refund
		var id, employeeID, status, createdAt string
		var desc, paidInRun, paidAt sql.NullString
		if err := rows.Scan(&id, &employeeID, &r.Amount, &desc, &status,
			&paidInRun, &paidAt, &r.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		r.ID = payroll.RefundID(id)
		r.EmployeeID = payroll.EmployeeID(employeeID)
		r.Description = desc.String
		r.Status = payroll.RefundStatus(status)
		r.PaidInRun = payroll.RunID(paidInRun.String)
		r.PaidAt = parseNullTime(paidAt)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (c *conn) SaveEmployee(ctx context.Context, e payroll.Employee) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, entity, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			entity = excluded.entity`,
		string(e.ID), e.Name, nullString(e.Email), nullString(e.Entity), formatTime(e.CreatedAt),
	)
	return err
}

func (c *conn) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	es, err := c.queryEmployees(ctx, "SELECT id, name, email, entity, created_at FROM employees WHERE id = ?", string(id))
	if err != nil || len(es) == 0 {
		return nil, err
	}
	return &es[0], nil
}

func (c *conn) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	return c.queryEmployees(ctx, "SELECT id, name, email, entity, created_at FROM employees ORDER BY id")
}

func (c *conn) queryEmployees(ctx context.Context, query string, args ...any) ([]payroll.Employee, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Employee
	for rows.Next() {
		var e payroll.Employee
		var id, createdAt string
		var email, entity sql.NullString
		if err := rows.Scan(&id, &e.Name, &email, &entity, &createdAt); err != nil {
			return nil, err
		}
		e.ID = payroll.EmployeeID(id)
		e.Email = email.String
		e.Entity = entity.String
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(formatTime(*t))
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDay(s string) generic.TimePoint {
	t, _ := time.Parse("2006-01-02", s)
	return generic.TimePoint{Time: t}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
