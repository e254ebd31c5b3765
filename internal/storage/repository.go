// Package storage persists expenses, shared expenses, and budgets in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"spendtrack/internal/core"
)

// SortOrder selects listing order by date.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "any"; provided
// filters are conjunctive.
type ExpenseFilter struct {
	Category string
	Year     int
	Month    int
	Date     string // exact date, YYYY-MM-DD
	Sort     SortOrder
	// IncludeDeleted lifts the default exclusion of soft-deleted rows.
	IncludeDeleted bool
}

// SharedFilter narrows ListSharedExpenses.
type SharedFilter struct {
	Participant string
	Status      core.SharedStatus // "" means any
	Sort        SortOrder
}

// PendingSyncExpense is the minimal row handed to the export worker.
type PendingSyncExpense struct {
	ID        int64
	CreatedAt time.Time
}

// SQLiteRepository is the single data-access handle for the application.
// Every operation takes a context and runs as one short statement (a single
// transaction for the shared-expense participant rows); there is no shared
// mutable state beyond the pool.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense inserts a new active expense and returns its ID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (amount_cents, category, description, payment_mode, date, year, month, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Amount.Cents, e.Category, e.Description, e.PaymentMode,
		e.Date.String(), e.Date.Year(), e.Date.Month(), core.StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())

	return id, nil
}

// GetExpense loads one expense by ID regardless of status.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, category, description, payment_mode, date, status, created_at
		 FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns expenses matching the filter, soft-deleted rows
// excluded unless asked for. Ordering is by date per filter.Sort (newest by
// default), ties broken by insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	var (
		conds []string
		args  []any
	)
	if !f.IncludeDeleted {
		conds = append(conds, "status = ?")
		args = append(args, core.StatusActive)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Year != 0 {
		conds = append(conds, "year = ?")
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		conds = append(conds, "month = ?")
		args = append(args, f.Month)
	}
	if f.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, f.Date)
	}

	q := `SELECT id, amount_cents, category, description, payment_mode, date, status, created_at FROM expenses`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Sort == SortOldest {
		q += " ORDER BY date ASC, id ASC"
	} else {
		q += " ORDER BY date DESC, id ASC"
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// SoftDeleteExpense marks an active expense deleted. The row is kept.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET status = ? WHERE id = ? AND status = ?`,
		core.StatusDeleted, id, core.StatusActive)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense soft-deleted", "id", id)
	return nil
}

// DistinctCategories lists categories seen on non-deleted expenses.
func (r *SQLiteRepository) DistinctCategories(ctx context.Context) ([]string, error) {
	return r.distinctStrings(ctx,
		`SELECT DISTINCT category FROM expenses WHERE status = ? ORDER BY category`,
		core.StatusActive)
}

// DistinctYears lists years with at least one non-deleted expense, ascending.
func (r *SQLiteRepository) DistinctYears(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT year FROM expenses WHERE status = ? ORDER BY year`, core.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("distinct years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// CreateSharedExpense persists a shared expense and its participant rows in
// one transaction. The ID and CreatedAt fields are populated when unset.
func (r *SQLiteRepository) CreateSharedExpense(ctx context.Context, se *core.SharedExpense) error {
	if err := se.Validate(); err != nil {
		return err
	}
	if se.ID == "" {
		se.ID = uuid.New().String()
	}
	if se.CreatedAt.IsZero() {
		se.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO shared_expenses (id, title, total_cents, paid_by, per_person_cents, date, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		se.ID, se.Title, se.Total.Cents, se.PaidBy, se.PerPerson.Cents,
		se.Date.String(), se.Status, se.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shared expense: %w", err)
	}

	for i, name := range se.Participants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO shared_participants (shared_expense_id, position, name) VALUES (?, ?, ?)`,
			se.ID, i, name)
		if err != nil {
			return fmt.Errorf("insert participant %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shared expense: %w", err)
	}

	slog.InfoContext(ctx, "Shared expense saved",
		"id", se.ID,
		"title", se.Title,
		"total_cents", se.Total.Cents,
		"participants", len(se.Participants))

	return nil
}

// GetSharedExpense loads one shared expense with its participants.
func (r *SQLiteRepository) GetSharedExpense(ctx context.Context, id string) (core.SharedExpense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, total_cents, paid_by, per_person_cents, date, status, settled_on, created_at
		 FROM shared_expenses WHERE id = ?`, id)
	se, err := scanShared(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SharedExpense{}, fmt.Errorf("shared expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.SharedExpense{}, fmt.Errorf("get shared expense: %w", err)
	}
	if se.Participants, err = r.participants(ctx, se.ID); err != nil {
		return core.SharedExpense{}, err
	}
	return se, nil
}

// ListSharedExpenses returns shared expenses matching the filter with their
// participants, newest first by default.
func (r *SQLiteRepository) ListSharedExpenses(ctx context.Context, f SharedFilter) ([]core.SharedExpense, error) {
	var (
		conds []string
		args  []any
	)
	if f.Participant != "" {
		conds = append(conds, "id IN (SELECT shared_expense_id FROM shared_participants WHERE name = ?)")
		args = append(args, f.Participant)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}

	q := `SELECT id, title, total_cents, paid_by, per_person_cents, date, status, settled_on, created_at FROM shared_expenses`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Sort == SortOldest {
		q += " ORDER BY created_at ASC, id ASC"
	} else {
		q += " ORDER BY created_at DESC, id DESC"
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shared expenses: %w", err)
	}
	defer rows.Close()

	var out []core.SharedExpense
	for rows.Next() {
		se, err := scanShared(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shared expense: %w", err)
		}
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared expenses: %w", err)
	}

	for i := range out {
		if out[i].Participants, err = r.participants(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SettleSharedExpense transitions a pending shared expense to settled,
// recording the settlement date. Settling twice fails with ErrAlreadySettled.
func (r *SQLiteRepository) SettleSharedExpense(ctx context.Context, id string, settledOn core.Date) error {
	if err := settledOn.Validate(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE shared_expenses SET status = ?, settled_on = ? WHERE id = ? AND status = ?`,
		core.SharedSettled, settledOn.String(), id, core.SharedPending)
	if err != nil {
		return fmt.Errorf("settle shared expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle shared expense: %w", err)
	}
	if n == 1 {
		slog.InfoContext(ctx, "Shared expense settled", "id", id, "settled_on", settledOn.String())
		return nil
	}

	// Distinguish a missing row from a second settle.
	var status core.SharedStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM shared_expenses WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("shared expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("settle shared expense: %w", err)
	}
	return fmt.Errorf("shared expense %s: %w", id, core.ErrAlreadySettled)
}

// DistinctParticipants lists every name appearing in any shared expense.
func (r *SQLiteRepository) DistinctParticipants(ctx context.Context) ([]string, error) {
	return r.distinctStrings(ctx,
		`SELECT DISTINCT name FROM shared_participants ORDER BY name`)
}

// CreateBudget inserts a per-category monthly limit.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (category, monthly_limit_cents) VALUES (?, ?)
		 ON CONFLICT(category) DO UPDATE SET monthly_limit_cents = excluded.monthly_limit_cents`,
		b.Category, b.MonthlyLimit.Cents)
	if err != nil {
		return 0, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("budget id: %w", err)
	}
	return id, nil
}

// ListBudgets returns all budgets ordered by category.
func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, monthly_limit_cents FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.MonthlyLimit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBudget removes a budget. Budgets carry no history, so this is a
// hard delete.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// PendingSyncExpenses returns expenses not yet exported, oldest first.
// Rows whose last export attempt failed are included so the scan retries
// them.
func (r *SQLiteRepository) PendingSyncExpenses(ctx context.Context, limit int) ([]PendingSyncExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM expenses
		 WHERE sync_status IN ('pending', 'error') AND status = ?
		 ORDER BY created_at ASC LIMIT ?`,
		core.StatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncExpense
	for rows.Next() {
		var p PendingSyncExpense
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync expense: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records a successful export.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// MarkSyncError flags an expense whose export failed. The row stays
// eligible for the periodic scan, which retries it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) participants(ctx context.Context, sharedID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM shared_participants WHERE shared_expense_id = ? ORDER BY position`, sharedID)
	if err != nil {
		return nil, fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SQLiteRepository) distinctStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan string: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e       core.Expense
		dateStr string
		status  string
	)
	if err := s.Scan(&e.ID, &e.Amount.Cents, &e.Category, &e.Description,
		&e.PaymentMode, &dateStr, &status, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", dateStr, err)
	}
	e.Date = d
	e.Status = core.ExpenseStatus(status)
	return e, nil
}

func scanShared(s scanner) (core.SharedExpense, error) {
	var (
		se        core.SharedExpense
		dateStr   string
		status    string
		settledOn sql.NullString
	)
	if err := s.Scan(&se.ID, &se.Title, &se.Total.Cents, &se.PaidBy,
		&se.PerPerson.Cents, &dateStr, &status, &settledOn, &se.CreatedAt); err != nil {
		return core.SharedExpense{}, err
	}
	d, err := core.ParseDate(dateStr)
	if err != nil {
		return core.SharedExpense{}, fmt.Errorf("stored date %q: %w", dateStr, err)
	}
	se.Date = d
	se.Status = core.SharedStatus(status)
	if settledOn.Valid && settledOn.String != "" {
		if se.SettledOn, err = core.ParseDate(settledOn.String); err != nil {
			return core.SharedExpense{}, fmt.Errorf("stored settled_on %q: %w", settledOn.String, err)
		}
	}
	return se, nil
}
