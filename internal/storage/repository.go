package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/store"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

// SQLiteDSN enables foreign keys and a busy timeout on every connection.
func SQLiteDSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := SQLiteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		core.NormalizeEmail(email))
	return scanUser(row)
}

func (r *SQLiteRepository) FindUserByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepository) InsertUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = core.NormalizeEmail(u.Email)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", mapSQLiteError(err))
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID)
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) ListExpensesByOwner(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, category, description, date, created_at
		 FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) FindExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, description, date, created_at FROM expenses WHERE id = ?`, id)
	return scanExpense(row)
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, category, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.String(), string(e.Category), e.Description,
		formatTime(e.Date), formatTime(e.CreatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", mapSQLiteError(err))
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount", e.Amount.String(),
		"category", e.Category)
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, category = ?, description = ?, date = ? WHERE id = ?`,
		e.Amount.String(), string(e.Category), e.Description, formatTime(e.Date), e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", mapSQLiteError(err))
	}
	if err := requireAffected(res); err != nil {
		return core.Expense{}, err
	}
	return r.FindExpense(ctx, e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) FindBudget(ctx context.Context, userID string) (core.Budget, error) {
	var b core.Budget
	var limit, limits, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, monthly_limit, category_limits, updated_at FROM budgets WHERE user_id = ?`, userID).
		Scan(&b.UserID, &limit, &limits, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, store.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}

	if b.MonthlyLimit, err = decimal.NewFromString(limit); err != nil {
		return core.Budget{}, fmt.Errorf("parse monthly limit: %w", err)
	}
	if b.CategoryLimits, err = decodeLimits([]byte(limits)); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	limits, err := encodeLimits(b.CategoryLimits)
	if err != nil {
		return core.Budget{}, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, monthly_limit, category_limits, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   monthly_limit = excluded.monthly_limit,
		   category_limits = excluded.category_limits,
		   updated_at = excluded.updated_at`,
		b.UserID, b.MonthlyLimit.String(), string(limits), formatTime(b.UpdatedAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", mapSQLiteError(err))
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var e core.Expense
	var amount, category, date, createdAt string
	err := s.Scan(&e.ID, &e.UserID, &amount, &category, &e.Description, &date, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	e.Category = core.Category(category)
	if e.Date, err = parseTime(date); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// mapSQLiteError translates constraint failures into store sentinels.
func mapSQLiteError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}

func encodeLimits(limits map[core.Category]decimal.Decimal) ([]byte, error) {
	if limits == nil {
		limits = map[core.Category]decimal.Decimal{}
	}
	out := make(map[string]string, len(limits))
	for c, v := range limits {
		out[string(c)] = v.String()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode category limits: %w", err)
	}
	return b, nil
}

func decodeLimits(raw []byte) (map[core.Category]decimal.Decimal, error) {
	var in map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode category limits: %w", err)
	}
	out := make(map[core.Category]decimal.Decimal, len(in))
	for c, v := range in {
		out[core.Category(c)] = v
	}
	return out, nil
}
