package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smartexpense/internal/core"
	"smartexpense/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// PostgresRepository stores records in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PostgresRepository)(nil)

// NewPostgresRepository migrates the schema at url and opens a connection pool.
func NewPostgresRepository(ctx context.Context, url string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, name, email, password_hash, created_at FROM users WHERE email = $1`,
		core.NormalizeEmail(email))
	return scanPgUser(row)
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, id string) (core.User, error) {
	if !isUUID(id) {
		return core.User{}, store.ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, name, email, password_hash, created_at FROM users WHERE id = $1::uuid`, id)
	return scanPgUser(row)
}

func (r *PostgresRepository) InsertUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = core.NormalizeEmail(u.Email)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES ($1::uuid, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", mapPgError(err))
	}

	slog.InfoContext(ctx, "User saved to PostgreSQL", "id", u.ID)
	return u, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, name, email, password_hash, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]core.User, 0)
	for rows.Next() {
		u, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) ListExpensesByOwner(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses := make([]core.Expense, 0)
	if !isUUID(userID) {
		return expenses, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, user_id::text, amount::text, category, description, date, created_at
		 FROM expenses
		 WHERE user_id = $1::uuid
		 ORDER BY date DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanPgExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *PostgresRepository) FindExpense(ctx context.Context, id string) (core.Expense, error) {
	if !isUUID(id) {
		return core.Expense{}, store.ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, user_id::text, amount::text, category, description, date, created_at
		 FROM expenses WHERE id = $1::uuid`, id)
	return scanPgExpense(row)
}

func (r *PostgresRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if !isUUID(e.UserID) {
		return core.Expense{}, fmt.Errorf("owner %s: %w", e.UserID, store.ErrNotFound)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO expenses (id, user_id, amount, category, description, date, created_at)
		 VALUES ($1::uuid, $2::uuid, $3::numeric, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.Amount.String(), string(e.Category), e.Description, e.Date, e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", mapPgError(err))
	}

	slog.InfoContext(ctx, "Expense saved to PostgreSQL",
		"id", e.ID,
		"user_id", e.UserID,
		"amount", e.Amount.String(),
		"category", e.Category)
	return e, nil
}

func (r *PostgresRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if !isUUID(e.ID) {
		return core.Expense{}, store.ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE expenses
		 SET amount = $1::numeric, category = $2, description = $3, date = $4
		 WHERE id = $5::uuid
		 RETURNING id::text, user_id::text, amount::text, category, description, date, created_at`,
		e.Amount.String(), string(e.Category), e.Description, e.Date, e.ID)
	updated, err := scanPgExpense(row)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return core.Expense{}, fmt.Errorf("update expense: %w", mapPgError(err))
	}
	return updated, err
}

func (r *PostgresRepository) DeleteExpense(ctx context.Context, id string) error {
	if !isUUID(id) {
		return store.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) FindBudget(ctx context.Context, userID string) (core.Budget, error) {
	if !isUUID(userID) {
		return core.Budget{}, store.ErrNotFound
	}
	var b core.Budget
	var limit string
	var limits []byte
	err := r.pool.QueryRow(ctx,
		`SELECT user_id::text, monthly_limit::text, category_limits, updated_at
		 FROM budgets WHERE user_id = $1::uuid`, userID).
		Scan(&b.UserID, &limit, &limits, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Budget{}, store.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	if b.MonthlyLimit, err = decimal.NewFromString(limit); err != nil {
		return core.Budget{}, fmt.Errorf("parse monthly limit: %w", err)
	}
	if b.CategoryLimits, err = decodeLimits(limits); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *PostgresRepository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if !isUUID(b.UserID) {
		return core.Budget{}, fmt.Errorf("owner %s: %w", b.UserID, store.ErrNotFound)
	}
	limits, err := encodeLimits(b.CategoryLimits)
	if err != nil {
		return core.Budget{}, err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO budgets (user_id, monthly_limit, category_limits, updated_at)
		 VALUES ($1::uuid, $2::numeric, $3::jsonb, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		   monthly_limit = EXCLUDED.monthly_limit,
		   category_limits = EXCLUDED.category_limits,
		   updated_at = EXCLUDED.updated_at`,
		b.UserID, b.MonthlyLimit.String(), string(limits), b.UpdatedAt)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", mapPgError(err))
	}
	return b, nil
}

func scanPgUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func scanPgExpense(row pgx.Row) (core.Expense, error) {
	var e core.Expense
	var amount, category string
	err := row.Scan(&e.ID, &e.UserID, &amount, &category, &e.Description, &e.Date, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, store.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	e.Category = core.Category(category)
	return e, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// mapPgError translates constraint violations into store sentinels.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("check %s: %w", pgErr.ConstraintName, err)
	}
	return err
}
