// Package store declares the persistence ports used by the services.
// Implementations live in store/memory and storage.
package store

import (
	"context"
	"errors"

	"smartexpense/internal/core"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness rule.
	ErrDuplicate = errors.New("duplicate record")
)

type (
	UserStore interface {
		// FindUserByEmail matches the normalized address exactly.
		FindUserByEmail(ctx context.Context, email string) (core.User, error)
		FindUserByID(ctx context.Context, id string) (core.User, error)
		InsertUser(ctx context.Context, u core.User) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	ExpenseStore interface {
		// ListExpensesByOwner returns the owner's expenses, newest first.
		ListExpensesByOwner(ctx context.Context, userID string) ([]core.Expense, error)
		FindExpense(ctx context.Context, id string) (core.Expense, error)
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, id string) error
	}

	BudgetStore interface {
		FindBudget(ctx context.Context, userID string) (core.Budget, error)
		UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	}

	// Store is everything a backend provides.
	Store interface {
		UserStore
		ExpenseStore
		BudgetStore
		Ping(ctx context.Context) error
		Close() error
	}
)
