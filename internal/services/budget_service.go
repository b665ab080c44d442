package services

import (
	"context"
	"errors"
	"fmt"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/store"

	"github.com/shopspring/decimal"
)

// BudgetService reads and saves a user's budget and reports progress
// against it.
type BudgetService struct {
	store store.Store
	options
}

func NewBudgetService(st store.Store, opts ...Option) *BudgetService {
	return &BudgetService{
		store:   st,
		options: buildOptions(applog.ComponentBudget, opts),
	}
}

// Get returns the stored budget, or the default one when the user never
// saved a budget. The default is not persisted.
func (s *BudgetService) Get(ctx context.Context, userID string) (core.Budget, error) {
	if err := requireUser(ctx, s.store, userID); err != nil {
		return core.Budget{}, err
	}
	return loadBudget(ctx, s.store, userID)
}

// Save replaces the user's budget. Amounts are rounded to cents and zero
// category limits are dropped.
func (s *BudgetService) Save(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	b.UserID = userID
	b.MonthlyLimit = core.NormalizeAmount(b.MonthlyLimit)
	limits := make(map[core.Category]decimal.Decimal, len(b.CategoryLimits))
	for c, v := range b.CategoryLimits {
		v = core.NormalizeAmount(v)
		if v.IsZero() {
			continue
		}
		limits[c] = v
	}
	b.CategoryLimits = limits
	b.UpdatedAt = s.now().UTC()

	if err := b.Validate(); err != nil {
		return core.Budget{}, core.ValidationError(err)
	}
	if err := requireUser(ctx, s.store, userID); err != nil {
		return core.Budget{}, err
	}

	saved, err := s.store.UpsertBudget(ctx, b)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.Budget{}, core.NotFound(msgUserNotFound)
	case err != nil:
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}

	s.invalidate(userID)
	s.logger.InfoContext(ctx, "Budget saved",
		applog.FieldUserID, userID,
		"monthly_limit", saved.MonthlyLimit.StringFixed(2),
		"category_limits", len(saved.CategoryLimits))
	return saved, nil
}

// Status evaluates the current month's spending against the budget.
func (s *BudgetService) Status(ctx context.Context, userID string) (core.BudgetStatus, error) {
	b, err := s.Get(ctx, userID)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	expenses, err := s.store.ListExpensesByOwner(ctx, userID)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("list expenses: %w", err)
	}
	return core.EvaluateBudget(b, expenses, s.now()), nil
}

func loadBudget(ctx context.Context, budgets store.BudgetStore, userID string) (core.Budget, error) {
	b, err := budgets.FindBudget(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.DefaultBudget(userID), nil
	case err != nil:
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	if b.CategoryLimits == nil {
		b.CategoryLimits = map[core.Category]decimal.Decimal{}
	}
	return b, nil
}
