package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartexpense/internal/amqp"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/store"

	"github.com/shopspring/decimal"
)

const msgExpenseNotFound = "Expense not found"

// ExpenseInput carries the editable fields of an expense.
type ExpenseInput struct {
	Amount      decimal.Decimal
	Category    core.Category
	Description string
	Date        time.Time
}

// ExpenseService manages a user's expenses. Every operation is scoped to
// the owner: an expense belonging to someone else is reported as missing.
type ExpenseService struct {
	store store.Store
	options
}

func NewExpenseService(st store.Store, opts ...Option) *ExpenseService {
	return &ExpenseService{
		store:   st,
		options: buildOptions(applog.ComponentExpense, opts),
	}
}

// List returns the owner's expenses that pass filter, newest first.
func (s *ExpenseService) List(ctx context.Context, userID string, filter core.Filter) ([]core.Expense, error) {
	if err := requireUser(ctx, s.store, userID); err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return filter.Apply(expenses), nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := s.store.FindExpense(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.Expense{}, core.NotFound(msgExpenseNotFound)
	case err != nil:
		return core.Expense{}, fmt.Errorf("find expense: %w", err)
	case e.UserID != userID:
		return core.Expense{}, core.NotFound(msgExpenseNotFound)
	}
	return e, nil
}

func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	now := s.now().UTC()
	e := in.apply(core.Expense{
		ID:        s.newID(),
		UserID:    userID,
		CreatedAt: now,
	})
	if err := e.Validate(); err != nil {
		return core.Expense{}, core.ValidationError(err)
	}
	if err := requireUser(ctx, s.store, userID); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.InsertExpense(ctx, e)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.Expense{}, core.NotFound(msgUserNotFound)
	case err != nil:
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	s.afterWrite(ctx, amqp.EventExpenseCreated, created, applog.OpCreate)
	return created, nil
}

func (s *ExpenseService) Update(ctx context.Context, userID, id string, in ExpenseInput) (core.Expense, error) {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	e := in.apply(current)
	if err := e.Validate(); err != nil {
		return core.Expense{}, core.ValidationError(err)
	}

	updated, err := s.store.UpdateExpense(ctx, e)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.Expense{}, core.NotFound(msgExpenseNotFound)
	case err != nil:
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.afterWrite(ctx, amqp.EventExpenseUpdated, updated, applog.OpUpdate)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.store.DeleteExpense(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.NotFound(msgExpenseNotFound)
	case err != nil:
		return fmt.Errorf("delete expense: %w", err)
	}

	s.invalidate(userID)
	s.logger.InfoContext(ctx, "Expense deleted",
		applog.NewFields().WithUser(userID).WithExpense(current.ID, current.Amount, string(current.Category)).WithOperation(applog.OpDelete).ToSlice()...)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseDeleted, current))
	return nil
}

func (s *ExpenseService) afterWrite(ctx context.Context, t amqp.EventType, e core.Expense, op string) {
	s.invalidate(e.UserID)
	s.logger.InfoContext(ctx, "Expense saved",
		applog.NewFields().WithUser(e.UserID).WithExpense(e.ID, e.Amount, string(e.Category)).WithOperation(op).ToSlice()...)
	s.publish(ctx, amqp.NewExpenseEvent(t, e))
	s.checkBudget(ctx, e)
}

// checkBudget publishes an alert for the overall limit and for e's category
// when either has reached the warning tier in the current month.
func (s *ExpenseService) checkBudget(ctx context.Context, e core.Expense) {
	now := s.now()
	start, end := core.MonthBounds(now)
	if d := e.Date.In(now.Location()); d.Before(start) || !d.Before(end) {
		return
	}

	budget, err := loadBudget(ctx, s.store, e.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "Budget check skipped", applog.FieldError, err, applog.FieldUserID, e.UserID)
		return
	}
	expenses, err := s.store.ListExpensesByOwner(ctx, e.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "Budget check skipped", applog.FieldError, err, applog.FieldUserID, e.UserID)
		return
	}

	for _, alert := range budgetAlerts(core.EvaluateBudget(budget, expenses, now), e.Category) {
		s.logger.InfoContext(ctx, "Budget limit approaching",
			applog.FieldUserID, e.UserID,
			applog.FieldCategory, alert.Category,
			applog.FieldTier, alert.Tier)
		s.publish(ctx, amqp.NewBudgetAlertEvent(e.UserID, alert))
	}
}

func budgetAlerts(status core.BudgetStatus, category core.Category) []amqp.BudgetAlert {
	var alerts []amqp.BudgetAlert
	lines := []core.BudgetLine{status.Overall}
	for _, line := range status.Categories {
		if line.Category == category {
			lines = append(lines, line)
		}
	}
	for _, line := range lines {
		if !line.Limit.IsPositive() || !line.Progress.Tier.AtLeast(core.TierWarning) {
			continue
		}
		alerts = append(alerts, amqp.BudgetAlert{
			Year:       status.Year,
			Month:      status.Month,
			Category:   line.Category,
			Spent:      line.Spent,
			Limit:      line.Limit,
			Percentage: line.Progress.Percentage,
			Tier:       line.Progress.Tier,
		})
	}
	return alerts
}

// publish never fails the caller; the write already happened.
func (s *ExpenseService) publish(ctx context.Context, ev amqp.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			applog.FieldError, err,
			applog.FieldEventType, ev.Type,
			applog.FieldUserID, ev.UserID,
			applog.FieldOperation, applog.OpPublish)
	}
}

func (in ExpenseInput) apply(e core.Expense) core.Expense {
	e.Amount = core.NormalizeAmount(in.Amount)
	e.Category = in.Category
	e.Description = strings.TrimSpace(in.Description)
	e.Date = in.Date
	return e
}
