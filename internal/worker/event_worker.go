// Package worker holds the asynchronous side of the system: the AMQP event
// consumer and the scheduled monthly report.
package worker

import (
	"context"
	"fmt"

	"smartexpense/internal/amqp"
	applog "smartexpense/internal/log"
	"smartexpense/internal/sheets"
)

// EventWorker reacts to published events. Without a mirror it only logs.
type EventWorker struct {
	mirror sheets.Mirror
	logger *applog.Logger
}

func NewEventWorker(mirror sheets.Mirror) *EventWorker {
	return &EventWorker{
		mirror: mirror,
		logger: applog.New(applog.Config{Component: applog.ComponentWorker}),
	}
}

// Handle processes one event. A returned error requeues it.
func (w *EventWorker) Handle(ctx context.Context, e amqp.Event) error {
	switch e.Type {
	case amqp.EventBudgetAlert:
		w.logAlert(ctx, e)
		return nil
	case amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseDeleted:
		return w.mirrorExpense(ctx, e)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", applog.FieldEventType, e.Type, "id", e.ID)
		return nil
	}
}

func (w *EventWorker) logAlert(ctx context.Context, e amqp.Event) {
	a := e.Alert
	scope := "overall"
	if a.Category != "" {
		scope = string(a.Category)
	}
	w.logger.WarnContext(ctx, "Budget limit approaching",
		applog.FieldUserID, e.UserID,
		applog.FieldCategory, scope,
		applog.FieldTier, a.Tier,
		"percentage", a.Percentage.StringFixed(2),
		"spent", a.Spent.StringFixed(2),
		"limit", a.Limit.StringFixed(2),
		applog.FieldYear, a.Year,
		applog.FieldMonth, int(a.Month))
}

func (w *EventWorker) mirrorExpense(ctx context.Context, e amqp.Event) error {
	fields := applog.NewFields().
		WithUser(e.UserID).
		WithExpense(e.Expense.ID, e.Expense.Amount, string(e.Expense.Category))
	fields[applog.FieldEventType] = e.Type

	if w.mirror == nil {
		w.logger.InfoContext(ctx, "Expense event received", fields.ToSlice()...)
		return nil
	}

	ref, err := w.mirror.AppendExpenseEvent(ctx, string(e.Type), *e.Expense)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", e.Type, err)
	}
	fields[applog.FieldOperation] = applog.OpAppend
	fields["ref"] = ref
	w.logger.InfoContext(ctx, "Expense event mirrored", fields.ToSlice()...)
	return nil
}
