package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/sheets"
	"smartexpense/internal/store"

	"github.com/robfig/cron/v3"
)

// DefaultReportSchedule runs at midnight on the first of every month.
const DefaultReportSchedule = "@monthly"

type ReporterStore interface {
	store.UserStore
	store.ExpenseStore
}

// MonthlyReporter summarizes the previous calendar month for every user.
type MonthlyReporter struct {
	store  ReporterStore
	mirror sheets.Mirror
	now    func() time.Time
	logger *applog.Logger
}

func NewMonthlyReporter(st ReporterStore, mirror sheets.Mirror) *MonthlyReporter {
	return &MonthlyReporter{
		store:  st,
		mirror: mirror,
		now:    time.Now,
		logger: applog.New(applog.Config{Component: applog.ComponentReport}),
	}
}

// WithClock replaces the time source.
func (r *MonthlyReporter) WithClock(now func() time.Time) *MonthlyReporter {
	r.now = now
	return r
}

// Run writes one summary per user for the month before now. A failing user
// does not stop the others; all failures are returned together.
func (r *MonthlyReporter) Run(ctx context.Context) ([]sheets.MonthlySummary, error) {
	thisStart, _ := core.MonthBounds(r.now())
	ref := thisStart.AddDate(0, -1, 0)

	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	r.logger.InfoContext(ctx, "Monthly report started",
		applog.FieldYear, ref.Year(),
		applog.FieldMonth, int(ref.Month()),
		"users", len(users))

	var (
		summaries []sheets.MonthlySummary
		errs      []error
	)
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		s, err := r.summarize(ctx, u, ref)
		if err != nil {
			r.logger.ErrorContext(ctx, "Monthly summary failed", applog.FieldError, err, applog.FieldUserID, u.ID)
			errs = append(errs, fmt.Errorf("user %s: %w", u.ID, err))
			continue
		}
		summaries = append(summaries, s)
	}

	r.logger.InfoContext(ctx, "Monthly report finished",
		"summaries", len(summaries),
		"failures", len(errs))
	return summaries, errors.Join(errs...)
}

func (r *MonthlyReporter) summarize(ctx context.Context, u core.User, ref time.Time) (sheets.MonthlySummary, error) {
	expenses, err := r.store.ListExpensesByOwner(ctx, u.ID)
	if err != nil {
		return sheets.MonthlySummary{}, fmt.Errorf("list expenses: %w", err)
	}

	start, end := core.MonthBounds(ref)
	inMonth := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if d := e.Date.In(ref.Location()); !d.Before(start) && d.Before(end) {
			inMonth = append(inMonth, e)
		}
	}

	month := core.Aggregate(inMonth, ref, core.Filter{})
	overall := core.Aggregate(expenses, ref, core.Filter{})
	s := sheets.MonthlySummary{
		UserID:           u.ID,
		UserEmail:        u.Email,
		Year:             ref.Year(),
		Month:            ref.Month(),
		Total:            month.Total,
		Count:            month.Count,
		PercentageChange: overall.PercentageChange,
		TopCategories:    month.TopCategories,
	}

	r.logger.InfoContext(ctx, "Monthly summary",
		applog.FieldUserID, u.ID,
		applog.FieldYear, s.Year,
		applog.FieldMonth, int(s.Month),
		"total", s.Total.StringFixed(2),
		"count", s.Count,
		"change_pct", s.PercentageChange.StringFixed(1))

	if r.mirror != nil {
		if _, err := r.mirror.AppendMonthlySummary(ctx, s); err != nil {
			return sheets.MonthlySummary{}, fmt.Errorf("append summary: %w", err)
		}
	}
	return s, nil
}

// Schedule registers the reporter on c. Each run gets its own timeout
// derived from ctx.
func (r *MonthlyReporter) Schedule(ctx context.Context, c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultReportSchedule
	}
	id, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := r.Run(runCtx); err != nil {
			r.logger.ErrorContext(runCtx, "Scheduled monthly report failed", applog.FieldError, err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule monthly report %q: %w", spec, err)
	}
	return id, nil
}
