package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/store"

	"golang.org/x/sync/errgroup"
)

// Overview is the dashboard payload.
type Overview struct {
	Filter     core.Filter       `json:"filter"`
	Aggregates core.Aggregates   `json:"aggregates"`
	Budget     core.BudgetStatus `json:"budget"`
}

type DashboardService struct {
	store store.Store
	options
}

func NewDashboardService(st store.Store, opts ...Option) *DashboardService {
	return &DashboardService{
		store:   st,
		options: buildOptions(applog.ComponentDashboard, opts),
	}
}

// Overview computes the aggregates and budget status for userID. Results are
// cached per user, month and filter until the next write by that user; a
// result computed across such a write is returned but not cached.
func (s *DashboardService) Overview(ctx context.Context, userID string, filter core.Filter) (Overview, error) {
	if err := requireUser(ctx, s.store, userID); err != nil {
		return Overview{}, err
	}

	now := s.now()
	key := overviewKey(userID, now, filter)
	prefix := overviewKeyPrefix(userID)
	var gen uint64
	if s.overviews != nil {
		if cached, ok := s.overviews.Get(key); ok {
			return cached, nil
		}
		// Taken before the reads: a write landing while they run moves the
		// generation on and keeps this result out of the cache.
		gen = s.overviews.Generation(prefix)
	}

	var (
		expenses []core.Expense
		budget   core.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListExpensesByOwner(gctx, userID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budget, err = loadBudget(gctx, s.store, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	o := Overview{
		Filter:     filter,
		Aggregates: core.Aggregate(expenses, now, filter),
		Budget:     core.EvaluateBudget(budget, expenses, now),
	}
	if s.overviews != nil && !s.overviews.SetIfGeneration(key, prefix, gen, o) {
		s.logger.DebugContext(ctx, "Overview invalidated while computing, not cached",
			applog.FieldUserID, userID)
	}
	s.logger.DebugContext(ctx, "Overview computed",
		applog.FieldUserID, userID,
		"expenses", len(expenses))
	return o, nil
}

func overviewKey(userID string, now time.Time, f core.Filter) string {
	return strings.Join([]string{
		userID,
		now.Format("2006-01"),
		strings.TrimSpace(f.Category),
		strings.ToLower(strings.TrimSpace(f.Search)),
	}, "|")
}
