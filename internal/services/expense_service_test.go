package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"smartexpense/internal/amqp"
	"smartexpense/internal/cache"
	"smartexpense/internal/core"
	"smartexpense/internal/store/memory"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	overviews *cache.LRUCache[Overview]
	expenses  *ExpenseService
	budgets   *BudgetService
	dashboard *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		publisher: &recordingPublisher{},
		overviews: cache.NewLRUCache[Overview](100, time.Minute),
	}
	n := 0
	opts := []Option{
		WithPublisher(f.publisher),
		WithOverviewCache(f.overviews),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("exp-%d", n) }),
	}
	f.expenses = NewExpenseService(f.store, opts...)
	f.budgets = NewBudgetService(f.store, opts...)
	f.dashboard = NewDashboardService(f.store, opts...)

	for _, id := range []string{"alice", "bob"} {
		if _, err := f.store.InsertUser(context.Background(), core.User{ID: id, Name: id, Email: id + "@example.com", CreatedAt: testNow}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return f
}

func input(amount string, c core.Category, desc string, date time.Time) ExpenseInput {
	return ExpenseInput{Amount: decimal.RequireFromString(amount), Category: c, Description: desc, Date: date}
}

func (f *fixture) create(t *testing.T, userID string, in ExpenseInput) core.Expense {
	t.Helper()
	e, err := f.expenses.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return e
}

func TestExpenseService_Create(t *testing.T) {
	f := newFixture(t)

	e := f.create(t, "alice", input("12.345", core.Food, "  lunch ", testNow))
	if e.ID != "exp-1" || e.UserID != "alice" || e.Description != "lunch" {
		t.Fatalf("unexpected expense %+v", e)
	}
	if !e.Amount.Equal(decimal.RequireFromString("12.35")) {
		t.Errorf("amount = %s, want 12.35", e.Amount)
	}
	if !e.CreatedAt.Equal(testNow) {
		t.Errorf("createdAt = %v", e.CreatedAt)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != amqp.EventExpenseCreated {
		t.Errorf("events = %v", got)
	}
}

func TestExpenseService_CreateRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		user string
		in   ExpenseInput
		want *core.Error
	}{
		{"zero amount", "alice", input("0", core.Food, "x", testNow), core.ErrValidation},
		{"rounds to zero", "alice", input("0.004", core.Food, "x", testNow), core.ErrValidation},
		{"negative amount", "alice", input("-5", core.Food, "x", testNow), core.ErrValidation},
		{"unknown category", "alice", input("5", core.Category("Pets"), "x", testNow), core.ErrValidation},
		{"blank description", "alice", input("5", core.Food, "   ", testNow), core.ErrValidation},
		{"zero date", "alice", input("5", core.Food, "x", time.Time{}), core.ErrValidation},
		{"unknown owner", "mallory", input("5", core.Food, "x", testNow), core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.Create(context.Background(), tt.user, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want.Kind, err)
			}
		})
	}
	if len(f.publisher.types()) != 0 {
		t.Error("rejected writes must not publish")
	}
}

func TestExpenseService_OwnerScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "alice", input("10", core.Food, "pizza", testNow))

	if _, err := f.expenses.Get(ctx, "bob", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("bob reading alice's expense: %v", err)
	}
	if _, err := f.expenses.Update(ctx, "bob", e.ID, input("1", core.Food, "mine now", testNow)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("bob updating alice's expense: %v", err)
	}
	if err := f.expenses.Delete(ctx, "bob", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("bob deleting alice's expense: %v", err)
	}

	list, err := f.expenses.List(ctx, "bob", core.Filter{})
	if err != nil || len(list) != 0 {
		t.Errorf("bob's list = %v, %v", list, err)
	}
	if got, err := f.expenses.Get(ctx, "alice", e.ID); err != nil || got.Description != "pizza" {
		t.Errorf("alice's expense changed: %+v, %v", got, err)
	}
}

func TestExpenseService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "alice", input("10", core.Food, "pizza", testNow))

	updated, err := f.expenses.Update(ctx, "alice", e.ID, input("15.5", core.Entertainment, "cinema", testNow.AddDate(0, 0, -1)))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Category != core.Entertainment || !updated.Amount.Equal(decimal.RequireFromString("15.5")) || !updated.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := f.expenses.Update(ctx, "alice", e.ID, input("15", core.Food, "", testNow)); !errors.Is(err, core.ErrValidation) {
		t.Errorf("invalid update: %v", err)
	}

	if err := f.expenses.Delete(ctx, "alice", e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.expenses.Get(ctx, "alice", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted expense still readable: %v", err)
	}
	if err := f.expenses.Delete(ctx, "alice", e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}

	want := []amqp.EventType{amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseDeleted}
	got := f.publisher.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestExpenseService_ListFilter(t *testing.T) {
	f := newFixture(t)
	f.create(t, "alice", input("10", core.Food, "Pizza night", testNow))
	f.create(t, "alice", input("20", core.Food, "groceries", testNow.AddDate(0, 0, -2)))
	f.create(t, "alice", input("30", core.Transport, "pizza delivery scooter", testNow.AddDate(0, 0, -1)))

	tests := []struct {
		name   string
		filter core.Filter
		want   int
	}{
		{"all", core.Filter{}, 3},
		{"All keyword", core.Filter{Category: "All"}, 3},
		{"category", core.Filter{Category: "Food"}, 2},
		{"search is case-insensitive", core.Filter{Search: "PIZZA"}, 2},
		{"both", core.Filter{Category: "Food", Search: "pizza"}, 1},
		{"no match", core.Filter{Search: "rent"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.expenses.List(context.Background(), "alice", tt.filter)
			if err != nil || len(got) != tt.want {
				t.Fatalf("List(%+v) = %d items, %v; want %d", tt.filter, len(got), err, tt.want)
			}
		})
	}

	if _, err := f.expenses.List(context.Background(), "mallory", core.Filter{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown user list: %v", err)
	}
}

func TestExpenseService_PublishFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	if _, err := f.expenses.Create(context.Background(), "alice", input("10", core.Food, "pizza", testNow)); err != nil {
		t.Fatalf("create must succeed when publishing fails: %v", err)
	}
}

func TestExpenseService_BudgetAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.budgets.Save(ctx, "alice", core.Budget{
		MonthlyLimit:   decimal.NewFromInt(1000),
		CategoryLimits: map[core.Category]decimal.Decimal{core.Food: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("save budget: %v", err)
	}

	// 50% of the food limit: caution, no alert.
	f.create(t, "alice", input("50", core.Food, "market", testNow))
	// Last month's spending never alerts.
	f.create(t, "alice", input("900", core.Food, "old", testNow.AddDate(0, -1, 0)))
	// 80% of food: warning.
	f.create(t, "alice", input("30", core.Food, "bakery", testNow))

	var alerts []amqp.Event
	for _, e := range f.publisher.events {
		if e.Type == amqp.EventBudgetAlert {
			alerts = append(alerts, e)
		}
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1: %+v", len(alerts), alerts)
	}
	a := alerts[0].Alert
	if a.Category != core.Food || a.Tier != core.TierWarning || !a.Percentage.Equal(decimal.NewFromInt(80)) {
		t.Errorf("alert = %+v", a)
	}
	if a.Year != 2025 || a.Month != time.March {
		t.Errorf("alert period = %d-%d", a.Year, a.Month)
	}
}

func TestBudgetAlerts_OverallLimit(t *testing.T) {
	status := core.EvaluateBudget(core.Budget{
		UserID:       "u",
		MonthlyLimit: decimal.NewFromInt(100),
	}, []core.Expense{{UserID: "u", Amount: decimal.NewFromInt(95), Category: core.Bills, Date: testNow}}, testNow)

	alerts := budgetAlerts(status, core.Bills)
	if len(alerts) != 1 || alerts[0].Category != "" || alerts[0].Tier != core.TierCritical {
		t.Fatalf("alerts = %+v", alerts)
	}
}
