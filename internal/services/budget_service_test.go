package services

import (
	"context"
	"errors"
	"testing"

	"smartexpense/internal/core"
	"smartexpense/internal/store"

	"github.com/shopspring/decimal"
)

func TestBudgetService_GetDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.budgets.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !b.MonthlyLimit.Equal(core.DefaultMonthlyLimit) || len(b.CategoryLimits) != 0 || b.UserID != "alice" {
		t.Errorf("default budget = %+v", b)
	}
	if _, err := f.store.FindBudget(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Error("reading the default must not persist it")
	}

	if _, err := f.budgets.Get(ctx, "mallory"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestBudgetService_Save(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.budgets.Save(ctx, "alice", core.Budget{
		UserID:       "someone-else",
		MonthlyLimit: decimal.RequireFromString("1500.555"),
		CategoryLimits: map[core.Category]decimal.Decimal{
			core.Food:  decimal.NewFromInt(300),
			core.Bills: decimal.Zero,
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.UserID != "alice" || !saved.MonthlyLimit.Equal(decimal.RequireFromString("1500.56")) {
		t.Errorf("saved = %+v", saved)
	}
	if _, ok := saved.CategoryLimits[core.Bills]; ok {
		t.Error("zero limits should be dropped")
	}
	if !saved.UpdatedAt.Equal(testNow) {
		t.Errorf("updatedAt = %v", saved.UpdatedAt)
	}

	got, err := f.budgets.Get(ctx, "alice")
	if err != nil || !got.CategoryLimits[core.Food].Equal(decimal.NewFromInt(300)) {
		t.Errorf("get after save = %+v, %v", got, err)
	}
}

func TestBudgetService_SaveRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		user string
		b    core.Budget
		want *core.Error
	}{
		{"negative monthly", "alice", core.Budget{MonthlyLimit: decimal.NewFromInt(-1)}, core.ErrValidation},
		{"negative category", "alice", core.Budget{CategoryLimits: map[core.Category]decimal.Decimal{core.Food: decimal.NewFromInt(-5)}}, core.ErrValidation},
		{"unknown category", "alice", core.Budget{CategoryLimits: map[core.Category]decimal.Decimal{"Pets": decimal.NewFromInt(5)}}, core.ErrValidation},
		{"unknown user", "mallory", core.Budget{MonthlyLimit: decimal.NewFromInt(10)}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.budgets.Save(context.Background(), tt.user, tt.b); !errors.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want.Kind, err)
			}
		})
	}
}

func TestBudgetService_Status(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.budgets.Save(ctx, "alice", core.Budget{
		MonthlyLimit:   decimal.NewFromInt(400),
		CategoryLimits: map[core.Category]decimal.Decimal{core.Food: decimal.NewFromInt(200)},
	}); err != nil {
		t.Fatal(err)
	}
	f.create(t, "alice", input("190", core.Food, "catering", testNow))
	f.create(t, "alice", input("10", core.Health, "pharmacy", testNow))

	status, err := f.budgets.Status(ctx, "alice")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Overall.Spent.Equal(decimal.NewFromInt(200)) || !status.Overall.Progress.Percentage.Equal(decimal.NewFromInt(50)) {
		t.Errorf("overall = %+v", status.Overall)
	}
	if len(status.Categories) != 1 || status.Categories[0].Progress.Tier != core.TierCritical {
		t.Errorf("categories = %+v", status.Categories)
	}
	if len(status.NearingLimit) != 1 || status.NearingLimit[0] != core.Food {
		t.Errorf("nearing = %v", status.NearingLimit)
	}
	if len(status.Unbudgeted) != len(core.Categories())-1 {
		t.Errorf("unbudgeted = %v", status.Unbudgeted)
	}
}
