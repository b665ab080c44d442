package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func exp(amount string, c Category, desc string, date time.Time) Expense {
	return Expense{UserID: "u1", Amount: dec(amount), Category: c, Description: desc, Date: date}
}

var (
	aggNow    = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	thisMonth = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	lastMonth = time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)
)

func sampleExpenses() []Expense {
	return []Expense{
		exp("100", Food, "Groceries", thisMonth),
		exp("50", Food, "Dinner out", lastMonth),
		exp("30", Transport, "Bus pass", thisMonth),
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil, aggNow, Filter{})
	if !agg.Total.IsZero() || !agg.ThisMonthTotal.IsZero() || !agg.LastMonthTotal.IsZero() || !agg.PercentageChange.IsZero() {
		t.Fatalf("expected zero sums, got %+v", agg)
	}
	if agg.CategoryTotals == nil || len(agg.CategoryTotals) != 0 {
		t.Fatalf("expected empty category totals, got %v", agg.CategoryTotals)
	}
	if agg.TopCategories == nil || len(agg.TopCategories) != 0 {
		t.Fatalf("expected empty top categories, got %v", agg.TopCategories)
	}

	b, err := json.Marshal(agg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["categoryTotals"]) != "{}" || string(raw["topCategories"]) != "[]" {
		t.Fatalf("empty collections must encode as {} and [], got %s", b)
	}
}

func TestAggregateMonthOverMonth(t *testing.T) {
	agg := Aggregate(sampleExpenses(), aggNow, Filter{})

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"total", agg.Total, "180"},
		{"thisMonth", agg.ThisMonthTotal, "130"},
		{"lastMonth", agg.LastMonthTotal, "50"},
		{"percentageChange", agg.PercentageChange, "160.0"},
		{"food", agg.CategoryTotals[Food], "150"},
		{"transport", agg.CategoryTotals[Transport], "30"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if len(agg.CategoryTotals) != 2 {
		t.Errorf("expected 2 category totals, got %v", agg.CategoryTotals)
	}

	if len(agg.TopCategories) != 2 {
		t.Fatalf("expected 2 top categories, got %v", agg.TopCategories)
	}
	if agg.TopCategories[0].Category != Food || agg.TopCategories[1].Category != Transport {
		t.Fatalf("unexpected ranking %v", agg.TopCategories)
	}
	if agg.Count != 3 {
		t.Fatalf("count = %d", agg.Count)
	}
}

func TestAggregateFilterOnlyAffectsTotal(t *testing.T) {
	agg := Aggregate(sampleExpenses(), aggNow, Filter{Category: "Food"})
	if !agg.Total.Equal(dec("150")) || agg.Count != 2 {
		t.Fatalf("filtered total = %s (count %d), want 150 (2)", agg.Total, agg.Count)
	}
	if !agg.ThisMonthTotal.Equal(dec("130")) {
		t.Fatalf("month totals must ignore the filter, got %s", agg.ThisMonthTotal)
	}
	if !agg.CategoryTotals[Transport].Equal(dec("30")) {
		t.Fatalf("category totals must ignore the filter")
	}

	agg = Aggregate(sampleExpenses(), aggNow, Filter{Category: AllCategories, Search: "BUS"})
	if !agg.Total.Equal(dec("30")) || agg.Count != 1 {
		t.Fatalf("search total = %s, want 30", agg.Total)
	}
}

func TestFilterApply(t *testing.T) {
	got := Filter{Category: "Food"}.Apply(sampleExpenses())
	if len(got) != 2 || got[0].Description != "Groceries" || got[1].Description != "Dinner out" {
		t.Fatalf("unexpected filter result %v", got)
	}
	if n := len(Filter{Search: "out"}.Apply(sampleExpenses())); n != 1 {
		t.Fatalf("search matched %d expenses", n)
	}
	if !(Filter{Category: "All"}).IsZero() || (Filter{Search: "x"}).IsZero() {
		t.Fatalf("IsZero misreports")
	}
}

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		cur, prev, want string
	}{
		{"130", "50", "160"},
		{"50", "100", "-50"},
		{"100", "0", "0"},
		{"0", "0", "0"},
		{"10", "30", "-66.7"},
		{"1", "3", "-66.7"},
		{"2", "3", "-33.3"},
	}
	for _, tc := range cases {
		got := PercentageChange(dec(tc.cur), dec(tc.prev))
		if !got.Equal(dec(tc.want)) {
			t.Errorf("PercentageChange(%s, %s) = %s, want %s", tc.cur, tc.prev, got, tc.want)
		}
	}
}

func TestTopCategoriesStableAndTruncated(t *testing.T) {
	expenses := []Expense{
		exp("20", Bills, "rent share", thisMonth),
		exp("20", Health, "pharmacy", thisMonth),
		exp("50", Shopping, "shoes", thisMonth),
		exp("20", Other, "gift", thisMonth),
		exp("5", Food, "coffee", thisMonth),
	}
	top := Aggregate(expenses, aggNow, Filter{}).TopCategories
	want := []Category{Shopping, Bills, Health}
	if len(top) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), top)
	}
	for i, c := range want {
		if top[i].Category != c {
			t.Fatalf("position %d = %s, want %s (%v)", i, top[i].Category, c, top)
		}
	}
}

func TestMonthBoundaries(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, loc)
	expenses := []Expense{
		// 23:30 UTC on Dec 31 is already January in UTC+2.
		exp("10", Food, "late", time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)),
		exp("7", Food, "first", time.Date(2024, 12, 1, 0, 0, 0, 0, loc)),
		exp("3", Food, "too early", time.Date(2024, 11, 30, 23, 59, 59, 0, loc)),
		exp("1", Food, "next month", time.Date(2025, 2, 1, 0, 0, 0, 0, loc)),
	}
	agg := Aggregate(expenses, now, Filter{})
	if !agg.ThisMonthTotal.Equal(dec("10")) {
		t.Fatalf("this month = %s, want 10", agg.ThisMonthTotal)
	}
	if !agg.LastMonthTotal.Equal(dec("7")) {
		t.Fatalf("last month = %s, want 7", agg.LastMonthTotal)
	}

	start, end := MonthBounds(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC))
	if start.Day() != 1 || start.Month() != time.February || end.Month() != time.March || end.Day() != 1 {
		t.Fatalf("MonthBounds = %v, %v", start, end)
	}
}
