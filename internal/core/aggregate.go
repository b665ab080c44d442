package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AllCategories disables category filtering.
const AllCategories = "All"

// TopCategoryLimit is the number of entries kept in Aggregates.TopCategories.
const TopCategoryLimit = 3

type (
	// Filter narrows the expenses that contribute to Aggregates.Total.
	Filter struct {
		Category string `json:"category,omitempty"`
		Search   string `json:"search,omitempty"`
	}

	CategoryTotal struct {
		Category Category        `json:"category"`
		Total    decimal.Decimal `json:"total"`
	}

	// Aggregates are the dashboard metrics derived from a user's expenses.
	// Total and Count honour the filter; every other field is computed over
	// the complete list.
	Aggregates struct {
		Total            decimal.Decimal              `json:"total"`
		Count            int                          `json:"count"`
		ThisMonthTotal   decimal.Decimal              `json:"thisMonthTotal"`
		LastMonthTotal   decimal.Decimal              `json:"lastMonthTotal"`
		PercentageChange decimal.Decimal              `json:"percentageChange"`
		CategoryTotals   map[Category]decimal.Decimal `json:"categoryTotals"`
		TopCategories    []CategoryTotal              `json:"topCategories"`
	}
)

// IsZero reports whether the filter lets every expense through.
func (f Filter) IsZero() bool {
	c := strings.TrimSpace(f.Category)
	return (c == "" || c == AllCategories) && strings.TrimSpace(f.Search) == ""
}

// Match reports whether e passes the filter. The category must match exactly
// unless it is empty or "All"; the search term is a case-insensitive
// substring of the description.
func (f Filter) Match(e Expense) bool {
	if c := strings.TrimSpace(f.Category); c != "" && c != AllCategories && string(e.Category) != c {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		return strings.Contains(strings.ToLower(e.Description), strings.ToLower(s))
	}
	return true
}

// Apply returns the expenses matching f, preserving order.
func (f Filter) Apply(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// MonthBounds returns the half-open interval [start, end) of the calendar
// month containing t, in t's location.
func MonthBounds(t time.Time) (start, end time.Time) {
	y, m, _ := t.Date()
	start = time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// Aggregate reduces expenses into dashboard metrics relative to now.
func Aggregate(expenses []Expense, now time.Time, filter Filter) Aggregates {
	agg := Aggregates{
		Total:            decimal.Zero,
		ThisMonthTotal:   decimal.Zero,
		LastMonthTotal:   decimal.Zero,
		PercentageChange: decimal.Zero,
		CategoryTotals:   map[Category]decimal.Decimal{},
		TopCategories:    []CategoryTotal{},
	}

	thisStart, thisEnd := MonthBounds(now)
	lastStart := thisStart.AddDate(0, -1, 0)

	var order []Category
	for _, e := range expenses {
		if filter.Match(e) {
			agg.Total = agg.Total.Add(e.Amount)
			agg.Count++
		}

		// Dates are compared in now's location so month edges follow the caller's calendar.
		d := e.Date.In(now.Location())
		switch {
		case within(d, thisStart, thisEnd):
			agg.ThisMonthTotal = agg.ThisMonthTotal.Add(e.Amount)
		case within(d, lastStart, thisStart):
			agg.LastMonthTotal = agg.LastMonthTotal.Add(e.Amount)
		}

		sum, seen := agg.CategoryTotals[e.Category]
		if !seen {
			order = append(order, e.Category)
		}
		agg.CategoryTotals[e.Category] = sum.Add(e.Amount)
	}

	agg.PercentageChange = PercentageChange(agg.ThisMonthTotal, agg.LastMonthTotal)
	agg.TopCategories = topCategories(agg.CategoryTotals, order, TopCategoryLimit)
	return agg
}

// PercentageChange returns (current-previous)/previous*100 rounded to one
// decimal place, or zero when there is no previous baseline.
func PercentageChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(1)
}

func topCategories(totals map[Category]decimal.Decimal, order []Category, n int) []CategoryTotal {
	ranked := make([]CategoryTotal, 0, len(order))
	for _, c := range order {
		ranked = append(ranked, CategoryTotal{Category: c, Total: totals[c]})
	}
	// Stable keeps first-seen order between equal totals.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total.GreaterThan(ranked[j].Total)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
