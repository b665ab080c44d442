package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// BudgetLine is the month's standing against one limit.
	BudgetLine struct {
		Category  Category        `json:"category,omitempty"`
		Limit     decimal.Decimal `json:"limit"`
		Spent     decimal.Decimal `json:"spent"`
		Remaining decimal.Decimal `json:"remaining"`
		Progress  Progress        `json:"progress"`
	}

	// BudgetStatus compares the current month's spending with a budget.
	BudgetStatus struct {
		Year         int          `json:"year"`
		Month        time.Month   `json:"month"`
		Overall      BudgetLine   `json:"overall"`
		Categories   []BudgetLine `json:"categories"`
		Unbudgeted   []Category   `json:"unbudgeted"`
		NearingLimit []Category   `json:"nearingLimit"`
	}
)

func newBudgetLine(c Category, limit, spent decimal.Decimal) BudgetLine {
	return BudgetLine{
		Category:  c,
		Limit:     limit,
		Spent:     spent,
		Remaining: limit.Sub(spent),
		Progress:  BudgetProgress(spent, limit),
	}
}

// EvaluateBudget measures the spending in now's month against b. Category
// lines follow catalog order; categories without a positive limit are
// listed as unbudgeted.
func EvaluateBudget(b Budget, expenses []Expense, now time.Time) BudgetStatus {
	start, end := MonthBounds(now)

	spent := decimal.Zero
	byCategory := map[Category]decimal.Decimal{}
	for _, e := range expenses {
		if !within(e.Date.In(now.Location()), start, end) {
			continue
		}
		spent = spent.Add(e.Amount)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
	}

	status := BudgetStatus{
		Year:         start.Year(),
		Month:        start.Month(),
		Overall:      newBudgetLine("", b.MonthlyLimit, spent),
		Categories:   []BudgetLine{},
		Unbudgeted:   []Category{},
		NearingLimit: []Category{},
	}

	for _, c := range Categories() {
		limit, ok := b.CategoryLimits[c]
		if !ok || !limit.IsPositive() {
			status.Unbudgeted = append(status.Unbudgeted, c)
			continue
		}
		line := newBudgetLine(c, limit, byCategory[c])
		status.Categories = append(status.Categories, line)
		if line.Progress.Tier.AtLeast(TierWarning) {
			status.NearingLimit = append(status.NearingLimit, c)
		}
	}
	return status
}
