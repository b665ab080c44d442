// Package sheets mirrors expense activity and monthly summaries into a
// spreadsheet. The mirror is write-only; the store stays the source of truth.
package sheets

import (
	"context"
	"time"

	"smartexpense/internal/core"

	"github.com/shopspring/decimal"
)

// MonthlySummary is one user's closed month.
type MonthlySummary struct {
	UserID           string
	UserEmail        string
	Year             int
	Month            time.Month
	Total            decimal.Decimal
	Count            int
	PercentageChange decimal.Decimal
	TopCategories    []core.CategoryTotal
}

// Mirror appends rows to the spreadsheet and returns a reference to the
// written range.
type Mirror interface {
	AppendExpenseEvent(ctx context.Context, eventType string, e core.Expense) (rowRef string, err error)
	AppendMonthlySummary(ctx context.Context, s MonthlySummary) (rowRef string, err error)
}
