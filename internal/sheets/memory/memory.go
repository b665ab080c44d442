// Package memory is an in-process spreadsheet mirror for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"smartexpense/internal/core"
	"smartexpense/internal/sheets"
)

// ExpenseRow is one recorded expense event.
type ExpenseRow struct {
	EventType string
	Expense   core.Expense
}

type Mirror struct {
	mu        sync.Mutex
	expenses  []ExpenseRow
	summaries []sheets.MonthlySummary
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) AppendExpenseEvent(_ context.Context, eventType string, e core.Expense) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, ExpenseRow{EventType: eventType, Expense: e})
	return fmt.Sprintf("mem:expenses:%d", len(m.expenses)), nil
}

func (m *Mirror) AppendMonthlySummary(_ context.Context, s sheets.MonthlySummary) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.TopCategories = append([]core.CategoryTotal(nil), s.TopCategories...)
	m.summaries = append(m.summaries, s)
	return fmt.Sprintf("mem:summaries:%d", len(m.summaries)), nil
}

// ExpenseRows returns a copy of the recorded expense events.
func (m *Mirror) ExpenseRows() []ExpenseRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExpenseRow(nil), m.expenses...)
}

// Summaries returns a copy of the recorded monthly summaries.
func (m *Mirror) Summaries() []sheets.MonthlySummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sheets.MonthlySummary(nil), m.summaries...)
}
