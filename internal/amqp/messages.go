package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"smartexpense/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names what happened; it doubles as the AMQP message type.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
	EventBudgetAlert    EventType = "budget.alert"
)

func (t EventType) Valid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted, EventBudgetAlert:
		return true
	}
	return false
}

// BudgetAlert reports a budget line that reached the warning tier or above.
// An empty Category means the overall monthly limit.
type BudgetAlert struct {
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	Category   core.Category   `json:"category,omitempty"`
	Spent      decimal.Decimal `json:"spent"`
	Limit      decimal.Decimal `json:"limit"`
	Percentage decimal.Decimal `json:"percentage"`
	Tier       core.Tier       `json:"tier"`
}

// Event is the envelope published for every expense change and budget alert.
type Event struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	UserID     string        `json:"userId"`
	OccurredAt time.Time     `json:"occurredAt"`
	Expense    *core.Expense `json:"expense,omitempty"`
	Alert      *BudgetAlert  `json:"alert,omitempty"`
}

// NewExpenseEvent wraps a copy of e in an event of the given type.
func NewExpenseEvent(t EventType, e core.Expense) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     e.UserID,
		OccurredAt: time.Now().UTC(),
		Expense:    &e,
	}
}

func NewBudgetAlertEvent(userID string, alert BudgetAlert) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventBudgetAlert,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Alert:      &alert,
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and checks an event body.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if !e.Type.Valid() {
		return Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID == "" {
		return Event{}, fmt.Errorf("event %s has no user", e.ID)
	}
	switch {
	case e.Type == EventBudgetAlert && e.Alert == nil:
		return Event{}, fmt.Errorf("event %s: missing alert payload", e.ID)
	case e.Type != EventBudgetAlert && e.Expense == nil:
		return Event{}, fmt.Errorf("event %s: missing expense payload", e.ID)
	}
	return e, nil
}
