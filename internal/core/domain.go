package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Health        Category = "Health"
	Other         Category = "Other"
)

// MaxDescriptionLength bounds expense descriptions.
const MaxDescriptionLength = 200

// DefaultMonthlyLimit is applied to users who never saved a budget.
var DefaultMonthlyLimit = decimal.NewFromInt(5000)

type (
	Category string

	// CategoryInfo is the presentation metadata shown next to a category.
	CategoryInfo struct {
		Name  Category `json:"name"`
		Icon  string   `json:"icon"`
		Color string   `json:"color"`
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Expense struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Budget struct {
		UserID         string                       `json:"userId"`
		MonthlyLimit   decimal.Decimal              `json:"monthlyLimit"`
		CategoryLimits map[Category]decimal.Decimal `json:"categoryLimits"`
		UpdatedAt      time.Time                    `json:"updatedAt"`
	}
)

var categories = []CategoryInfo{
	{Name: Food, Icon: "🍔", Color: "from-orange-400 to-red-500"},
	{Name: Transport, Icon: "🚗", Color: "from-blue-400 to-indigo-500"},
	{Name: Entertainment, Icon: "🎮", Color: "from-purple-400 to-pink-500"},
	{Name: Shopping, Icon: "🛍️", Color: "from-pink-400 to-rose-500"},
	{Name: Bills, Icon: "📄", Color: "from-yellow-400 to-orange-500"},
	{Name: Health, Icon: "💊", Color: "from-green-400 to-emerald-500"},
	{Name: Other, Icon: "📦", Color: "from-gray-400 to-slate-500"},
}

var (
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidCategory  = errors.New("unknown category")
	ErrEmptyDescription = errors.New("empty description")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrMissingOwner     = errors.New("missing owner")
	ErrNegativeLimit    = errors.New("limit cannot be negative")
)

// Categories returns every known category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = c.Name
	}
	return out
}

// CategoryCatalog returns the name/icon/color triples for all categories.
func CategoryCatalog() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if known.Name == c {
			return true
		}
	}
	return false
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, known := range categories {
		if strings.EqualFold(string(known.Name), s) {
			return known.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Public returns a copy of the user that is safe to hand to callers.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrMissingOwner
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len([]rune(e.Description)) > MaxDescriptionLength {
		return fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// DefaultBudget is the budget a user has before saving one.
func DefaultBudget(userID string) Budget {
	return Budget{
		UserID:         userID,
		MonthlyLimit:   DefaultMonthlyLimit,
		CategoryLimits: map[Category]decimal.Decimal{},
	}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrMissingOwner
	}
	if b.MonthlyLimit.IsNegative() {
		return fmt.Errorf("monthly %w", ErrNegativeLimit)
	}
	for c, limit := range b.CategoryLimits {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, c)
		}
		if limit.IsNegative() {
			return fmt.Errorf("%s %w", c, ErrNegativeLimit)
		}
	}
	return nil
}
