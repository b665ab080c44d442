package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/services"

	"github.com/shopspring/decimal"
)

// HeaderUserID carries the authenticated caller, set by the session layer
// in front of this service.
const HeaderUserID = "X-User-ID"

const maxBodyBytes = 1 << 20

var errMissingUser = core.NewError(core.KindInvalidCredentials, "Not authenticated", nil)

func callerID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return "", errMissingUser
	}
	return id, nil
}

// decodeJSON reads a single JSON document into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewError(core.KindBadRequest, "Request body is empty", err)
		}
		return core.NewError(core.KindBadRequest, "Invalid request body", err)
	}
	if dec.More() {
		return core.NewError(core.KindBadRequest, "Invalid request body", errors.New("trailing data"))
	}
	return nil
}

// amountValue accepts money as a JSON string ("12,34") or number (12.34).
type amountValue string

func (a *amountValue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("amount must be a string or a number")
	}
	*a = amountValue(n.String())
	return nil
}

// limit parses a budget limit. Zero is allowed; negatives are left for
// budget validation to reject.
func (a amountValue) limit() (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(a)), ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, core.ValidationError(fmt.Errorf("invalid limit %q", string(a)))
	}
	return d, nil
}

type expenseRequest struct {
	Amount      amountValue `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

// input converts the request into service input. A missing date means today.
func (req expenseRequest) input(now time.Time) (services.ExpenseInput, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return services.ExpenseInput{}, core.ValidationError(err)
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return services.ExpenseInput{}, core.ValidationError(err)
	}
	date, err := parseDate(req.Date, now)
	if err != nil {
		return services.ExpenseInput{}, core.ValidationError(err)
	}
	return services.ExpenseInput{
		Amount:      amount,
		Category:    category,
		Description: sanitizeInput(req.Description),
		Date:        date,
	}, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Date-only values are placed in
// now's location.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}

type budgetRequest struct {
	MonthlyLimit   *amountValue           `json:"monthlyLimit"`
	CategoryLimits map[string]amountValue `json:"categoryLimits"`
}

// keepsMonthlyLimit reports whether the body leaves the monthly limit
// unset, empty or null.
func (req budgetRequest) keepsMonthlyLimit() bool {
	return req.MonthlyLimit == nil || strings.TrimSpace(string(*req.MonthlyLimit)) == ""
}

// budget builds the budget to save. An unset monthly limit keeps current's.
func (req budgetRequest) budget(current core.Budget) (core.Budget, error) {
	monthly := current.MonthlyLimit
	if !req.keepsMonthlyLimit() {
		var err error
		if monthly, err = req.MonthlyLimit.limit(); err != nil {
			return core.Budget{}, err
		}
	}
	b := core.Budget{MonthlyLimit: monthly, CategoryLimits: make(map[core.Category]decimal.Decimal, len(req.CategoryLimits))}
	for name, v := range req.CategoryLimits {
		c, err := core.ParseCategory(name)
		if err != nil {
			return core.Budget{}, core.ValidationError(err)
		}
		limit, err := v.limit()
		if err != nil {
			return core.Budget{}, err
		}
		b.CategoryLimits[c] = limit
	}
	return b, nil
}

// filterFromQuery reads ?category=&search=. The category is matched
// case-insensitively against the catalog; "All" or empty disables it.
func filterFromQuery(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	f := core.Filter{Search: sanitizeInput(q.Get("search"))}
	c := strings.TrimSpace(q.Get("category"))
	if c == "" || strings.EqualFold(c, core.AllCategories) {
		return f, nil
	}
	category, err := core.ParseCategory(c)
	if err != nil {
		return core.Filter{}, core.ValidationError(err)
	}
	f.Category = string(category)
	return f, nil
}

// sanitizeInput trims s and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
