package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits kept for money values.
const AmountPlaces = 2

// ParseAmount converts user input into a positive amount with two decimal
// places. Both dot (12.34) and comma (12,34) separators are accepted and the
// third fractional digit is rounded half-up.
//
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = NormalizeAmount(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeAmount rounds d to AmountPlaces.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}
