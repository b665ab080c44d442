package core

import "github.com/shopspring/decimal"

// Tier is the presentation band of a budget progress value.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierCaution  Tier = "caution"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

var (
	hundred      = decimal.NewFromInt(100)
	criticalFrom = decimal.NewFromInt(90)
	warningFrom  = decimal.NewFromInt(75)
	cautionFrom  = decimal.NewFromInt(50)
)

type Progress struct {
	Percentage decimal.Decimal `json:"percentage"`
	Tier       Tier            `json:"colorTier"`
}

// BudgetProgress returns how much of limit has been spent, capped at 100%.
// A non-positive limit yields 0% in the normal tier.
func BudgetProgress(spent, limit decimal.Decimal) Progress {
	if !limit.IsPositive() {
		return Progress{Percentage: decimal.Zero, Tier: TierNormal}
	}
	pct := spent.Div(limit).Mul(hundred)
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	return Progress{Percentage: pct.Round(2), Tier: tierFor(pct)}
}

func tierFor(pct decimal.Decimal) Tier {
	switch {
	case pct.GreaterThanOrEqual(criticalFrom):
		return TierCritical
	case pct.GreaterThanOrEqual(warningFrom):
		return TierWarning
	case pct.GreaterThanOrEqual(cautionFrom):
		return TierCaution
	default:
		return TierNormal
	}
}

// AtLeast reports whether t is as severe as other.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

func (t Tier) rank() int {
	switch t {
	case TierCaution:
		return 1
	case TierWarning:
		return 2
	case TierCritical:
		return 3
	default:
		return 0
	}
}
