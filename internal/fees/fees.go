// Package fees computes transfer fees from a tiered schedule.
//
// Each tier covers amounts up to and including its upper bound; the first matching
// tier wins. The fee is amount * rate, capped, and rounded to cents half away from zero.
// All arithmetic is exact decimal arithmetic.
package fees

import (
	"math" // NaN and infinity checks

	"bank_system/internal/domain" // Domain models

	"github.com/shopspring/decimal" // Exact decimal arithmetic
)

// Tier is one row of the fee schedule
type Tier struct {
	UpperBound *decimal.Decimal // Inclusive upper bound, nil means unbounded
	Rate       decimal.Decimal  // Fraction of the amount, e.g. 0.0025
	Cap        *decimal.Decimal // Maximum fee for this tier, nil means no cap
}

// Schedule is an ordered list of tiers, ascending by upper bound
type Schedule []Tier

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// DefaultSchedule is the production fee schedule
var DefaultSchedule = Schedule{
	{UpperBound: dec("2000.00"), Rate: decimal.Zero},
	{UpperBound: dec("10000.00"), Rate: decimal.RequireFromString("0.0025"), Cap: dec("20.00")},
	{UpperBound: dec("20000.00"), Rate: decimal.RequireFromString("0.0020"), Cap: dec("25.00")},
	{UpperBound: dec("50000.00"), Rate: decimal.RequireFromString("0.00125"), Cap: dec("40.00")},
	{UpperBound: dec("100000.00"), Rate: decimal.RequireFromString("0.0008"), Cap: dec("50.00")},
	{Rate: decimal.RequireFromString("0.0005"), Cap: dec("100.00")},
}

// TierFor returns the tier an amount falls into
func (s Schedule) TierFor(amount decimal.Decimal) Tier {
	for _, t := range s {
		if t.UpperBound == nil || amount.LessThanOrEqual(*t.UpperBound) {
			return t
		}
	}
	return s[len(s)-1]
}

// Compute returns the fee for amount
func (s Schedule) Compute(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.NewError(domain.KindInvalidAmount, "Amount must be greater than 0")
	}
	t := s.TierFor(amount)
	fee := amount.Mul(t.Rate)
	if t.Cap != nil && fee.GreaterThan(*t.Cap) {
		fee = *t.Cap
	}
	return fee.Round(2), nil
}

// ComputeFee computes the fee with DefaultSchedule
func ComputeFee(amount decimal.Decimal) (decimal.Decimal, error) {
	return DefaultSchedule.Compute(amount)
}

// ComputeFeeFloat is ComputeFee for callers holding a float64; NaN and infinities are rejected
func ComputeFeeFloat(amount float64) (decimal.Decimal, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero, domain.NewError(domain.KindInvalidAmount, "Amount cannot be NaN or infinite")
	}
	return ComputeFee(decimal.NewFromFloat(amount))
}
