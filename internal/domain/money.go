package domain

import (
	"fmt" // Error formatting

	"github.com/shopspring/decimal" // Exact decimal arithmetic
)

// Money is an amount of currency in minor units (cents)
type Money int64

// MaxAmount is the largest decimal amount accepted for a single transfer
var MaxAmount = decimal.New(1, 13)

// ToMinorUnits converts a decimal amount to minor units, rounding half away from zero at 2 places
func ToMinorUnits(amount decimal.Decimal) (Money, error) {
	if amount.Abs().GreaterThan(MaxAmount) {
		return 0, fmt.Errorf("amount %s out of range", amount.String())
	}
	return Money(amount.Round(2).Shift(2).IntPart()), nil
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount with exactly two decimals, e.g. 1500.00
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := ToMinorUnits(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
