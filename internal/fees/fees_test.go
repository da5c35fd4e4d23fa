package fees

import (
	"math"
	"testing"

	"bank_system/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFeeFloat_Tiers(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		want   string
	}{
		{"free-tier-minimum", 0.01, "0.00"},
		{"free-tier-maximum", 2000.00, "0.00"},
		{"entry-tier-lower-bound", 2000.01, "5.00"},
		{"entry-tier-mid", 5000.00, "12.50"},
		{"entry-tier-cap", 10000.00, "20.00"},
		{"mid-tier-lower-bound", 10000.01, "20.00"},
		{"mid-tier-cap", 20000.00, "25.00"},
		{"upper-mid-tier-lower-bound", 20000.01, "25.00"},
		{"upper-mid-tier-cap", 50000.00, "40.00"},
		{"high-tier-lower-bound", 50000.01, "40.00"},
		{"high-tier-cap", 100000.00, "50.00"},
		{"top-tier-lower-bound", 100000.01, "50.00"},
		{"top-tier-cap", 500000.00, "100.00"},
		{"top-tier-large-amount", 1_000_000_000.00, "100.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, err := ComputeFeeFloat(tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, fee.StringFixed(2))
		})
	}
}

func TestComputeFee_Rounding(t *testing.T) {
	cases := map[string]string{
		"2000.01": "5.00",  // 5.000025
		"3333.33": "8.33",  // 8.333325
		"2002.00": "5.01",  // 5.005 rounds up
		"6006.00": "15.02", // 15.015 rounds up
	}
	for in, want := range cases {
		fee, err := ComputeFee(decimal.RequireFromString(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, fee.StringFixed(2), in)
	}
}

func TestComputeFee_InvalidAmounts(t *testing.T) {
	for _, amount := range []float64{0, -100, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ComputeFeeFloat(amount)
		require.Error(t, err, "amount %v", amount)
		assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))
	}
}

func TestComputeFee_WithinCapAndMonotonicPerTier(t *testing.T) {
	step := decimal.RequireFromString("37.13")
	amount := decimal.RequireFromString("0.01")
	limit := decimal.RequireFromString("250000")

	var prevFee decimal.Decimal
	var prevTier *decimal.Decimal
	first := true
	for amount.LessThan(limit) {
		fee, err := ComputeFee(amount)
		require.NoError(t, err)

		tier := DefaultSchedule.TierFor(amount)
		assert.False(t, fee.IsNegative(), "fee for %s", amount)
		if tier.Cap != nil {
			assert.True(t, fee.LessThanOrEqual(*tier.Cap), "fee %s above cap for %s", fee, amount)
		} else {
			assert.True(t, fee.IsZero(), "uncapped tier must be free, got %s for %s", fee, amount)
		}

		if !first && prevTier == tier.UpperBound {
			assert.True(t, fee.GreaterThanOrEqual(prevFee), "fee decreased at %s", amount)
		}
		first = false
		prevFee, prevTier = fee, tier.UpperBound
		amount = amount.Add(step)
	}
}

func TestSchedule_TierFor(t *testing.T) {
	tier := DefaultSchedule.TierFor(decimal.RequireFromString("2000.00"))
	require.NotNil(t, tier.UpperBound)
	assert.Equal(t, "2000", tier.UpperBound.String())

	top := DefaultSchedule.TierFor(decimal.RequireFromString("100000.01"))
	assert.Nil(t, top.UpperBound)
	assert.Equal(t, "100", top.Cap.String())
}
