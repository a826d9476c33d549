package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func usdc(n int64) decimal.Decimal {
	return decimal.NewFromInt(n * 1_000_000)
}

func TestWithdrawFee(t *testing.T) {
	const feePct = 10_000 // 0.01%
	absMin := usdc(20)

	tests := []struct {
		name     string
		assets   decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "absolute minimum dominates",
			assets:   usdc(1000),
			expected: usdc(20),
		},
		{
			name:     "percentage dominates",
			assets:   usdc(1_000_000),
			expected: usdc(100),
		},
		{
			name:     "crossover point is exactly the minimum",
			assets:   usdc(200_000),
			expected: usdc(20),
		},
		{
			name:     "zero assets still pay the minimum",
			assets:   decimal.Zero,
			expected: usdc(20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WithdrawFee(tt.assets, feePct, absMin)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestWithdrawFeeFloorsPercentageTerm(t *testing.T) {
	// 3 units at 0.01% -> 0.0003, floors to 0 before the minimum applies
	fee := WithdrawFee(decimal.NewFromInt(3), 10_000, decimal.NewFromInt(1))
	assert.True(t, decimal.NewFromInt(1).Equal(fee), "got %s", fee)
}

func TestPenaltyAmount(t *testing.T) {
	const penaltyPct = 2_000_000 // 2%

	tests := []struct {
		name     string
		assets   decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "2% of 3000",
			assets:   usdc(3000),
			expected: usdc(2940),
		},
		{
			name:     "2% of 1000",
			assets:   usdc(1000),
			expected: usdc(980),
		},
		{
			name:     "discount truncates in the protocol's favor",
			assets:   decimal.NewFromInt(99),
			expected: decimal.NewFromInt(98), // 99 - floor(1.98) = 99 - 1
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PenaltyAmount(tt.assets, penaltyPct)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestPercentageOf(t *testing.T) {
	// 10% of 2000 = 200
	result := PercentageOf(usdc(2000), 10_000_000)
	assert.True(t, usdc(200).Equal(result), "got %s", result)

	// 100% is identity
	result = PercentageOf(usdc(123), Scale)
	assert.True(t, usdc(123).Equal(result), "got %s", result)

	// 0% is zero
	assert.True(t, PercentageOf(usdc(123), 0).IsZero())
}

func TestInvestedValue(t *testing.T) {
	initial := usdc(2)

	// no price movement: value == principal
	v := InvestedValue(usdc(1000), initial, initial)
	assert.True(t, usdc(1000).Equal(v), "got %s", v)

	// price doubles: value doubles
	v = InvestedValue(usdc(1000), usdc(4), initial)
	assert.True(t, usdc(2000).Equal(v), "got %s", v)

	// price halves: value halves
	v = InvestedValue(usdc(1000), usdc(1), initial)
	assert.True(t, usdc(500).Equal(v), "got %s", v)

	// non-even ratio floors
	v = InvestedValue(decimal.NewFromInt(10), decimal.NewFromInt(1), decimal.NewFromInt(3))
	assert.True(t, decimal.NewFromInt(3).Equal(v), "got %s", v)
}

func TestShareConversions(t *testing.T) {
	// empty vault converts 1:1 both ways
	assert.True(t, usdc(5).Equal(SharesForAssets(usdc(5), decimal.Zero, decimal.Zero)))
	assert.True(t, usdc(5).Equal(AssetsForShares(usdc(5), decimal.Zero, decimal.Zero)))

	totalShares := usdc(1000)
	totalAssets := usdc(2000)

	// 2 assets per share
	shares := SharesForAssets(usdc(100), totalShares, totalAssets)
	assert.True(t, usdc(50).Equal(shares), "got %s", shares)

	assets := AssetsForShares(usdc(50), totalShares, totalAssets)
	assert.True(t, usdc(100).Equal(assets), "got %s", assets)

	// round trip never credits more than put in
	back := AssetsForShares(SharesForAssets(decimal.NewFromInt(99), totalShares, totalAssets), totalShares, totalAssets)
	assert.True(t, back.LessThanOrEqual(decimal.NewFromInt(99)))
}

func TestValidPercentage(t *testing.T) {
	assert.True(t, ValidPercentage(0))
	assert.True(t, ValidPercentage(Scale))
	assert.False(t, ValidPercentage(Scale+1))
	assert.False(t, ValidPercentage(110_000_000))
	assert.False(t, ValidPercentage(-1))
}

func TestFloorDivExactness(t *testing.T) {
	// a case where rounding division would bump up: 1e16-1 / 1e8
	a := decimal.RequireFromString("9999999999999999")
	q := FloorDiv(a, ScaleDec)
	assert.True(t, decimal.NewFromInt(99_999_999).Equal(q), "got %s", q)
}
