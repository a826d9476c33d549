package calc

import (
	"github.com/shopspring/decimal"
)

// Scale is the fixed-point denominator for percentage fields: 1e8 == 100%.
const Scale = 100_000_000

// ScaleDec is Scale as a decimal, shared by all percentage math.
var ScaleDec = decimal.NewFromInt(Scale)

// ValidPercentage reports whether pct is inside [0, Scale].
func ValidPercentage(pct int64) bool {
	return pct >= 0 && pct <= Scale
}

// FloorDiv returns the integer quotient of a/b, truncated towards zero.
// Amounts are non-negative throughout the ledger, so truncation equals floor.
// QuoRem with precision 0 is exact; plain Div rounds at DivisionPrecision.
func FloorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// CeilDiv returns the integer quotient of a/b rounded up.
func CeilDiv(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, 0)
	if r.IsZero() {
		return q
	}
	return q.Add(decimal.NewFromInt(1))
}

// PercentageOf returns amount * pct / Scale with floor division.
// Truncation always favors the protocol: fees round down on the discount
// side and the percentage term of a fee rounds down before the absolute
// minimum is applied.
func PercentageOf(amount decimal.Decimal, pct int64) decimal.Decimal {
	return FloorDiv(amount.Mul(decimal.NewFromInt(pct)), ScaleDec)
}

// WithdrawFee returns max(assets * feePct / Scale, absoluteMin).
func WithdrawFee(assets decimal.Decimal, feePct int64, absoluteMin decimal.Decimal) decimal.Decimal {
	fee := PercentageOf(assets, feePct)
	if fee.LessThan(absoluteMin) {
		return absoluteMin
	}
	return fee
}

// PenaltyAmount returns assets - assets * penaltyPct / Scale, the amount a
// queued excess withdrawal is owed after the penalty discount.
func PenaltyAmount(assets decimal.Decimal, penaltyPct int64) decimal.Decimal {
	return assets.Sub(PercentageOf(assets, penaltyPct))
}

// InvestedValue reports the current value of invested principal given the
// mainnet exchange price relative to the baseline recorded at initialization:
// principal * price / initialPrice, floored.
func InvestedValue(principal, price, initialPrice decimal.Decimal) decimal.Decimal {
	if initialPrice.IsZero() {
		return principal
	}
	return FloorDiv(principal.Mul(price), initialPrice)
}

// SharesForAssets converts an asset amount to shares at the current ratio,
// flooring in favor of the vault. A fresh vault converts 1:1.
func SharesForAssets(assets, totalShares, totalAssets decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() || totalAssets.IsZero() {
		return assets
	}
	return FloorDiv(assets.Mul(totalShares), totalAssets)
}

// SharesForAssetsUp is SharesForAssets rounding up, used when burning shares
// against a requested asset amount so the vault never burns too few.
func SharesForAssetsUp(assets, totalShares, totalAssets decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() || totalAssets.IsZero() {
		return assets
	}
	return CeilDiv(assets.Mul(totalShares), totalAssets)
}

// AssetsForShares converts a share amount to assets at the current ratio,
// flooring in favor of the vault. A fresh vault converts 1:1.
func AssetsForShares(shares, totalShares, totalAssets decimal.Decimal) decimal.Decimal {
	if totalShares.IsZero() {
		return shares
	}
	return FloorDiv(shares.Mul(totalAssets), totalShares)
}
