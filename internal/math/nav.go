// internal/math/nav.go
package math

import (
	"NavLedger/internal/errs"
	"math"
	"math/big"
)

// NAV returns the per-share value of a fund in e6.
// An empty fund prices at InitialNAVE6; a fund with shares but no positive value cannot be priced.
func NAV(totalValueE6 int64, totalShares uint64) (int64, error) {
	if totalShares == 0 {
		return InitialNAVE6, nil
	}
	if totalValueE6 <= 0 {
		return 0, errs.Newf(errs.CodeNAVCalculation, "total value %d with %d shares", totalValueE6, totalShares)
	}

	product := MultiplyInt128(totalValueE6, ScaleE6)
	defer putInt128(product)

	return divideBigU64(product, totalShares)
}

// SharesToMint returns floor(deposit * 1e6 / nav). Rounds in the fund's favor.
func SharesToMint(depositE6, navE6 int64) (uint64, error) {
	if navE6 <= 0 {
		return 0, errs.Newf(errs.CodeNAVCalculation, "nav %d", navE6)
	}
	if depositE6 <= 0 {
		return 0, errs.Newf(errs.CodeInvalidAmount, "deposit %d", depositE6)
	}

	shares, err := MulDivToU64(depositE6, ScaleE6, navE6, RoundDown)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, errs.Newf(errs.CodeShareCalculation, "deposit %d at nav %d mints zero shares", depositE6, navE6)
	}
	return shares, nil
}

// RedemptionValue returns floor(shares * nav / 1e6). Rounds in the fund's favor.
func RedemptionValue(shares uint64, navE6 int64) (int64, error) {
	if navE6 <= 0 {
		return 0, errs.Newf(errs.CodeNAVCalculation, "nav %d", navE6)
	}
	if shares == 0 {
		return 0, errs.New(errs.CodeInvalidAmount)
	}
	return MulDivU64(shares, navE6, ScaleE6, RoundDown)
}

// divideBigU64 floors numerator / denominator for a share count that may exceed int64.
func divideBigU64(numerator *big.Int, denominator uint64) (int64, error) {
	if denominator <= math.MaxInt64 {
		return DivideInt128(numerator, int64(denominator), RoundDown)
	}

	denom := getInt128()
	defer putInt128(denom)
	denom.SetUint64(denominator)

	q := getInt128()
	defer putInt128(q)
	r := getInt128()
	defer putInt128(r)

	q.DivMod(numerator, denom, r)
	if !q.IsInt64() {
		return 0, errs.ErrOverflow
	}
	return q.Int64(), nil
}
