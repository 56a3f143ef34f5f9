// internal/math/fees.go
package math

import (
	"NavLedger/internal/errs"
)

// ManagementFee prorates an annual bps fee linearly over elapsedSecs:
// floor(aum * bps * elapsed / (10_000 * SECONDS_PER_YEAR)). No compounding.
func ManagementFee(aumE6 int64, feeBps uint32, elapsedSecs int64) (int64, error) {
	if aumE6 <= 0 || feeBps == 0 || elapsedSecs <= 0 {
		return 0, nil
	}

	product := MultiplyInt128(aumE6, int64(feeBps))
	defer putInt128(product)

	factor := getInt128()
	defer putInt128(factor)
	product.Mul(product, factor.SetInt64(elapsedSecs))

	return DivideInt128(product, BPSDenominator*SecondsPerYear, RoundDown)
}

// PerformanceFee charges feeBps of the profit above the high-water mark.
// Profit is approximated against the current NAV:
//
//	total_profit = floor((nav - hwm) * total_value / nav)
//	fee          = floor(total_profit * bps / 10_000)
func PerformanceFee(currentNAVE6, hwmE6, totalValueE6 int64, feeBps uint32) (int64, error) {
	if currentNAVE6 <= hwmE6 || feeBps == 0 || totalValueE6 <= 0 {
		return 0, nil
	}

	profitPerShare, err := CheckedSubI64(currentNAVE6, hwmE6)
	if err != nil {
		return 0, err
	}
	if currentNAVE6 <= 0 {
		return 0, errs.Newf(errs.CodeNAVCalculation, "nav %d", currentNAVE6)
	}

	totalProfit, err := MulDiv(profitPerShare, totalValueE6, currentNAVE6, RoundDown)
	if err != nil {
		return 0, err
	}

	return ApplyBps(totalProfit, feeBps)
}

// ValidateFeeBps enforces the management and performance fee caps.
func ValidateFeeBps(managementFeeBps, performanceFeeBps uint32) error {
	if managementFeeBps > MaxManagementFeeBps {
		return errs.Newf(errs.CodeManagementFeeTooHigh, "%d bps > %d", managementFeeBps, MaxManagementFeeBps)
	}
	if performanceFeeBps > MaxPerformanceFeeBps {
		return errs.Newf(errs.CodePerformanceFeeTooHigh, "%d bps > %d", performanceFeeBps, MaxPerformanceFeeBps)
	}
	return nil
}

// CanCollectFees reports whether a full collection interval has elapsed.
// An elapsed time that does not fit in int64 counts as not elapsed.
func CanCollectFees(lastCollectionTs, intervalSecs, now int64) bool {
	elapsed, err := CheckedSubI64(now, lastCollectionTs)
	if err != nil {
		return false
	}
	return elapsed >= intervalSecs
}
