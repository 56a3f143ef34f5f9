// internal/math/fixedpoint.go
package math

import (
	"NavLedger/internal/errs"
	"math"
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

// E6Config is the precision of every monetary value, NAV and share count.
var E6Config = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}

const (
	ScaleE6      int64 = 1_000_000
	InitialNAVE6 int64 = ScaleE6 // NAV 1.0

	BPSDenominator int64 = 10_000
	SecondsPerYear int64 = 365 * 24 * 60 * 60

	MaxManagementFeeBps  uint32 = 1_000 // 10%
	MaxPerformanceFeeBps uint32 = 5_000 // 50%

	MinDepositAmountE6 int64 = 1_000_000
	MaxFundNameLen           = 32

	DefaultFeeCollectionIntervalSecs int64 = 24 * 60 * 60
	SnapshotWindowSecs               int64 = 60 * 60
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

type RoundingMode int

const (
	RoundDown     RoundingMode = iota // floor, the only mode ledger math uses
	RoundUp                           // ceiling
	RoundHalfEven                     // banker's rounding, reporting only
)

// --- Checked int64 ---

// CheckedAddI64 fails with ErrOverflow past MaxInt64 and ErrUnderflow past MinInt64.
func CheckedAddI64(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, errs.ErrOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, errs.ErrUnderflow
	}
	return a + b, nil
}

// CheckedSubI64 reports the direction of the wrap the same way as CheckedAddI64.
func CheckedSubI64(a, b int64) (int64, error) {
	if b < 0 && a > math.MaxInt64+b {
		return 0, errs.ErrOverflow
	}
	if b > 0 && a < math.MinInt64+b {
		return 0, errs.ErrUnderflow
	}
	return a - b, nil
}

func CheckedMulI64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, errs.ErrOverflow
	}
	c := a * b
	if c/b != a {
		return 0, errs.ErrOverflow
	}
	return c, nil
}

func CheckedDivI64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errs.ErrDivisionByZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, errs.ErrOverflow
	}
	return a / b, nil
}

// --- Checked uint64 ---

func CheckedAddU64(a, b uint64) (uint64, error) {
	c := a + b
	if c < a {
		return 0, errs.ErrOverflow
	}
	return c, nil
}

func CheckedSubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, errs.ErrUnderflow
	}
	return a - b, nil
}

func CheckedMulU64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if c/b != a {
		return 0, errs.ErrOverflow
	}
	return c, nil
}

func CheckedDivU64(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, errs.ErrDivisionByZero
	}
	return a / b, nil
}

// Counters (lp_count, fund totals) are uint32.

func CheckedAddU32(a, b uint32) (uint32, error) {
	c := a + b
	if c < a {
		return 0, errs.ErrOverflow
	}
	return c, nil
}

func CheckedSubU32(a, b uint32) (uint32, error) {
	if b > a {
		return 0, errs.ErrUnderflow
	}
	return a - b, nil
}

// --- Widened product-then-divide ---

// MulDiv computes a * b / denominator with a widened intermediate.
// RoundDown floors toward negative infinity.
func MulDiv(a, b, denominator int64, mode RoundingMode) (int64, error) {
	if denominator == 0 {
		return 0, errs.ErrDivisionByZero
	}
	product := MultiplyInt128(a, b)
	defer putInt128(product)

	return DivideInt128(product, denominator, mode)
}

// MulDivU64 is MulDiv for an unsigned multiplicand, used for share-denominated products.
func MulDivU64(shares uint64, b, denominator int64, mode RoundingMode) (int64, error) {
	if denominator == 0 {
		return 0, errs.ErrDivisionByZero
	}
	product := getInt128()
	defer putInt128(product)

	factor := getInt128()
	defer putInt128(factor)

	product.SetUint64(shares)
	product.Mul(product, factor.SetInt64(b))

	return DivideInt128(product, denominator, mode)
}

// MulDivToU64 computes a * b / denominator and returns an unsigned result.
func MulDivToU64(a, b int64, denominator int64, mode RoundingMode) (uint64, error) {
	if denominator == 0 {
		return 0, errs.ErrDivisionByZero
	}
	product := MultiplyInt128(a, b)
	defer putInt128(product)

	q, err := divideBig(product, denominator, mode)
	if err != nil {
		return 0, err
	}
	defer putInt128(q)

	if q.Sign() < 0 {
		return 0, errs.ErrUnderflow
	}
	if !q.IsUint64() {
		return 0, errs.ErrOverflow
	}
	return q.Uint64(), nil
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	factor := getInt128()
	result.Mul(result.SetInt64(a), factor.SetInt64(b))
	putInt128(factor)
	return result
}

// DivideInt128 performs numerator / denominator with rounding.
// The quotient must fit in int64.
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) (int64, error) {
	q, err := divideBig(numerator, denominator, roundingMode)
	if err != nil {
		return 0, err
	}
	defer putInt128(q)

	if !q.IsInt64() {
		if q.Sign() < 0 {
			return 0, errs.ErrUnderflow
		}
		return 0, errs.ErrOverflow
	}
	return q.Int64(), nil
}

func divideBig(numerator *big.Int, denominator int64, roundingMode RoundingMode) (*big.Int, error) {
	if denominator == 0 {
		return nil, errs.ErrDivisionByZero
	}

	num := getInt128()
	defer putInt128(num)
	denom := getInt128()
	defer putInt128(denom)

	num.Set(numerator)
	denom.SetInt64(denominator)
	if denominator < 0 {
		num.Neg(num)
		denom.Neg(denom)
	}

	quotient := getInt128()
	remainder := getInt128()
	defer putInt128(remainder)

	// Euclidean division with a positive divisor floors the quotient.
	quotient.DivMod(num, denom, remainder)

	switch roundingMode {
	case RoundUp:
		if remainder.Sign() != 0 {
			quotient.Add(quotient, big.NewInt(1))
		}
	case RoundHalfEven:
		twice := getInt128()
		twice.Lsh(remainder, 1)
		cmp := twice.Cmp(denom)
		putInt128(twice)

		if cmp > 0 || (cmp == 0 && quotient.Bit(0) == 1) {
			quotient.Add(quotient, big.NewInt(1))
		}
	}

	return quotient, nil
}

// ApplyBps returns floor(amount * bps / 10_000).
func ApplyBps(amount int64, bps uint32) (int64, error) {
	return MulDiv(amount, int64(bps), BPSDenominator, RoundDown)
}
