package math_test

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"
	"errors"
	"math"
	"testing"
)

// ============================================================================
// Test: NAV
// ============================================================================

func TestNAV(t *testing.T) {
	tests := []struct {
		name   string
		value  int64
		shares uint64
		want   int64
	}{
		{"empty fund", 0, 0, 1_000_000},
		{"empty fund ignores value", 5_000_000, 0, 1_000_000},
		{"par", 1_000_000, 1_000_000, 1_000_000},
		{"one and a half", 15_000_000, 10_000_000, 1_500_000},
		{"half", 5_000_000, 10_000_000, 500_000},
		{"floors", 10_000_000, 3_000_000, 3_333_333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fpmath.NAV(tt.value, tt.shares)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNAV_NonPositiveValueWithShares(t *testing.T) {
	for _, v := range []int64{0, -1} {
		if _, err := fpmath.NAV(v, 1_000_000); !errors.Is(err, errs.ErrNAVCalculation) {
			t.Errorf("value %d: got %v, want NAVCalculationError", v, err)
		}
	}
}

func TestNAV_HugeShareCount(t *testing.T) {
	got, err := fpmath.NAV(math.MaxInt64, math.MaxUint64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// MaxInt64 * 1e6 / MaxUint64 floors to 499_999.
	if got != 499_999 {
		t.Errorf("got %d, want 499999", got)
	}
}

// ============================================================================
// Test: SharesToMint / RedemptionValue
// ============================================================================

func TestSharesToMint(t *testing.T) {
	tests := []struct {
		deposit int64
		nav     int64
		want    uint64
	}{
		{100_000_000, 1_000_000, 100_000_000},
		{100_000_000, 1_500_000, 66_666_666},
		{100_000_000, 500_000, 200_000_000},
	}
	for _, tt := range tests {
		got, err := fpmath.SharesToMint(tt.deposit, tt.nav)
		if err != nil {
			t.Fatalf("deposit %d nav %d: unexpected error: %v", tt.deposit, tt.nav, err)
		}
		if got != tt.want {
			t.Errorf("deposit %d nav %d: got %d, want %d", tt.deposit, tt.nav, got, tt.want)
		}
	}
}

func TestSharesToMint_Errors(t *testing.T) {
	if _, err := fpmath.SharesToMint(100, 0); !errors.Is(err, errs.ErrNAVCalculation) {
		t.Errorf("zero nav: got %v, want NAVCalculationError", err)
	}
	if _, err := fpmath.SharesToMint(0, 1_000_000); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("zero deposit: got %v, want InvalidAmount", err)
	}
	// NAV is checked before the amount.
	if _, err := fpmath.SharesToMint(-5, -1); !errors.Is(err, errs.ErrNAVCalculation) {
		t.Errorf("both invalid: got %v, want NAVCalculationError", err)
	}
	if _, err := fpmath.SharesToMint(1, 2_000_000); !errors.Is(err, errs.ErrShareCalculation) {
		t.Errorf("dust deposit: got %v, want ShareCalculationError", err)
	}
}

func TestRedemptionValue(t *testing.T) {
	got, err := fpmath.RedemptionValue(100_000_000, 1_500_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 150_000_000 {
		t.Errorf("got %d, want 150000000", got)
	}

	if _, err := fpmath.RedemptionValue(0, 1_000_000); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("zero shares: got %v, want InvalidAmount", err)
	}
	if _, err := fpmath.RedemptionValue(10, 0); !errors.Is(err, errs.ErrNAVCalculation) {
		t.Errorf("zero nav: got %v, want NAVCalculationError", err)
	}
}

func TestRoundTrip_NeverExtractsValue(t *testing.T) {
	navs := []int64{1, 333_333, 999_999, 1_000_000, 1_000_001, 1_234_567, 1_500_000, 7_777_777}
	deposits := []int64{1_000_000, 1_000_001, 3_333_333, 99_999_999, 100_000_000, 123_456_789_012}

	for _, nav := range navs {
		for _, dep := range deposits {
			shares, err := fpmath.SharesToMint(dep, nav)
			if err != nil {
				continue
			}
			value, err := fpmath.RedemptionValue(shares, nav)
			if err != nil {
				t.Fatalf("nav %d dep %d: unexpected error: %v", nav, dep, err)
			}
			if value > dep {
				t.Errorf("nav %d dep %d: redeemed %d > deposited", nav, dep, value)
			}
		}
	}
}
