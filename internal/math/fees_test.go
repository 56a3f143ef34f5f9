package math_test

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"
	"errors"
	"math"
	"testing"
)

// ============================================================================
// Test: Management fee
// ============================================================================

func TestManagementFee_OneYear(t *testing.T) {
	fee, err := fpmath.ManagementFee(100_000_000_000, 200, fpmath.SecondsPerYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 2_000_000_000 {
		t.Errorf("got %d, want 2000000000", fee)
	}
}

func TestManagementFee_OneDay(t *testing.T) {
	fee, err := fpmath.ManagementFee(100_000_000_000, 200, 86_400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 100_000e6 * 200 * 86400 / (10_000 * 31_536_000) = 5_479_452.05...
	if fee != 5_479_452 {
		t.Errorf("got %d, want 5479452", fee)
	}
}

func TestManagementFee_ZeroInputs(t *testing.T) {
	tests := []struct {
		aum     int64
		bps     uint32
		elapsed int64
	}{
		{0, 200, 100},
		{-1, 200, 100},
		{1_000_000, 0, 100},
		{1_000_000, 200, 0},
		{1_000_000, 200, -5},
	}
	for _, tt := range tests {
		fee, err := fpmath.ManagementFee(tt.aum, tt.bps, tt.elapsed)
		if err != nil || fee != 0 {
			t.Errorf("(%d, %d, %d): got %d (%v), want 0", tt.aum, tt.bps, tt.elapsed, fee, err)
		}
	}
}

func TestManagementFee_LargeAUMDoesNotOverflow(t *testing.T) {
	// aum * bps * elapsed exceeds int64 by several orders of magnitude.
	fee, err := fpmath.ManagementFee(1_000_000_000_000_000, 1_000, fpmath.SecondsPerYear*10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 1_000_000_000_000_000 {
		t.Errorf("got %d, want 1e15", fee)
	}
}

// ============================================================================
// Test: Performance fee
// ============================================================================

func TestPerformanceFee_CurrentNAVDenominator(t *testing.T) {
	fee, err := fpmath.PerformanceFee(1_200_000, 1_000_000, 100_000_000_000, 2_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 3_333_333_333 {
		t.Errorf("got %d, want 3333333333", fee)
	}
}

func TestPerformanceFee_Zero(t *testing.T) {
	tests := []struct {
		name            string
		nav, hwm, value int64
		bps             uint32
	}{
		{"below hwm", 900_000, 1_000_000, 100_000_000_000, 2_000},
		{"at hwm", 1_000_000, 1_000_000, 100_000_000_000, 2_000},
		{"zero bps", 1_200_000, 1_000_000, 100_000_000_000, 0},
		{"no value", 1_200_000, 1_000_000, 0, 2_000},
	}
	for _, tt := range tests {
		fee, err := fpmath.PerformanceFee(tt.nav, tt.hwm, tt.value, tt.bps)
		if err != nil || fee != 0 {
			t.Errorf("%s: got %d (%v), want 0", tt.name, fee, err)
		}
	}
}

// ============================================================================
// Test: Fee bounds and gate
// ============================================================================

func TestValidateFeeBps(t *testing.T) {
	if err := fpmath.ValidateFeeBps(200, 2_000); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if err := fpmath.ValidateFeeBps(1_000, 5_000); err != nil {
		t.Errorf("config at caps rejected: %v", err)
	}
	if err := fpmath.ValidateFeeBps(1_500, 2_000); !errors.Is(err, errs.ErrManagementFeeTooHigh) {
		t.Errorf("got %v, want ManagementFeeTooHigh", err)
	}
	if err := fpmath.ValidateFeeBps(200, 6_000); !errors.Is(err, errs.ErrPerformanceFeeTooHigh) {
		t.Errorf("got %v, want PerformanceFeeTooHigh", err)
	}
}

func TestCanCollectFees(t *testing.T) {
	if fpmath.CanCollectFees(1_000, 86_400, 87_399) {
		t.Error("collection allowed one second early")
	}
	if !fpmath.CanCollectFees(1_000, 86_400, 87_400) {
		t.Error("collection refused at exactly the interval")
	}
	if !fpmath.CanCollectFees(1_000, 0, 1_000) {
		t.Error("zero interval refused")
	}
}

func TestCanCollectFees_NoWrap(t *testing.T) {
	tests := []struct {
		name              string
		last, interval, n int64
	}{
		{"max interval", 1_700_000_000, math.MaxInt64, 1_700_000_000 + fpmath.SecondsPerYear},
		{"max interval at max now", 1_700_000_000, math.MaxInt64, math.MaxInt64},
		{"elapsed overflows", -1, 10, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fpmath.CanCollectFees(tt.last, tt.interval, tt.n) {
				t.Errorf("CanCollectFees(%d, %d, %d) = true", tt.last, tt.interval, tt.n)
			}
		})
	}
}
