package errs_test

import (
	"NavLedger/internal/errs"
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := errs.Newf(errs.CodeInsufficientShares, "held=%d requested=%d", 10, 20)
	if !errors.Is(err, errs.ErrInsufficientShares) {
		t.Fatal("coded error should match its sentinel")
	}
	if errors.Is(err, errs.ErrInsufficientBalance) {
		t.Error("coded error should not match a different sentinel")
	}
}

func TestError_IsThroughWrap(t *testing.T) {
	err := fmt.Errorf("redeem rejected: %w", errs.New(errs.CodeADLInProgress))
	if !errors.Is(err, errs.ErrADLInProgress) {
		t.Fatal("wrapped coded error should match its sentinel")
	}

	code, ok := errs.CodeOf(err)
	if !ok || code != errs.CodeADLInProgress {
		t.Errorf("got code %v (ok=%v), want %v", code, ok, errs.CodeADLInProgress)
	}
}

func TestError_Message(t *testing.T) {
	err := errs.Newf(errs.CodeFundPaused, "fund %s", "alpha")
	if got, want := err.Error(), "fund is paused: fund alpha"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := errs.ErrOverflow.Error(), "arithmetic overflow"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want errs.Category
	}{
		{errs.ErrInvalidAmount, errs.CategoryValidation},
		{errs.ErrOverflow, errs.CategoryArithmetic},
		{errs.ErrNAVCalculation, errs.CategoryArithmetic},
		{errs.ErrSnapshotTooRecent, errs.CategoryState},
		{errs.ErrNotFundManager, errs.CategoryAuthorization},
		{errs.ErrLPPositionNotFound, errs.CategoryNotFound},
		{errs.ErrStaleTimestamp, errs.CategoryValidation},
		{errs.ErrFutureTimestamp, errs.CategoryValidation},
	}
	for _, tt := range tests {
		got, ok := errs.CategoryOf(tt.err)
		if !ok {
			t.Errorf("%v: expected a coded error", tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v: got %s, want %s", tt.err, got, tt.want)
		}
	}

	if _, ok := errs.CategoryOf(errors.New("plain")); ok {
		t.Error("plain error should not carry a category")
	}
}

func TestCode_String(t *testing.T) {
	if got := errs.CodeWithdrawalDelayNotMet.String(); got != "WITHDRAWAL_DELAY_NOT_MET" {
		t.Errorf("got %q", got)
	}
	if got := errs.Code(999).String(); got != "UNKNOWN_999" {
		t.Errorf("got %q", got)
	}
}
