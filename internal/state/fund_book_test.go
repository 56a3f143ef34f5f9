package state_test

import (
	"NavLedger/internal/errs"
	"NavLedger/internal/state"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func newBookWithFund(t *testing.T) (*state.FundBook, *state.Fund) {
	t.Helper()
	fb := state.NewFundBook()
	f := newTestFund(t, 0, 0)
	if err := fb.AddFund(f); err != nil {
		t.Fatalf("add fund: %v", err)
	}
	return fb, f
}

// ============================================================================
// Test: Deposit
// ============================================================================

func TestDeposit_EmptyFund(t *testing.T) {
	fb, f := newBookWithFund(t)
	investor := uuid.New()

	res, err := fb.Deposit(f.ID, investor, 100_000_000, t0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Shares != 100_000_000 {
		t.Errorf("shares: got %d, want 100000000", res.Shares)
	}
	if res.NAVBefore != 1_000_000 || res.NAVAfter != 1_000_000 {
		t.Errorf("nav changed: %d -> %d", res.NAVBefore, res.NAVAfter)
	}
	if !res.NewPosition || f.Stats.LPCount != 1 {
		t.Errorf("expected new position, lp_count=%d", f.Stats.LPCount)
	}

	pos := fb.GetPosition(f.ID, investor)
	if pos == nil || pos.Shares != 100_000_000 || pos.DepositNAVE6 != 1_000_000 {
		t.Fatalf("unexpected position: %+v", pos)
	}
}

func TestDeposit_AtNAVOneAndAHalf(t *testing.T) {
	fb, f := newBookWithFund(t)
	_, _ = fb.Deposit(f.ID, uuid.New(), 100_000_000, t0)
	if err := f.RecordPnL(50_000_000, t0+1); err != nil {
		t.Fatalf("pnl: %v", err)
	}

	investor := uuid.New()
	res, err := fb.Deposit(f.ID, investor, 100_000_000, t0+2)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Shares != 66_666_666 {
		t.Errorf("shares: got %d, want 66666666", res.Shares)
	}
	if res.NAVBefore != 1_500_000 {
		t.Errorf("nav before: got %d", res.NAVBefore)
	}
	if f.Stats.LPCount != 2 {
		t.Errorf("lp_count: got %d, want 2", f.Stats.LPCount)
	}
	if err := fb.CheckConservation(f.ID); err != nil {
		t.Error(err)
	}
}

func TestDeposit_Validation(t *testing.T) {
	fb, f := newBookWithFund(t)

	tests := []struct {
		name    string
		amount  int64
		setup   func()
		wantErr error
	}{
		{"zero", 0, nil, errs.ErrInvalidAmount},
		{"below minimum", 999_999, nil, errs.ErrDepositTooSmall},
		{"not open", 1_000_000, func() { f.SetOpen(false, t0) }, errs.ErrFundClosed},
		{"paused", 1_000_000, func() { f.SetOpen(true, t0); f.SetPaused(true, t0) }, errs.ErrFundClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, err := fb.Deposit(f.ID, uuid.New(), tt.amount, t0)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if f.Stats.TotalShares != 0 || f.Stats.LPCount != 0 {
		t.Error("rejected deposits mutated the fund")
	}
	if _, err := fb.Deposit(uuid.New(), uuid.New(), 1_000_000, t0); !errors.Is(err, errs.ErrFundNotInitialized) {
		t.Errorf("unknown fund: got %v", err)
	}
}

func TestDeposit_ReentryCountsLP(t *testing.T) {
	fb, f := newBookWithFund(t)
	investor := uuid.New()

	res, _ := fb.Deposit(f.ID, investor, 5_000_000, t0)
	rr, err := fb.Redeem(state.RedeemRequest{
		FundID: f.ID, Investor: investor, Shares: res.Shares, VaultBalanceE6: 5_000_000, Timestamp: t0 + 1,
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if !rr.PositionEmptied || f.Stats.LPCount != 0 {
		t.Fatalf("expected emptied position, lp_count=%d", f.Stats.LPCount)
	}

	pos := fb.GetPosition(f.ID, investor)
	if pos == nil {
		t.Fatal("emptied position should be retained")
	}

	res, _ = fb.Deposit(f.ID, investor, 2_000_000, t0+2)
	if !res.NewPosition || f.Stats.LPCount != 1 {
		t.Errorf("re-entry: new=%v lp_count=%d", res.NewPosition, f.Stats.LPCount)
	}
	if pos.TotalDepositedE6 != 7_000_000 || pos.TotalWithdrawnE6 != 5_000_000 {
		t.Errorf("history lost: deposited=%d withdrawn=%d", pos.TotalDepositedE6, pos.TotalWithdrawnE6)
	}
}

// ============================================================================
// Test: Redeem
// ============================================================================

func TestRedeem_Order(t *testing.T) {
	fb, f := newBookWithFund(t)
	investor := uuid.New()
	_, _ = fb.Deposit(f.ID, investor, 10_000_000, t0)

	req := func(shares uint64, vault int64) state.RedeemRequest {
		return state.RedeemRequest{FundID: f.ID, Investor: investor, Shares: shares, VaultBalanceE6: vault, Timestamp: t0 + 1}
	}

	if _, err := fb.Redeem(req(0, 10_000_000)); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("zero shares: got %v", err)
	}
	if _, err := fb.Redeem(req(10_000_001, 10_000_000)); !errors.Is(err, errs.ErrInsufficientShares) {
		t.Errorf("too many shares: got %v", err)
	}
	if _, err := fb.Redeem(req(10_000_000, 9_999_999)); !errors.Is(err, errs.ErrInsufficientBalance) {
		t.Errorf("short vault: got %v", err)
	}
	other := req(1, 10_000_000)
	other.Investor = uuid.New()
	if _, err := fb.Redeem(other); !errors.Is(err, errs.ErrLPPositionNotFound) {
		t.Errorf("unknown investor: got %v", err)
	}

	f.SetPaused(true, t0)
	if _, err := fb.Redeem(req(0, 10_000_000)); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Errorf("amount should be checked before pause: got %v", err)
	}
	if _, err := fb.Redeem(req(1, 10_000_000)); !errors.Is(err, errs.ErrFundPaused) {
		t.Errorf("paused: got %v", err)
	}

	if f.Stats.TotalShares != 10_000_000 {
		t.Error("rejected redemptions mutated the fund")
	}
}

func TestRedeem_Partial(t *testing.T) {
	fb, f := newBookWithFund(t)
	investor := uuid.New()
	_, _ = fb.Deposit(f.ID, investor, 100_000_000, t0)
	_ = f.RecordPnL(50_000_000, t0+1)

	res, err := fb.Redeem(state.RedeemRequest{
		FundID: f.ID, Investor: investor, Shares: 40_000_000, VaultBalanceE6: 150_000_000, Timestamp: t0 + 2,
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.ValueE6 != 60_000_000 || res.NAVE6 != 1_500_000 || res.PositionEmptied {
		t.Errorf("unexpected result: %+v", res)
	}
	if f.Stats.CurrentNAVE6 != 1_500_000 {
		t.Errorf("nav moved on redemption: %d", f.Stats.CurrentNAVE6)
	}
	if f.Stats.LPCount != 1 {
		t.Errorf("lp_count: got %d", f.Stats.LPCount)
	}
}

type stubGate struct {
	frozen   bool
	cooldown bool
}

func (g stubGate) RedemptionsFrozen() error {
	if g.frozen {
		return errs.ErrADLInProgress
	}
	return nil
}

func (g stubGate) CheckCooldown(*state.LPPosition, int64) error {
	if g.cooldown {
		return errs.ErrWithdrawalDelayNotMet
	}
	return nil
}

func TestRedeem_GateOrder(t *testing.T) {
	fb, f := newBookWithFund(t)
	investor := uuid.New()
	_, _ = fb.Deposit(f.ID, investor, 10_000_000, t0)
	f.SetPaused(true, t0)

	req := state.RedeemRequest{
		FundID: f.ID, Investor: investor, Shares: 1, VaultBalanceE6: 10_000_000, Timestamp: t0,
		Gate: stubGate{frozen: true, cooldown: true},
	}
	if _, err := fb.Redeem(req); !errors.Is(err, errs.ErrADLInProgress) {
		t.Errorf("adl freeze should win over pause: got %v", err)
	}

	f.SetPaused(false, t0)
	req.Gate = stubGate{cooldown: true}
	req.Shares = 10_000_001
	if _, err := fb.Redeem(req); !errors.Is(err, errs.ErrInsufficientShares) {
		t.Errorf("shares checked before cooldown: got %v", err)
	}
	req.Shares = 1
	if _, err := fb.Redeem(req); !errors.Is(err, errs.ErrWithdrawalDelayNotMet) {
		t.Errorf("cooldown: got %v", err)
	}
}

// ============================================================================
// Test: Properties
// ============================================================================

func TestConservation_RandomSequence(t *testing.T) {
	fb, f := newBookWithFund(t)
	rng := rand.New(rand.NewSource(42))
	investors := make([]uuid.UUID, 5)
	for i := range investors {
		investors[i] = uuid.New()
	}

	ts := t0
	for i := 0; i < 500; i++ {
		ts++
		inv := investors[rng.Intn(len(investors))]
		switch rng.Intn(3) {
		case 0:
			_, _ = fb.Deposit(f.ID, inv, int64(1_000_000+rng.Intn(50_000_000)), ts)
		case 1:
			pos := fb.GetPosition(f.ID, inv)
			if pos == nil || pos.Shares == 0 {
				continue
			}
			shares := uint64(rng.Int63n(int64(pos.Shares))) + 1
			tv, _ := f.TotalValue()
			_, _ = fb.Redeem(state.RedeemRequest{
				FundID: f.ID, Investor: inv, Shares: shares, VaultBalanceE6: tv, Timestamp: ts,
			})
		case 2:
			_ = f.RecordPnL(int64(rng.Intn(2_000_000))-1_000_000, ts)
		}

		if err := fb.CheckConservation(f.ID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestRoundTrip_NoValueExtraction(t *testing.T) {
	fb, f := newBookWithFund(t)
	_, _ = fb.Deposit(f.ID, uuid.New(), 100_000_000, t0)
	_ = f.RecordPnL(23_456_789, t0)

	investor := uuid.New()
	const amount = 7_777_777
	res, err := fb.Deposit(f.ID, investor, amount, t0+1)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	tv, _ := f.TotalValue()
	rr, err := fb.Redeem(state.RedeemRequest{
		FundID: f.ID, Investor: investor, Shares: res.Shares, VaultBalanceE6: tv, Timestamp: t0 + 2,
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if rr.ValueE6 > amount {
		t.Errorf("redeemed %d > deposited %d", rr.ValueE6, amount)
	}
}

func TestQuotes(t *testing.T) {
	fb, f := newBookWithFund(t)
	_, _ = fb.Deposit(f.ID, uuid.New(), 100_000_000, t0)
	_ = f.RecordPnL(50_000_000, t0)

	shares, nav, err := fb.QuoteDeposit(f.ID, 100_000_000)
	if err != nil || shares != 66_666_666 || nav != 1_500_000 {
		t.Errorf("quote deposit: got (%d, %d, %v)", shares, nav, err)
	}
	value, _, err := fb.QuoteRedeem(f.ID, 66_666_666)
	if err != nil || value != 99_999_999 {
		t.Errorf("quote redeem: got (%d, %v)", value, err)
	}
	if f.Stats.TotalShares != 100_000_000 {
		t.Error("quotes mutated the fund")
	}
}
