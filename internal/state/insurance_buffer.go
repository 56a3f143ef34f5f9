// internal/state/insurance_buffer.go
package state

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"
	"fmt"

	"github.com/google/uuid"
)

// ADLTriggerReason explains why auto-deleveraging should start.
// Discriminants are stable: they go out on the event stream.
type ADLTriggerReason int32

const (
	ADLTriggerNone                ADLTriggerReason = 0
	ADLTriggerBankruptcy          ADLTriggerReason = 1
	ADLTriggerInsufficientBalance ADLTriggerReason = 2
	ADLTriggerRapidDecline        ADLTriggerReason = 3
)

func (r ADLTriggerReason) String() string {
	switch r {
	case ADLTriggerNone:
		return "None"
	case ADLTriggerBankruptcy:
		return "Bankruptcy"
	case ADLTriggerInsufficientBalance:
		return "InsufficientBalance"
	case ADLTriggerRapidDecline:
		return "RapidDecline"
	default:
		return "Unknown"
	}
}

// ShouldADL reports whether the reason calls for deleveraging.
func (r ADLTriggerReason) ShouldADL() bool { return r != ADLTriggerNone }

// RapidDeclineFloorBps is the share of the last snapshot below which the balance counts as a rapid decline.
const RapidDeclineFloorBps = 7_000

// InsuranceBuffer is the singleton risk pool. Its balance lives in the vault of
// the dedicated insurance fund identified by FundID.
type InsuranceBuffer struct {
	FundID uuid.UUID

	TotalLiquidationIncomeE6 int64
	TotalADLProfitE6         int64
	TotalShortfallPayoutE6   int64 // never decreases

	ADLTriggerThresholdE6 int64
	ADLTriggerCount       uint64
	IsADLInProgress       bool

	Balance1hAgoE6 int64
	LastSnapshotTs int64

	WithdrawalDelaySecs int64
	AuthorizedCaller    uuid.UUID

	CreatedAt    int64
	LastUpdateTs int64
	Version      int64
}

func validateInsuranceParams(thresholdE6, withdrawalDelaySecs int64) error {
	if thresholdE6 < 0 {
		return errs.Newf(errs.CodeInvalidInsuranceConfig, "negative adl threshold %d", thresholdE6)
	}
	if withdrawalDelaySecs < 0 {
		return errs.Newf(errs.CodeInvalidInsuranceConfig, "negative withdrawal delay %d", withdrawalDelaySecs)
	}
	return nil
}

func NewInsuranceBuffer(fundID, authorizedCaller uuid.UUID, thresholdE6, withdrawalDelaySecs, ts int64) (*InsuranceBuffer, error) {
	if err := validateInsuranceParams(thresholdE6, withdrawalDelaySecs); err != nil {
		return nil, err
	}
	return &InsuranceBuffer{
		FundID:                fundID,
		ADLTriggerThresholdE6: thresholdE6,
		WithdrawalDelaySecs:   withdrawalDelaySecs,
		AuthorizedCaller:      authorizedCaller,
		CreatedAt:             ts,
		LastUpdateTs:          ts,
	}, nil
}

func (b *InsuranceBuffer) IsAuthorizedCaller(id uuid.UUID) bool { return b.AuthorizedCaller == id }

// ShouldTriggerADL evaluates trigger conditions in priority order; first match wins.
func (b *InsuranceBuffer) ShouldTriggerADL(currentBalanceE6, shortfallE6 int64) ADLTriggerReason {
	if shortfallE6 > 0 && currentBalanceE6 < shortfallE6 {
		return ADLTriggerBankruptcy
	}

	if currentBalanceE6 < b.ADLTriggerThresholdE6 {
		return ADLTriggerInsufficientBalance
	}

	// Only with a prior snapshot.
	if b.Balance1hAgoE6 > 0 {
		floor, err := fpmath.MulDiv(b.Balance1hAgoE6, RapidDeclineFloorBps, fpmath.BPSDenominator, fpmath.RoundDown)
		if err == nil && currentBalanceE6 < floor {
			return ADLTriggerRapidDecline
		}
	}

	return ADLTriggerNone
}

// ComputeCoverage splits a shortfall into the covered part and the remainder.
// A negative balance covers nothing.
func ComputeCoverage(shortfallE6, balanceE6 int64) (covered, remaining int64) {
	if balanceE6 < 0 {
		balanceE6 = 0
	}
	if shortfallE6 <= balanceE6 {
		return shortfallE6, 0
	}
	return balanceE6, shortfallE6 - balanceE6
}

// CoverShortfall books the covered part of a shortfall as payout.
// remaining > 0 signals the caller to deleverage trader positions.
func (b *InsuranceBuffer) CoverShortfall(shortfallE6, currentBalanceE6, ts int64) (covered, remaining int64, err error) {
	if shortfallE6 < 0 {
		return 0, 0, errs.Newf(errs.CodeInvalidAmount, "shortfall %d", shortfallE6)
	}

	covered, remaining = ComputeCoverage(shortfallE6, currentBalanceE6)

	payout, err := fpmath.CheckedAddI64(b.TotalShortfallPayoutE6, covered)
	if err != nil {
		return 0, 0, fmt.Errorf("cover shortfall: %w", err)
	}

	b.TotalShortfallPayoutE6 = payout
	b.touch(ts)
	return covered, remaining, nil
}

// UpdateHourlySnapshot overwrites the single rolling snapshot slot.
func (b *InsuranceBuffer) UpdateHourlySnapshot(balanceE6, ts int64) error {
	if ts-b.LastSnapshotTs < fpmath.SnapshotWindowSecs {
		return errs.Newf(errs.CodeSnapshotTooRecent, "last=%d now=%d", b.LastSnapshotTs, ts)
	}
	b.Balance1hAgoE6 = balanceE6
	b.LastSnapshotTs = ts
	b.touch(ts)
	return nil
}

// SetADLInProgress toggles the redemption freeze. Each false->true edge counts one episode.
func (b *InsuranceBuffer) SetADLInProgress(inProgress bool, ts int64) {
	if inProgress && !b.IsADLInProgress {
		b.ADLTriggerCount++
	}
	b.IsADLInProgress = inProgress
	b.touch(ts)
}

func (b *InsuranceBuffer) AddLiquidationIncome(amountE6, ts int64) error {
	if amountE6 <= 0 {
		return errs.Newf(errs.CodeInvalidAmount, "liquidation income %d", amountE6)
	}
	total, err := fpmath.CheckedAddI64(b.TotalLiquidationIncomeE6, amountE6)
	if err != nil {
		return fmt.Errorf("add liquidation income: %w", err)
	}
	b.TotalLiquidationIncomeE6 = total
	b.touch(ts)
	return nil
}

func (b *InsuranceBuffer) AddADLProfit(amountE6, ts int64) error {
	if amountE6 <= 0 {
		return errs.Newf(errs.CodeInvalidAmount, "adl profit %d", amountE6)
	}
	total, err := fpmath.CheckedAddI64(b.TotalADLProfitE6, amountE6)
	if err != nil {
		return fmt.Errorf("add adl profit: %w", err)
	}
	b.TotalADLProfitE6 = total
	b.touch(ts)
	return nil
}

// AddTradingFee books a trading fee share as liquidation income.
func (b *InsuranceBuffer) AddTradingFee(feeE6, ts int64) error {
	if feeE6 <= 0 {
		return errs.Newf(errs.CodeInvalidAmount, "trading fee %d", feeE6)
	}
	return b.AddLiquidationIncome(feeE6, ts)
}

func (b *InsuranceBuffer) TotalIncome() (int64, error) {
	return fpmath.CheckedAddI64(b.TotalLiquidationIncomeE6, b.TotalADLProfitE6)
}

// NetIncome = income - shortfall payouts
func (b *InsuranceBuffer) NetIncome() (int64, error) {
	income, err := b.TotalIncome()
	if err != nil {
		return 0, err
	}
	return fpmath.CheckedSubI64(income, b.TotalShortfallPayoutE6)
}

func (b *InsuranceBuffer) UpdateConfig(thresholdE6, withdrawalDelaySecs, ts int64) error {
	if err := validateInsuranceParams(thresholdE6, withdrawalDelaySecs); err != nil {
		return err
	}
	b.ADLTriggerThresholdE6 = thresholdE6
	b.WithdrawalDelaySecs = withdrawalDelaySecs
	b.touch(ts)
	return nil
}

// RedemptionsFrozen fails while an ADL episode is in progress.
func (b *InsuranceBuffer) RedemptionsFrozen() error {
	if b.IsADLInProgress {
		return errs.ErrADLInProgress
	}
	return nil
}

// CheckCooldown measures the delay from the position's last update of any kind.
func (b *InsuranceBuffer) CheckCooldown(pos *LPPosition, now int64) error {
	if b.WithdrawalDelaySecs <= 0 {
		return nil
	}
	if elapsed := now - pos.LastUpdateTs; elapsed < b.WithdrawalDelaySecs {
		return errs.Newf(errs.CodeWithdrawalDelayNotMet, "elapsed %ds of %ds", elapsed, b.WithdrawalDelaySecs)
	}
	return nil
}

// CheckRedemption applies the ADL freeze first, then the cooldown.
func (b *InsuranceBuffer) CheckRedemption(pos *LPPosition, now int64) error {
	if err := b.RedemptionsFrozen(); err != nil {
		return err
	}
	return b.CheckCooldown(pos, now)
}

func (b *InsuranceBuffer) touch(ts int64) {
	b.LastUpdateTs = ts
	b.Version++
}

// CanonicalBytes for deterministic hashing
func (b *InsuranceBuffer) CanonicalBytes() []byte {
	buf := make([]byte, 0, 128)

	buf = append(buf, b.FundID[:]...)
	buf = appendInt64LE(buf, b.TotalLiquidationIncomeE6)
	buf = appendInt64LE(buf, b.TotalADLProfitE6)
	buf = appendInt64LE(buf, b.TotalShortfallPayoutE6)
	buf = appendInt64LE(buf, b.ADLTriggerThresholdE6)
	buf = appendInt64LE(buf, int64(b.ADLTriggerCount))
	buf = appendBool(buf, b.IsADLInProgress)
	buf = appendInt64LE(buf, b.Balance1hAgoE6)
	buf = appendInt64LE(buf, b.LastSnapshotTs)
	buf = appendInt64LE(buf, b.WithdrawalDelaySecs)
	buf = append(buf, b.AuthorizedCaller[:]...)

	return buf
}
