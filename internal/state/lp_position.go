// internal/state/lp_position.go
package state

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"

	"github.com/google/uuid"
)

// LPPosition is one investor's holding in one fund.
// Positions are kept after they empty so historical totals survive re-entry.
type LPPosition struct {
	FundID           uuid.UUID
	Investor         uuid.UUID
	Shares           uint64
	DepositNAVE6     int64 // NAV at the most recent deposit, not a weighted average
	TotalDepositedE6 int64
	TotalWithdrawnE6 int64
	DepositedAt      int64
	LastUpdateTs     int64
	Version          int64
}

func NewLPPosition(fundID, investor uuid.UUID, ts int64) *LPPosition {
	return &LPPosition{
		FundID:       fundID,
		Investor:     investor,
		DepositedAt:  ts,
		LastUpdateTs: ts,
	}
}

func (p *LPPosition) AddShares(shares uint64, amountE6, navE6, ts int64) error {
	newShares, err := fpmath.CheckedAddU64(p.Shares, shares)
	if err != nil {
		return err
	}
	newDeposited, err := fpmath.CheckedAddI64(p.TotalDepositedE6, amountE6)
	if err != nil {
		return err
	}

	p.Shares = newShares
	p.TotalDepositedE6 = newDeposited
	p.DepositNAVE6 = navE6
	p.LastUpdateTs = ts
	p.Version++
	return nil
}

func (p *LPPosition) RemoveShares(shares uint64, amountE6, ts int64) error {
	if shares > p.Shares {
		return errs.Newf(errs.CodeInsufficientShares, "held %d, requested %d", p.Shares, shares)
	}
	newWithdrawn, err := fpmath.CheckedAddI64(p.TotalWithdrawnE6, amountE6)
	if err != nil {
		return err
	}

	p.Shares -= shares
	p.TotalWithdrawnE6 = newWithdrawn
	p.LastUpdateTs = ts
	p.Version++
	return nil
}

// CurrentValue = floor(shares * nav / 1e6). An empty position is worth zero.
func (p *LPPosition) CurrentValue(navE6 int64) (int64, error) {
	if p.Shares == 0 {
		return 0, nil
	}
	return fpmath.MulDivU64(p.Shares, navE6, fpmath.ScaleE6, fpmath.RoundDown)
}

// UnrealizedPnL = current value - (deposited - withdrawn)
func (p *LPPosition) UnrealizedPnL(navE6 int64) (int64, error) {
	value, err := p.CurrentValue(navE6)
	if err != nil {
		return 0, err
	}
	costBasis, err := fpmath.CheckedSubI64(p.TotalDepositedE6, p.TotalWithdrawnE6)
	if err != nil {
		return 0, err
	}
	return fpmath.CheckedSubI64(value, costBasis)
}

func (p *LPPosition) IsEmpty() bool { return p.Shares == 0 }

// CanonicalBytes for deterministic hashing
func (p *LPPosition) CanonicalBytes() []byte {
	buf := make([]byte, 0, 96)

	buf = append(buf, p.FundID[:]...)
	buf = append(buf, p.Investor[:]...)
	buf = appendInt64LE(buf, int64(p.Shares))
	buf = appendInt64LE(buf, p.DepositNAVE6)
	buf = appendInt64LE(buf, p.TotalDepositedE6)
	buf = appendInt64LE(buf, p.TotalWithdrawnE6)
	buf = appendInt64LE(buf, p.DepositedAt)
	buf = appendInt64LE(buf, p.LastUpdateTs)

	return buf
}
