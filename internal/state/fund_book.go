// internal/state/fund_book.go
package state

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// FundBook owns every fund and LP position.
type FundBook struct {
	funds     map[uuid.UUID]*Fund
	positions map[PositionKey]*LPPosition
}

type PositionKey struct {
	FundID   uuid.UUID
	Investor uuid.UUID
}

// RedemptionGate adds extra preconditions to redemptions from a fund.
// The insurance buffer is the only implementation.
type RedemptionGate interface {
	RedemptionsFrozen() error
	CheckCooldown(pos *LPPosition, now int64) error
}

type DepositResult struct {
	Shares      uint64
	NAVBefore   int64
	NAVAfter    int64
	NewPosition bool // position created or re-entered from empty
}

type RedeemRequest struct {
	FundID         uuid.UUID
	Investor       uuid.UUID
	Shares         uint64
	VaultBalanceE6 int64
	Timestamp      int64
	Gate           RedemptionGate // nil for ordinary funds
}

type RedeemResult struct {
	ValueE6         int64
	NAVE6           int64
	PositionEmptied bool
}

func NewFundBook() *FundBook {
	return &FundBook{
		funds:     make(map[uuid.UUID]*Fund),
		positions: make(map[PositionKey]*LPPosition),
	}
}

func (fb *FundBook) AddFund(f *Fund) error {
	if _, ok := fb.funds[f.ID]; ok {
		return errs.Newf(errs.CodeFundAlreadyInitialized, "fund %s", f.ID)
	}
	fb.funds[f.ID] = f
	return nil
}

func (fb *FundBook) GetFund(id uuid.UUID) (*Fund, error) {
	f, ok := fb.funds[id]
	if !ok {
		return nil, errs.Newf(errs.CodeFundNotInitialized, "fund %s", id)
	}
	return f, nil
}

// GetPosition returns existing position or nil
func (fb *FundBook) GetPosition(fundID, investor uuid.UUID) *LPPosition {
	return fb.positions[PositionKey{FundID: fundID, Investor: investor}]
}

// QuoteDeposit returns the shares a deposit would mint now, without mutating anything.
func (fb *FundBook) QuoteDeposit(fundID uuid.UUID, amountE6 int64) (uint64, int64, error) {
	f, err := fb.GetFund(fundID)
	if err != nil {
		return 0, 0, err
	}
	if err := validateDeposit(f, amountE6); err != nil {
		return 0, 0, err
	}
	shares, err := fpmath.SharesToMint(amountE6, f.Stats.CurrentNAVE6)
	if err != nil {
		return 0, 0, err
	}
	return shares, f.Stats.CurrentNAVE6, nil
}

func validateDeposit(f *Fund, amountE6 int64) error {
	if amountE6 <= 0 {
		return errs.Newf(errs.CodeInvalidAmount, "deposit %d", amountE6)
	}
	if amountE6 < fpmath.MinDepositAmountE6 {
		return errs.Newf(errs.CodeDepositTooSmall, "deposit %d < %d", amountE6, fpmath.MinDepositAmountE6)
	}
	if !f.CanDeposit() {
		return errs.Newf(errs.CodeFundClosed, "fund %s not accepting deposits", f.ID)
	}
	return nil
}

// Deposit mints shares at the NAV in effect before the deposit and books it
// on both the position and the fund.
func (fb *FundBook) Deposit(fundID, investor uuid.UUID, amountE6, ts int64) (*DepositResult, error) {
	f, err := fb.GetFund(fundID)
	if err != nil {
		return nil, err
	}
	if err := validateDeposit(f, amountE6); err != nil {
		return nil, err
	}

	navBefore := f.Stats.CurrentNAVE6
	shares, err := fpmath.SharesToMint(amountE6, navBefore)
	if err != nil {
		return nil, err
	}

	key := PositionKey{FundID: fundID, Investor: investor}
	existing := fb.positions[key]

	// Stage both sides on copies, commit together.
	var pos LPPosition
	if existing != nil {
		pos = *existing
	} else {
		pos = *NewLPPosition(fundID, investor, ts)
	}
	entering := existing == nil || existing.IsEmpty()
	if err := pos.AddShares(shares, amountE6, navBefore, ts); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	staged := *f
	if entering {
		if staged.Stats.LPCount, err = fpmath.CheckedAddU32(staged.Stats.LPCount, 1); err != nil {
			return nil, fmt.Errorf("deposit: %w", err)
		}
	}
	if err := staged.RecordDeposit(amountE6, shares, ts); err != nil {
		return nil, err
	}

	*f = staged
	if existing != nil {
		*existing = pos
	} else {
		fb.positions[key] = &pos
	}

	return &DepositResult{
		Shares:      shares,
		NAVBefore:   navBefore,
		NAVAfter:    f.Stats.CurrentNAVE6,
		NewPosition: entering,
	}, nil
}

// QuoteRedeem returns the value the shares would redeem for at the current NAV.
func (fb *FundBook) QuoteRedeem(fundID uuid.UUID, shares uint64) (int64, int64, error) {
	f, err := fb.GetFund(fundID)
	if err != nil {
		return 0, 0, err
	}
	if shares == 0 {
		return 0, 0, errs.New(errs.CodeInvalidAmount)
	}
	value, err := fpmath.RedemptionValue(shares, f.Stats.CurrentNAVE6)
	if err != nil {
		return 0, 0, err
	}
	return value, f.Stats.CurrentNAVE6, nil
}

// Redeem burns shares at the current NAV. Checks run in order:
// amount, ADL freeze, pause, position, shares, cooldown, vault balance.
func (fb *FundBook) Redeem(req RedeemRequest) (*RedeemResult, error) {
	if req.Shares == 0 {
		return nil, errs.Newf(errs.CodeInvalidAmount, "redeem 0 shares")
	}

	f, err := fb.GetFund(req.FundID)
	if err != nil {
		return nil, err
	}

	if req.Gate != nil {
		if err := req.Gate.RedemptionsFrozen(); err != nil {
			return nil, err
		}
	}
	if !f.CanWithdraw() {
		return nil, errs.Newf(errs.CodeFundPaused, "fund %s", f.ID)
	}

	existing := fb.positions[PositionKey{FundID: req.FundID, Investor: req.Investor}]
	if existing == nil {
		return nil, errs.Newf(errs.CodeLPPositionNotFound, "fund %s investor %s", req.FundID, req.Investor)
	}
	if req.Shares > existing.Shares {
		return nil, errs.Newf(errs.CodeInsufficientShares, "held %d, requested %d", existing.Shares, req.Shares)
	}

	if req.Gate != nil {
		if err := req.Gate.CheckCooldown(existing, req.Timestamp); err != nil {
			return nil, err
		}
	}

	nav := f.Stats.CurrentNAVE6
	value, err := fpmath.RedemptionValue(req.Shares, nav)
	if err != nil {
		return nil, err
	}
	if req.VaultBalanceE6 < value {
		return nil, errs.Newf(errs.CodeInsufficientBalance, "vault %d < value %d", req.VaultBalanceE6, value)
	}

	pos := *existing
	if err := pos.RemoveShares(req.Shares, value, req.Timestamp); err != nil {
		return nil, err
	}

	staged := *f
	if pos.IsEmpty() {
		if staged.Stats.LPCount, err = fpmath.CheckedSubU32(staged.Stats.LPCount, 1); err != nil {
			return nil, fmt.Errorf("redeem: %w", err)
		}
	}
	if err := staged.RecordWithdrawal(value, req.Shares, req.Timestamp); err != nil {
		return nil, err
	}

	*f = staged
	*existing = pos

	return &RedeemResult{
		ValueE6:         value,
		NAVE6:           nav,
		PositionEmptied: pos.IsEmpty(),
	}, nil
}

// CheckConservation verifies that position shares sum to the fund's total and
// that LPCount matches the number of non-empty positions.
func (fb *FundBook) CheckConservation(fundID uuid.UUID) error {
	f, err := fb.GetFund(fundID)
	if err != nil {
		return err
	}

	var sum uint64
	var holders uint32
	for key, pos := range fb.positions {
		if key.FundID != fundID {
			continue
		}
		if sum, err = fpmath.CheckedAddU64(sum, pos.Shares); err != nil {
			return err
		}
		if !pos.IsEmpty() {
			holders++
		}
	}

	if sum != f.Stats.TotalShares {
		return fmt.Errorf("share conservation violated for fund %s: positions=%d total=%d",
			fundID, sum, f.Stats.TotalShares)
	}
	if holders != f.Stats.LPCount {
		return fmt.Errorf("lp count mismatch for fund %s: holders=%d lp_count=%d",
			fundID, holders, f.Stats.LPCount)
	}
	return nil
}

// AllFunds returns every fund ordered by index.
func (fb *FundBook) AllFunds() []*Fund {
	result := make([]*Fund, 0, len(fb.funds))
	for _, f := range fb.funds {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Index != result[j].Index {
			return result[i].Index < result[j].Index
		}
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) < 0
	})
	return result
}

// PositionsForFund returns the fund's positions ordered by investor.
func (fb *FundBook) PositionsForFund(fundID uuid.UUID) []*LPPosition {
	result := make([]*LPPosition, 0)
	for key, pos := range fb.positions {
		if key.FundID == fundID {
			result = append(result, pos)
		}
	}
	sortPositions(result)
	return result
}

// PositionsForInvestor returns all positions of an investor ordered by fund.
func (fb *FundBook) PositionsForInvestor(investor uuid.UUID) []*LPPosition {
	result := make([]*LPPosition, 0)
	for key, pos := range fb.positions {
		if key.Investor == investor {
			result = append(result, pos)
		}
	}
	sortPositions(result)
	return result
}

// AllPositions returns every position in deterministic order.
func (fb *FundBook) AllPositions() []*LPPosition {
	result := make([]*LPPosition, 0, len(fb.positions))
	for _, pos := range fb.positions {
		result = append(result, pos)
	}
	sortPositions(result)
	return result
}

func sortPositions(ps []*LPPosition) {
	sort.Slice(ps, func(i, j int) bool {
		if c := bytes.Compare(ps[i].FundID[:], ps[j].FundID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(ps[i].Investor[:], ps[j].Investor[:]) < 0
	})
}

// SetFund directly sets a fund (used for snapshot restore)
func (fb *FundBook) SetFund(f *Fund) {
	fb.funds[f.ID] = f
}

// SetPosition directly sets a position (used for snapshot restore)
func (fb *FundBook) SetPosition(pos *LPPosition) {
	fb.positions[PositionKey{FundID: pos.FundID, Investor: pos.Investor}] = pos
}

func (fb *FundBook) FundCount() int { return len(fb.funds) }
