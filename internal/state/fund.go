// internal/state/fund.go
package state

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"
	"fmt"

	"github.com/google/uuid"
)

// FundKind distinguishes ordinary managed funds from the insurance vault.
type FundKind int32

const (
	FundKindStandard FundKind = iota
	FundKindInsurance
)

func (k FundKind) String() string {
	switch k {
	case FundKindStandard:
		return "standard"
	case FundKindInsurance:
		return "insurance"
	default:
		return "unknown"
	}
}

// InsuranceFundName is the display name of the insurance vault fund.
const InsuranceFundName = "1024 Insurance Fund"

// FundStats is the accounting state of a fund. All monetary fields are e6.
//
// Invariant: CurrentNAVE6 == NAV(TotalValue(), TotalShares) after every committed mutation.
type FundStats struct {
	TotalDepositsE6       int64
	TotalWithdrawalsE6    int64
	CurrentNAVE6          int64
	HighWaterMarkE6       int64
	TotalManagementFeeE6  int64
	TotalPerformanceFeeE6 int64
	TotalShares           uint64
	LastFeeCollectionTs   int64
	TotalRealizedPnLE6    int64
	LPCount               uint32
}

func NewFundStats(createdAt int64) FundStats {
	return FundStats{
		CurrentNAVE6:        fpmath.InitialNAVE6,
		HighWaterMarkE6:     fpmath.InitialNAVE6,
		LastFeeCollectionTs: createdAt,
	}
}

// TotalValue = deposits - withdrawals + realized PnL - management fees - performance fees.
func (s *FundStats) TotalValue() (int64, error) {
	v, err := fpmath.CheckedSubI64(s.TotalDepositsE6, s.TotalWithdrawalsE6)
	if err != nil {
		return 0, err
	}
	if v, err = fpmath.CheckedAddI64(v, s.TotalRealizedPnLE6); err != nil {
		return 0, err
	}
	if v, err = fpmath.CheckedSubI64(v, s.TotalManagementFeeE6); err != nil {
		return 0, err
	}
	return fpmath.CheckedSubI64(v, s.TotalPerformanceFeeE6)
}

func (s *FundStats) refreshNAV() error {
	tv, err := s.TotalValue()
	if err != nil {
		return err
	}
	nav, err := fpmath.NAV(tv, s.TotalShares)
	if err != nil {
		return err
	}
	s.CurrentNAVE6 = nav
	return nil
}

func (s *FundStats) raiseHWM() {
	if s.CurrentNAVE6 > s.HighWaterMarkE6 {
		s.HighWaterMarkE6 = s.CurrentNAVE6
	}
}

// Fund is the aggregate per-fund ledger.
// Every mutator works on a copy and commits only on success.
type Fund struct {
	ID        uuid.UUID
	Manager   uuid.UUID
	Name      string
	Index     uint64
	Kind      FundKind
	FeeConfig FeeConfig
	Stats     FundStats

	IsOpen   bool // deposits allowed
	IsPaused bool // gates deposits and withdrawals
	IsClosed bool // retired, read-only

	CreatedAt    int64
	LastUpdateTs int64
	Version      int64
}

// ValidateFundName rejects empty names and names over MaxFundNameLen bytes.
func ValidateFundName(name string) error {
	if name == "" || len(name) > fpmath.MaxFundNameLen {
		return errs.Newf(errs.CodeFundNameTooLong, "%d bytes", len(name))
	}
	return nil
}

// NewFund validates inputs and returns an open, unpaused fund at NAV 1.0.
func NewFund(id, manager uuid.UUID, name string, index uint64, kind FundKind, fees FeeConfig, createdAt int64) (*Fund, error) {
	if err := ValidateFundName(name); err != nil {
		return nil, err
	}
	if err := fees.Validate(); err != nil {
		return nil, err
	}

	return &Fund{
		ID:           id,
		Manager:      manager,
		Name:         name,
		Index:        index,
		Kind:         kind,
		FeeConfig:    fees,
		Stats:        NewFundStats(createdAt),
		IsOpen:       true,
		CreatedAt:    createdAt,
		LastUpdateTs: createdAt,
	}, nil
}

func (f *Fund) IsManager(id uuid.UUID) bool { return f.Manager == id }

func (f *Fund) IsInsurance() bool { return f.Kind == FundKindInsurance }

func (f *Fund) CanDeposit() bool { return f.IsOpen && !f.IsPaused && !f.IsClosed }

func (f *Fund) CanWithdraw() bool { return !f.IsPaused }

func (f *Fund) TotalValue() (int64, error) { return f.Stats.TotalValue() }

func (f *Fund) commit(next FundStats, ts int64) {
	f.Stats = next
	f.LastUpdateTs = ts
	f.Version++
}

// RecordDeposit books a deposit whose shares were quoted at the pre-deposit NAV.
// Shares are not recomputed here so the minted amount matches the quote.
func (f *Fund) RecordDeposit(amountE6 int64, shares uint64, ts int64) error {
	next := f.Stats

	var err error
	if next.TotalDepositsE6, err = fpmath.CheckedAddI64(next.TotalDepositsE6, amountE6); err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}
	if next.TotalShares, err = fpmath.CheckedAddU64(next.TotalShares, shares); err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}
	if err := next.refreshNAV(); err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}

	f.commit(next, ts)
	return nil
}

// RecordWithdrawal books a redemption paid out at amountE6 for shares burned.
func (f *Fund) RecordWithdrawal(amountE6 int64, shares uint64, ts int64) error {
	next := f.Stats

	var err error
	if next.TotalWithdrawalsE6, err = fpmath.CheckedAddI64(next.TotalWithdrawalsE6, amountE6); err != nil {
		return fmt.Errorf("record withdrawal: %w", err)
	}
	if next.TotalShares, err = fpmath.CheckedSubU64(next.TotalShares, shares); err != nil {
		return fmt.Errorf("record withdrawal: %w", err)
	}
	if err := next.refreshNAV(); err != nil {
		return fmt.Errorf("record withdrawal: %w", err)
	}

	f.commit(next, ts)
	return nil
}

// RecordPnL applies a signed realized PnL delta and raises the HWM if NAV improved.
// Trading results, insurance income and shortfall payouts all flow through here.
func (f *Fund) RecordPnL(deltaE6 int64, ts int64) error {
	next := f.Stats

	var err error
	if next.TotalRealizedPnLE6, err = fpmath.CheckedAddI64(next.TotalRealizedPnLE6, deltaE6); err != nil {
		return fmt.Errorf("record pnl: %w", err)
	}
	if err := next.refreshNAV(); err != nil {
		return fmt.Errorf("record pnl: %w", err)
	}
	next.raiseHWM()

	f.commit(next, ts)
	return nil
}

// RefreshNAV recomputes NAV from the current totals without changing them.
func (f *Fund) RefreshNAV(ts int64) error {
	next := f.Stats
	if err := next.refreshNAV(); err != nil {
		return err
	}
	f.commit(next, ts)
	return nil
}

// CalculateFees returns the management and performance fees accrued up to now.
// Both are zero if no time has elapsed since the last collection.
func (f *Fund) CalculateFees(now int64) (mgmtE6, perfE6 int64, err error) {
	elapsed := now - f.Stats.LastFeeCollectionTs
	if elapsed <= 0 {
		return 0, 0, nil
	}

	tv, err := f.Stats.TotalValue()
	if err != nil {
		return 0, 0, err
	}

	mgmtE6, err = fpmath.ManagementFee(tv, f.FeeConfig.ManagementFeeBps, elapsed)
	if err != nil {
		return 0, 0, err
	}

	if f.FeeConfig.UseHighWaterMark {
		perfE6, err = fpmath.PerformanceFee(f.Stats.CurrentNAVE6, f.Stats.HighWaterMarkE6, tv, f.FeeConfig.PerformanceFeeBps)
		if err != nil {
			return 0, 0, err
		}
	}

	return mgmtE6, perfE6, nil
}

// CollectFees books already-computed fees, advances the collection timestamp,
// recomputes NAV against the lower total value and raises the HWM if exceeded.
func (f *Fund) CollectFees(mgmtE6, perfE6, ts int64) error {
	next := f.Stats

	var err error
	if next.TotalManagementFeeE6, err = fpmath.CheckedAddI64(next.TotalManagementFeeE6, mgmtE6); err != nil {
		return fmt.Errorf("collect fees: %w", err)
	}
	if next.TotalPerformanceFeeE6, err = fpmath.CheckedAddI64(next.TotalPerformanceFeeE6, perfE6); err != nil {
		return fmt.Errorf("collect fees: %w", err)
	}
	next.LastFeeCollectionTs = ts
	if err := next.refreshNAV(); err != nil {
		return fmt.Errorf("collect fees: %w", err)
	}
	next.raiseHWM()

	f.commit(next, ts)
	return nil
}

// CollectDueFees runs the collection gate and, on success, books the accrued fees.
// The returned amounts are owed to the manager out of the fund vault.
func (f *Fund) CollectDueFees(now int64) (mgmtE6, perfE6 int64, err error) {
	if !f.FeeConfig.CanCollect(f.Stats.LastFeeCollectionTs, now) {
		return 0, 0, errs.Newf(errs.CodeFeeCollectionTooEarly, "last=%d interval=%d now=%d",
			f.Stats.LastFeeCollectionTs, f.FeeConfig.FeeCollectionIntervalSecs, now)
	}

	mgmtE6, perfE6, err = f.CalculateFees(now)
	if err != nil {
		return 0, 0, err
	}

	total, err := fpmath.CheckedAddI64(mgmtE6, perfE6)
	if err != nil {
		return 0, 0, err
	}
	if total <= 0 {
		return 0, 0, errs.New(errs.CodeNoFeesToCollect)
	}

	if err := f.CollectFees(mgmtE6, perfE6, now); err != nil {
		return 0, 0, err
	}
	return mgmtE6, perfE6, nil
}

func (f *Fund) SetOpen(open bool, ts int64) {
	f.IsOpen = open
	f.LastUpdateTs = ts
	f.Version++
}

func (f *Fund) SetPaused(paused bool, ts int64) {
	f.IsPaused = paused
	f.LastUpdateTs = ts
	f.Version++
}

// UpdateFeeConfig replaces the fee schedule after validating it.
func (f *Fund) UpdateFeeConfig(fees FeeConfig, ts int64) error {
	if err := fees.Validate(); err != nil {
		return err
	}
	f.FeeConfig = fees
	f.LastUpdateTs = ts
	f.Version++
	return nil
}

// Close retires the fund. Only a fund without LPs or outstanding shares can close.
// The caller sweeps any residual vault balance to the manager in the same transaction.
func (f *Fund) Close(ts int64) error {
	if f.IsClosed {
		return errs.Newf(errs.CodeFundClosed, "fund %s already closed", f.ID)
	}
	if f.Stats.LPCount > 0 || f.Stats.TotalShares > 0 {
		return errs.Newf(errs.CodeFundHasLPPositions, "lp_count=%d total_shares=%d",
			f.Stats.LPCount, f.Stats.TotalShares)
	}

	f.IsClosed = true
	f.IsOpen = false
	f.LastUpdateTs = ts
	f.Version++
	return nil
}

// CanonicalBytes for deterministic hashing
func (f *Fund) CanonicalBytes() []byte {
	buf := make([]byte, 0, 192)

	buf = append(buf, f.ID[:]...)
	buf = append(buf, f.Manager[:]...)
	buf = append(buf, byte(len(f.Name)))
	buf = append(buf, []byte(f.Name)...)
	buf = appendInt64LE(buf, int64(f.Index))
	buf = append(buf, byte(f.Kind))

	buf = appendInt64LE(buf, int64(f.FeeConfig.ManagementFeeBps))
	buf = appendInt64LE(buf, int64(f.FeeConfig.PerformanceFeeBps))
	buf = appendBool(buf, f.FeeConfig.UseHighWaterMark)
	buf = appendInt64LE(buf, f.FeeConfig.FeeCollectionIntervalSecs)

	s := f.Stats
	buf = appendInt64LE(buf, s.TotalDepositsE6)
	buf = appendInt64LE(buf, s.TotalWithdrawalsE6)
	buf = appendInt64LE(buf, s.CurrentNAVE6)
	buf = appendInt64LE(buf, s.HighWaterMarkE6)
	buf = appendInt64LE(buf, s.TotalManagementFeeE6)
	buf = appendInt64LE(buf, s.TotalPerformanceFeeE6)
	buf = appendInt64LE(buf, int64(s.TotalShares))
	buf = appendInt64LE(buf, s.LastFeeCollectionTs)
	buf = appendInt64LE(buf, s.TotalRealizedPnLE6)
	buf = appendInt64LE(buf, int64(s.LPCount))

	buf = appendBool(buf, f.IsOpen)
	buf = appendBool(buf, f.IsPaused)
	buf = appendBool(buf, f.IsClosed)

	return buf
}
