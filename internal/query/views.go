package query

import (
	"NavLedger/internal/state"
)

// FundFromState renders a fund as its API view.
func FundFromState(f *state.Fund, asOf int64) *FundResponse {
	tv, _ := f.TotalValue()
	s := f.Stats
	return &FundResponse{
		FundID:            f.ID,
		Manager:           f.Manager,
		Name:              f.Name,
		Index:             f.Index,
		Kind:              f.Kind.String(),
		ManagementFeeBps:  f.FeeConfig.ManagementFeeBps,
		PerformanceFeeBps: f.FeeConfig.PerformanceFeeBps,
		UseHighWaterMark:  f.FeeConfig.UseHighWaterMark,
		FeeIntervalSecs:   f.FeeConfig.FeeCollectionIntervalSecs,
		TotalDeposits:     E6(s.TotalDepositsE6),
		TotalWithdrawals:  E6(s.TotalWithdrawalsE6),
		RealizedPnL:       E6(s.TotalRealizedPnLE6),
		ManagementFees:    E6(s.TotalManagementFeeE6),
		PerformanceFees:   E6(s.TotalPerformanceFeeE6),
		TotalValue:        E6(tv),
		TotalShares:       SharesE6(s.TotalShares),
		NAV:               E6(s.CurrentNAVE6),
		HighWaterMark:     E6(s.HighWaterMarkE6),
		LastFeeCollection: s.LastFeeCollectionTs,
		LPCount:           s.LPCount,
		IsOpen:            f.IsOpen,
		IsPaused:          f.IsPaused,
		IsClosed:          f.IsClosed,
		CreatedAt:         f.CreatedAt,
		LastUpdateTs:      f.LastUpdateTs,
		AsOfSequence:      asOf,
	}
}

// PositionFromState values p at navE6. Value and PnL fall back to zero if they overflow.
func PositionFromState(p *state.LPPosition, navE6, asOf int64) *PositionResponse {
	value, _ := p.CurrentValue(navE6)
	pnl, _ := p.UnrealizedPnL(navE6)
	return &PositionResponse{
		FundID:         p.FundID,
		Investor:       p.Investor,
		Shares:         SharesE6(p.Shares),
		DepositNAV:     E6(p.DepositNAVE6),
		TotalDeposited: E6(p.TotalDepositedE6),
		TotalWithdrawn: E6(p.TotalWithdrawnE6),
		CurrentValue:   E6(value),
		UnrealizedPnL:  E6(pnl),
		DepositedAt:    p.DepositedAt,
		LastUpdateTs:   p.LastUpdateTs,
		AsOfSequence:   asOf,
	}
}

// InsuranceFromState renders the buffer with its vault balance.
func InsuranceFromState(b *state.InsuranceBuffer, balanceE6, asOf int64) *InsuranceResponse {
	net, _ := b.NetIncome()
	return &InsuranceResponse{
		FundID:                 b.FundID,
		Balance:                E6(balanceE6),
		TotalLiquidationIncome: E6(b.TotalLiquidationIncomeE6),
		TotalADLProfit:         E6(b.TotalADLProfitE6),
		TotalShortfallPayout:   E6(b.TotalShortfallPayoutE6),
		NetIncome:              E6(net),
		ADLTriggerThreshold:    E6(b.ADLTriggerThresholdE6),
		ADLTriggerCount:        b.ADLTriggerCount,
		IsADLInProgress:        b.IsADLInProgress,
		Balance1hAgo:           E6(b.Balance1hAgoE6),
		LastSnapshotTs:         b.LastSnapshotTs,
		WithdrawalDelaySecs:    b.WithdrawalDelaySecs,
		AuthorizedCaller:       b.AuthorizedCaller,
		LastUpdateTs:           b.LastUpdateTs,
		AsOfSequence:           asOf,
	}
}
