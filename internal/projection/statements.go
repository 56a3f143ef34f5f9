package projection

import (
	"NavLedger/internal/cache"
	"NavLedger/internal/core"
	"NavLedger/internal/state"
)

// Statement is one parameterized write against the projection schema.
type Statement struct {
	Name  string // projection label for metrics
	Query string
	Args  []any
}

// Statements returns the upserts that bring the projections up to out.
// Views hold post-event copies, so each upsert is a full overwrite guarded by
// last_sequence; replaying an older output never regresses a row.
func Statements(out core.CoreOutput) []Statement {
	if out.Envelope == nil || out.Views == nil {
		return nil
	}
	seq := out.Envelope.Sequence
	v := out.Views

	var stmts []Statement
	if v.Program != nil {
		stmts = append(stmts, programUpsert(v.Program, seq))
	}
	if v.Fund != nil {
		stmts = append(stmts, fundUpsert(v.Fund, seq))
		if s, ok := navHistoryInsert(v.Fund, seq, out.Envelope.EventType.String()); ok {
			stmts = append(stmts, s)
		}
	}
	if v.Position != nil {
		stmts = append(stmts, positionUpsert(v.Position, seq))
	}
	if v.Buffer != nil {
		stmts = append(stmts, insuranceUpsert(v.Buffer, seq))
	}
	return stmts
}

// InvalidationKeys lists the cache keys made stale by out.
func InvalidationKeys(out core.CoreOutput) map[string][]string {
	if out.Views == nil {
		return nil
	}
	keys := make(map[string][]string)
	v := out.Views
	if v.Fund != nil {
		keys["fund"] = append(keys["fund"], cache.FundKey(v.Fund.ID))
		if v.Fund.IsInsurance() {
			keys["insurance"] = append(keys["insurance"], cache.InsuranceKey())
		}
	}
	if v.Position != nil {
		keys["position"] = append(keys["position"], cache.PositionKey(v.Position.FundID, v.Position.Investor))
		keys["investor"] = append(keys["investor"], cache.InvestorKey(v.Position.Investor))
	}
	if v.Buffer != nil && len(keys["insurance"]) == 0 {
		keys["insurance"] = append(keys["insurance"], cache.InsuranceKey())
	}
	return keys
}

func programUpsert(p *state.ProgramConfig, seq int64) Statement {
	return Statement{
		Name: "program",
		Query: `INSERT INTO projections.program
			(id, authority, pnl_caller, total_funds, active_funds, is_paused, last_update_ts, last_sequence)
			VALUES (1, $1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				authority = EXCLUDED.authority, pnl_caller = EXCLUDED.pnl_caller,
				total_funds = EXCLUDED.total_funds, active_funds = EXCLUDED.active_funds,
				is_paused = EXCLUDED.is_paused, last_update_ts = EXCLUDED.last_update_ts,
				last_sequence = EXCLUDED.last_sequence
			WHERE projections.program.last_sequence < EXCLUDED.last_sequence`,
		Args: []any{
			p.Authority, p.AuthorizedPnLCaller, int64(p.TotalFunds), int64(p.ActiveFunds),
			p.IsPaused, p.LastUpdateTs, seq,
		},
	}
}

func fundUpsert(f *state.Fund, seq int64) Statement {
	tv, _ := f.TotalValue()
	s := f.Stats
	return Statement{
		Name: "funds",
		Query: `INSERT INTO projections.funds
			(fund_id, manager, name, fund_index, kind,
			 management_fee_bps, performance_fee_bps, use_high_water_mark, fee_interval_secs,
			 total_deposits_e6, total_withdrawals_e6, total_realized_pnl_e6,
			 total_management_fee_e6, total_performance_fee_e6, total_value_e6,
			 total_shares, current_nav_e6, high_water_mark_e6, last_fee_collection_ts, lp_count,
			 is_open, is_paused, is_closed, created_at, last_update_ts, version, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
			ON CONFLICT (fund_id) DO UPDATE SET
				manager = EXCLUDED.manager, name = EXCLUDED.name,
				management_fee_bps = EXCLUDED.management_fee_bps,
				performance_fee_bps = EXCLUDED.performance_fee_bps,
				use_high_water_mark = EXCLUDED.use_high_water_mark,
				fee_interval_secs = EXCLUDED.fee_interval_secs,
				total_deposits_e6 = EXCLUDED.total_deposits_e6,
				total_withdrawals_e6 = EXCLUDED.total_withdrawals_e6,
				total_realized_pnl_e6 = EXCLUDED.total_realized_pnl_e6,
				total_management_fee_e6 = EXCLUDED.total_management_fee_e6,
				total_performance_fee_e6 = EXCLUDED.total_performance_fee_e6,
				total_value_e6 = EXCLUDED.total_value_e6,
				total_shares = EXCLUDED.total_shares,
				current_nav_e6 = EXCLUDED.current_nav_e6,
				high_water_mark_e6 = EXCLUDED.high_water_mark_e6,
				last_fee_collection_ts = EXCLUDED.last_fee_collection_ts,
				lp_count = EXCLUDED.lp_count,
				is_open = EXCLUDED.is_open, is_paused = EXCLUDED.is_paused, is_closed = EXCLUDED.is_closed,
				last_update_ts = EXCLUDED.last_update_ts, version = EXCLUDED.version,
				last_sequence = EXCLUDED.last_sequence
			WHERE projections.funds.last_sequence < EXCLUDED.last_sequence`,
		Args: []any{
			f.ID, f.Manager, f.Name, int64(f.Index), f.Kind.String(),
			int64(f.FeeConfig.ManagementFeeBps), int64(f.FeeConfig.PerformanceFeeBps),
			f.FeeConfig.UseHighWaterMark, f.FeeConfig.FeeCollectionIntervalSecs,
			s.TotalDepositsE6, s.TotalWithdrawalsE6, s.TotalRealizedPnLE6,
			s.TotalManagementFeeE6, s.TotalPerformanceFeeE6, tv,
			int64(s.TotalShares), s.CurrentNAVE6, s.HighWaterMarkE6, s.LastFeeCollectionTs, int64(s.LPCount),
			f.IsOpen, f.IsPaused, f.IsClosed, f.CreatedAt, f.LastUpdateTs, f.Version, seq,
		},
	}
}

func positionUpsert(p *state.LPPosition, seq int64) Statement {
	return Statement{
		Name: "lp_positions",
		Query: `INSERT INTO projections.lp_positions
			(fund_id, investor, shares, deposit_nav_e6, total_deposited_e6, total_withdrawn_e6,
			 deposited_at, last_update_ts, version, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (fund_id, investor) DO UPDATE SET
				shares = EXCLUDED.shares, deposit_nav_e6 = EXCLUDED.deposit_nav_e6,
				total_deposited_e6 = EXCLUDED.total_deposited_e6,
				total_withdrawn_e6 = EXCLUDED.total_withdrawn_e6,
				deposited_at = EXCLUDED.deposited_at, last_update_ts = EXCLUDED.last_update_ts,
				version = EXCLUDED.version, last_sequence = EXCLUDED.last_sequence
			WHERE projections.lp_positions.last_sequence < EXCLUDED.last_sequence`,
		Args: []any{
			p.FundID, p.Investor, int64(p.Shares), p.DepositNAVE6, p.TotalDepositedE6, p.TotalWithdrawnE6,
			p.DepositedAt, p.LastUpdateTs, p.Version, seq,
		},
	}
}

func insuranceUpsert(b *state.InsuranceBuffer, seq int64) Statement {
	return Statement{
		Name: "insurance",
		Query: `INSERT INTO projections.insurance
			(id, fund_id, total_liquidation_income_e6, total_adl_profit_e6, total_shortfall_payout_e6,
			 adl_trigger_threshold_e6, adl_trigger_count, is_adl_in_progress, balance_1h_ago_e6,
			 last_snapshot_ts, withdrawal_delay_secs, authorized_caller, last_update_ts, version, last_sequence)
			VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				total_liquidation_income_e6 = EXCLUDED.total_liquidation_income_e6,
				total_adl_profit_e6 = EXCLUDED.total_adl_profit_e6,
				total_shortfall_payout_e6 = EXCLUDED.total_shortfall_payout_e6,
				adl_trigger_threshold_e6 = EXCLUDED.adl_trigger_threshold_e6,
				adl_trigger_count = EXCLUDED.adl_trigger_count,
				is_adl_in_progress = EXCLUDED.is_adl_in_progress,
				balance_1h_ago_e6 = EXCLUDED.balance_1h_ago_e6,
				last_snapshot_ts = EXCLUDED.last_snapshot_ts,
				withdrawal_delay_secs = EXCLUDED.withdrawal_delay_secs,
				authorized_caller = EXCLUDED.authorized_caller,
				last_update_ts = EXCLUDED.last_update_ts, version = EXCLUDED.version,
				last_sequence = EXCLUDED.last_sequence
			WHERE projections.insurance.last_sequence < EXCLUDED.last_sequence`,
		Args: []any{
			b.FundID, b.TotalLiquidationIncomeE6, b.TotalADLProfitE6, b.TotalShortfallPayoutE6,
			b.ADLTriggerThresholdE6, int64(b.ADLTriggerCount), b.IsADLInProgress, b.Balance1hAgoE6,
			b.LastSnapshotTs, b.WithdrawalDelaySecs, b.AuthorizedCaller, b.LastUpdateTs, b.Version, seq,
		},
	}
}
