package query

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts are e6 fixed-point integers in the ledger and exact decimals on the wire.

const e6Exp = -6

// E6 renders a fixed-point e6 amount as a decimal.
func E6(v int64) decimal.Decimal {
	return decimal.New(v, e6Exp)
}

// SharesE6 renders a share count, also e6 scaled.
func SharesE6(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), e6Exp)
}

// ParseE6 converts a decimal string such as "1000.50" to e6 units. More than
// six fractional digits or a value outside int64 is rejected.
func ParseE6(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	scaled := d.Shift(-e6Exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than 6 decimal places", s)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return scaled.IntPart(), nil
}

// ParseSharesE6 is ParseE6 for non-negative share counts.
func ParseSharesE6(s string) (uint64, error) {
	v, err := ParseE6(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("shares %q must not be negative", s)
	}
	return uint64(v), nil
}

// FundResponse is the fund view.
type FundResponse struct {
	FundID            uuid.UUID       `json:"fund_id"`
	Manager           uuid.UUID       `json:"manager"`
	Name              string          `json:"name"`
	Index             uint64          `json:"index"`
	Kind              string          `json:"kind"`
	ManagementFeeBps  uint32          `json:"management_fee_bps"`
	PerformanceFeeBps uint32          `json:"performance_fee_bps"`
	UseHighWaterMark  bool            `json:"use_high_water_mark"`
	FeeIntervalSecs   int64           `json:"fee_collection_interval_secs"`
	TotalDeposits     decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals  decimal.Decimal `json:"total_withdrawals"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	ManagementFees    decimal.Decimal `json:"management_fees"`
	PerformanceFees   decimal.Decimal `json:"performance_fees"`
	TotalValue        decimal.Decimal `json:"total_value"`
	TotalShares       decimal.Decimal `json:"total_shares"`
	NAV               decimal.Decimal `json:"nav"`
	HighWaterMark     decimal.Decimal `json:"high_water_mark"`
	LastFeeCollection int64           `json:"last_fee_collection_ts"`
	LPCount           uint32          `json:"lp_count"`
	IsOpen            bool            `json:"is_open"`
	IsPaused          bool            `json:"is_paused"`
	IsClosed          bool            `json:"is_closed"`
	CreatedAt         int64           `json:"created_at"`
	LastUpdateTs      int64           `json:"last_update_ts"`
	AsOfSequence      int64           `json:"as_of_sequence"`
}

// PositionResponse is one investor's holding, valued at the fund's current NAV.
type PositionResponse struct {
	FundID         uuid.UUID       `json:"fund_id"`
	Investor       uuid.UUID       `json:"investor"`
	Shares         decimal.Decimal `json:"shares"`
	DepositNAV     decimal.Decimal `json:"deposit_nav"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	CurrentValue   decimal.Decimal `json:"current_value"`  // derived at query time
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"` // derived at query time
	DepositedAt    int64           `json:"deposited_at"`
	LastUpdateTs   int64           `json:"last_update_ts"`
	AsOfSequence   int64           `json:"as_of_sequence"`
}

// InsuranceResponse is the insurance buffer view. Balance is the insurance fund's vault.
type InsuranceResponse struct {
	FundID                 uuid.UUID       `json:"fund_id"`
	Balance                decimal.Decimal `json:"balance"`
	TotalLiquidationIncome decimal.Decimal `json:"total_liquidation_income"`
	TotalADLProfit         decimal.Decimal `json:"total_adl_profit"`
	TotalShortfallPayout   decimal.Decimal `json:"total_shortfall_payout"`
	NetIncome              decimal.Decimal `json:"net_income"`
	ADLTriggerThreshold    decimal.Decimal `json:"adl_trigger_threshold"`
	ADLTriggerCount        uint64          `json:"adl_trigger_count"`
	IsADLInProgress        bool            `json:"is_adl_in_progress"`
	Balance1hAgo           decimal.Decimal `json:"balance_1h_ago"`
	LastSnapshotTs         int64           `json:"last_snapshot_ts"`
	WithdrawalDelaySecs    int64           `json:"withdrawal_delay_secs"`
	AuthorizedCaller       uuid.UUID       `json:"authorized_caller"`
	LastUpdateTs           int64           `json:"last_update_ts"`
	AsOfSequence           int64           `json:"as_of_sequence"`
}

// NAVPoint is one entry of a fund's NAV history.
type NAVPoint struct {
	Sequence    int64           `json:"sequence"`
	EventType   string          `json:"event_type"`
	NAV         decimal.Decimal `json:"nav"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TotalShares decimal.Decimal `json:"total_shares"`
	Timestamp   int64           `json:"timestamp"`
}

// NAVHistoryResponse pages newest first. Pass NextCursor as before to continue.
type NAVHistoryResponse struct {
	FundID       uuid.UUID  `json:"fund_id"`
	Points       []NAVPoint `json:"points"`
	NextCursor   *int64     `json:"next_cursor,omitempty"`
	AsOfSequence int64      `json:"as_of_sequence"`
}

// JournalEntry is a journal line touching an account.
type JournalEntry struct {
	JournalID     string          `json:"journal_id"`
	BatchID       string          `json:"batch_id"`
	EventRef      string          `json:"event_ref"`
	Sequence      int64           `json:"sequence"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
	AssetID       uint16          `json:"asset_id"`
	Amount        decimal.Decimal `json:"amount"`
	JournalType   string          `json:"journal_type"`
	Timestamp     int64           `json:"timestamp"`
}

// DepositQuote previews a deposit against live engine state.
type DepositQuote struct {
	FundID uuid.UUID       `json:"fund_id"`
	Amount decimal.Decimal `json:"amount"`
	Shares decimal.Decimal `json:"shares"`
	NAV    decimal.Decimal `json:"nav"`
}

// RedeemQuote previews a redemption against live engine state.
type RedeemQuote struct {
	FundID uuid.UUID       `json:"fund_id"`
	Shares decimal.Decimal `json:"shares"`
	Value  decimal.Decimal `json:"value"`
	NAV    decimal.Decimal `json:"nav"`
}

// ADLCheckResponse reports whether a shortfall would trigger auto-deleveraging.
type ADLCheckResponse struct {
	Shortfall decimal.Decimal `json:"shortfall"`
	Balance   decimal.Decimal `json:"balance"`
	Reason    string          `json:"reason"`
	ShouldADL bool            `json:"should_adl"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool            `json:"is_healthy"`
	HashChainBreaks []int64         `json:"hash_chain_breaks,omitempty"`
	VaultMismatches []VaultMismatch `json:"vault_mismatches,omitempty"`
	AsOfSequence    int64           `json:"as_of_sequence"`
}

// VaultMismatch is a fund whose journaled vault balance differs from its
// projected total value.
type VaultMismatch struct {
	FundID    uuid.UUID `json:"fund_id"`
	Journaled int64     `json:"journaled_e6"`
	Projected int64     `json:"projected_e6"`
}
