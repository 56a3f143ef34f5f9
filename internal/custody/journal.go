package custody

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeDeposit JournalType = iota
	JournalTypeShareMint
	JournalTypeRedemption
	JournalTypeShareBurn
	JournalTypeTradingPnL
	JournalTypeManagementFee
	JournalTypePerformanceFee
	JournalTypeCloseSweep
	JournalTypeLiquidationIncome
	JournalTypeADLProfit
	JournalTypeTradingFee
	JournalTypeShortfallCoverage
)

func (t JournalType) String() string {
	switch t {
	case JournalTypeDeposit:
		return "deposit"
	case JournalTypeShareMint:
		return "share_mint"
	case JournalTypeRedemption:
		return "redemption"
	case JournalTypeShareBurn:
		return "share_burn"
	case JournalTypeTradingPnL:
		return "trading_pnl"
	case JournalTypeManagementFee:
		return "management_fee"
	case JournalTypePerformanceFee:
		return "performance_fee"
	case JournalTypeCloseSweep:
		return "close_sweep"
	case JournalTypeLiquidationIncome:
		return "liquidation_income"
	case JournalTypeADLProfit:
		return "adl_profit"
	case JournalTypeTradingFee:
		return "trading_fee"
	case JournalTypeShortfallCoverage:
		return "shortfall_coverage"
	default:
		return "unknown"
	}
}

// Journal represents a single double-entry journal entry
type Journal struct {
	JournalID     uuid.UUID   // Unique identifier
	BatchID       uuid.UUID   // Groups balanced entries
	EventRef      string      // Idempotency key of source event
	Sequence      int64       // Global event sequence
	DebitAccount  AccountKey  // Account receiving debit (balance increases)
	CreditAccount AccountKey  // Account receiving credit (balance decreases)
	AssetID       AssetID     // Asset being transferred
	Amount        int64       // e6 amount or share count (ALWAYS positive)
	JournalType   JournalType // Entry type
	Timestamp     int64       // Event timestamp (unix seconds)
}

// Batch represents a balanced set of journal entries
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed.
// Each journal moves one positive amount from credit to debit, so every entry
// balances by construction and a multi-leg batch balances as a whole.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}

		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}

		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}

		if j.DebitAccount.AssetID != j.AssetID || j.CreditAccount.AssetID != j.AssetID {
			return fmt.Errorf("journal %s mixes assets", j.JournalID)
		}
	}

	return nil
}
