package custody

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks custody invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateVault checks the vault holds exactly the fund's total value.
func (v *InvariantValidator) ValidateVault(fundID uuid.UUID, totalValueE6 int64) error {
	balance := v.tracker.VaultBalance(fundID)
	if balance != totalValueE6 {
		return fmt.Errorf("vault of fund %s out of reconciliation: balance=%d total_value=%d",
			fundID, balance, totalValueE6)
	}
	return v.tracker.ValidateNonNegative(VaultKey(fundID))
}

// ValidateShareSupply checks minted shares match the fund's total.
func (v *InvariantValidator) ValidateShareSupply(fundID uuid.UUID, totalShares uint64) error {
	supply := v.tracker.ShareSupply(fundID)
	if supply < 0 || uint64(supply) != totalShares {
		return fmt.Errorf("share supply of fund %s mismatch: custody=%d ledger=%d", fundID, supply, totalShares)
	}
	return nil
}

// ValidateInvestorShares checks the custodied shares match the position.
func (v *InvariantValidator) ValidateInvestorShares(investor, fundID uuid.UUID, shares uint64) error {
	held := v.tracker.InvestorShares(investor, fundID)
	if held < 0 || uint64(held) != shares {
		return fmt.Errorf("shares of investor %s in fund %s mismatch: custody=%d ledger=%d",
			investor, fundID, held, shares)
	}
	return nil
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
