package custody

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches for fund operations
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence aligns the generator with a restored core sequence.
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 2),
	}
}

func (jg *JournalGenerator) addJournal(b *Batch, debit, credit AccountKey, amount int64, jt JournalType) {
	if amount <= 0 {
		return
	}
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       debit.AssetID,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

func (jg *JournalGenerator) finish(b *Batch) *Batch {
	jg.sequence++
	return b
}

func sharesAmount(shares uint64) (int64, error) {
	if shares > math.MaxInt64 {
		return 0, fmt.Errorf("share amount %d exceeds journal range", shares)
	}
	return int64(shares), nil
}

// GenerateEmpty creates a journal-less batch for state-only events.
func (jg *JournalGenerator) GenerateEmpty(eventRef string, timestamp int64) *Batch {
	return jg.finish(jg.newBatch(eventRef, timestamp))
}

// GenerateDeposit moves the deposit into the vault and mints shares to the investor.
//
//	investor:wallet -> fund:vault            (amount)
//	fund:share_supply -> investor:shares     (shares)
func (jg *JournalGenerator) GenerateDeposit(
	eventRef string,
	fundID, investor uuid.UUID,
	amount int64,
	shares uint64,
	timestamp int64,
) (*Batch, error) {
	n, err := sharesAmount(shares)
	if err != nil {
		return nil, err
	}

	b := jg.newBatch(eventRef, timestamp)
	jg.addJournal(b, VaultKey(fundID), InvestorWalletKey(investor), amount, JournalTypeDeposit)
	jg.addJournal(b, InvestorSharesKey(investor, fundID), ShareSupplyKey(fundID), n, JournalTypeShareMint)
	return jg.finish(b), nil
}

// GenerateRedemption pays the redemption value out of the vault and burns the shares.
// Pre-check: the vault covers the value and the investor holds the shares.
func (jg *JournalGenerator) GenerateRedemption(
	eventRef string,
	fundID, investor uuid.UUID,
	value int64,
	shares uint64,
	timestamp int64,
) (*Batch, error) {
	n, err := sharesAmount(shares)
	if err != nil {
		return nil, err
	}
	if err := jg.balanceTracker.ValidateSufficient(VaultKey(fundID), value); err != nil {
		return nil, fmt.Errorf("redemption pre-check failed: %w", err)
	}
	if err := jg.balanceTracker.ValidateSufficient(InvestorSharesKey(investor, fundID), n); err != nil {
		return nil, fmt.Errorf("redemption pre-check failed: %w", err)
	}

	b := jg.newBatch(eventRef, timestamp)
	jg.addJournal(b, InvestorWalletKey(investor), VaultKey(fundID), value, JournalTypeRedemption)
	jg.addJournal(b, ShareSupplyKey(fundID), InvestorSharesKey(investor, fundID), n, JournalTypeShareBurn)
	return jg.finish(b), nil
}

// GeneratePnL settles a trading result against the vault.
// Gains flow external:trading -> vault, losses the other way.
func (jg *JournalGenerator) GeneratePnL(eventRef string, fundID uuid.UUID, delta int64, timestamp int64) (*Batch, error) {
	b := jg.newBatch(eventRef, timestamp)
	trading := NewExternalAccountKey(SubTypeExternalTrading)

	switch {
	case delta > 0:
		jg.addJournal(b, VaultKey(fundID), trading, delta, JournalTypeTradingPnL)
	case delta < 0:
		if delta == math.MinInt64 {
			return nil, fmt.Errorf("pnl delta out of range")
		}
		if err := jg.balanceTracker.ValidateSufficient(VaultKey(fundID), -delta); err != nil {
			return nil, fmt.Errorf("pnl pre-check failed: %w", err)
		}
		jg.addJournal(b, trading, VaultKey(fundID), -delta, JournalTypeTradingPnL)
	}

	return jg.finish(b), nil
}

// GenerateFeeCollection pays collected fees from the vault to the manager.
func (jg *JournalGenerator) GenerateFeeCollection(
	eventRef string,
	fundID, manager uuid.UUID,
	managementFee, performanceFee int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(VaultKey(fundID), managementFee+performanceFee); err != nil {
		return nil, fmt.Errorf("fee pre-check failed: %w", err)
	}

	b := jg.newBatch(eventRef, timestamp)
	jg.addJournal(b, ManagerWalletKey(manager), VaultKey(fundID), managementFee, JournalTypeManagementFee)
	jg.addJournal(b, ManagerWalletKey(manager), VaultKey(fundID), performanceFee, JournalTypePerformanceFee)
	return jg.finish(b), nil
}

// GenerateCloseSweep moves whatever is left in a closing fund's vault to the manager.
func (jg *JournalGenerator) GenerateCloseSweep(eventRef string, fundID, manager uuid.UUID, timestamp int64) *Batch {
	b := jg.newBatch(eventRef, timestamp)
	residual := jg.balanceTracker.VaultBalance(fundID)
	jg.addJournal(b, ManagerWalletKey(manager), VaultKey(fundID), residual, JournalTypeCloseSweep)
	return jg.finish(b)
}

// GenerateInsuranceIncome credits liquidation income, ADL profit or a trading fee share to the insurance vault.
func (jg *JournalGenerator) GenerateInsuranceIncome(
	eventRef string,
	fundID uuid.UUID,
	amount int64,
	jt JournalType,
	timestamp int64,
) (*Batch, error) {
	switch jt {
	case JournalTypeLiquidationIncome, JournalTypeADLProfit, JournalTypeTradingFee:
	default:
		return nil, fmt.Errorf("journal type %s is not insurance income", jt)
	}

	b := jg.newBatch(eventRef, timestamp)
	jg.addJournal(b, VaultKey(fundID), NewExternalAccountKey(SubTypeExternalTrading), amount, jt)
	return jg.finish(b), nil
}

// GenerateShortfallCoverage pays the covered part of a shortfall out of the insurance vault.
func (jg *JournalGenerator) GenerateShortfallCoverage(eventRef string, fundID uuid.UUID, covered int64, timestamp int64) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(VaultKey(fundID), covered); err != nil {
		return nil, fmt.Errorf("coverage pre-check failed: %w", err)
	}

	b := jg.newBatch(eventRef, timestamp)
	jg.addJournal(b, NewExternalAccountKey(SubTypeExternalShortfall), VaultKey(fundID), covered, JournalTypeShortfallCoverage)
	return jg.finish(b), nil
}
