package core

import (
	"fmt"

	"NavLedger/internal/custody"
	"NavLedger/internal/errs"
	"NavLedger/internal/event"
	"NavLedger/internal/state"

	"github.com/google/uuid"
)

// Handlers mutate ledger state first, each step compute-then-commit, and
// only then build the custody batch. A rejected event returns before any
// commit. A generator failure after commit means custody and state diverged,
// which is fatal.

func (e *Engine) empty(ac *applyCtx) (*custody.Batch, error) {
	return e.journalGen.GenerateEmpty(ac.ref, ac.ts), nil
}

func mustBatch(b *custody.Batch, err error) *custody.Batch {
	if err != nil {
		panic(fmt.Sprintf("FATAL: custody diverged from ledger state: %v", err))
	}
	return b
}

// --- Program ---

func (e *Engine) handleProgramInitialized(ac *applyCtx, evt *event.ProgramInitialized) (*custody.Batch, error) {
	authority := evt.Authority
	if authority == uuid.Nil {
		authority = ac.signer
	}
	e.program = state.NewProgramConfig(authority, evt.PnLCaller, ac.ts)
	return e.empty(ac)
}

func (e *Engine) handleProgramPaused(ac *applyCtx, evt *event.ProgramPaused) (*custody.Batch, error) {
	e.program.SetPaused(evt.Paused, ac.ts)
	return e.empty(ac)
}

func (e *Engine) handleAuthorityUpdated(ac *applyCtx, evt *event.AuthorityUpdated) (*custody.Batch, error) {
	if evt.NewAuthority == uuid.Nil {
		return nil, errs.Newf(errs.CodeAdminRequired, "new authority must be set")
	}
	e.program.UpdateAuthority(evt.NewAuthority, evt.NewPnLCaller, ac.ts)
	return e.empty(ac)
}

// --- Fund lifecycle ---

// feeConfigFrom applies defaults for omitted wire fields.
func feeConfigFrom(p event.FeeParams) state.FeeConfig {
	cfg := state.NewFeeConfig(p.ManagementFeeBps, p.PerformanceFeeBps)
	if p.UseHighWaterMark != nil {
		cfg.UseHighWaterMark = *p.UseHighWaterMark
	}
	if p.FeeCollectionIntervalSecs != nil {
		cfg.FeeCollectionIntervalSecs = *p.FeeCollectionIntervalSecs
	}
	return cfg
}

// deriveFundID names a fund from its creating event when the caller left the ID empty.
func deriveFundID(ref string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(ref))
}

func (e *Engine) registerFund(ac *applyCtx, id uuid.UUID, name string, kind state.FundKind, fees state.FeeConfig) (*state.Fund, error) {
	if err := e.program.CanCreateFund(); err != nil {
		return nil, err
	}
	if _, err := e.book.GetFund(id); err == nil {
		return nil, errs.Newf(errs.CodeFundAlreadyInitialized, "fund %s", id)
	}

	f, err := state.NewFund(id, ac.signer, name, uint64(e.program.TotalFunds), kind, fees, ac.ts)
	if err != nil {
		return nil, err
	}
	index, err := e.program.NextFundIndex(ac.ts)
	if err != nil {
		return nil, fmt.Errorf("create fund: %w", err)
	}
	f.Index = index

	if err := e.book.AddFund(f); err != nil {
		panic(fmt.Sprintf("FATAL: add fund after existence check: %v", err))
	}
	return f, nil
}

func (e *Engine) handleFundCreated(ac *applyCtx, evt *event.FundCreated) (*custody.Batch, error) {
	id := evt.FundID
	if id == uuid.Nil {
		id = deriveFundID(ac.ref)
	}

	f, err := e.registerFund(ac, id, evt.Name, state.FundKindStandard, feeConfigFrom(evt.Fees))
	if err != nil {
		return nil, err
	}

	ac.fund = f
	ac.out.FundID = f.ID
	ac.out.NAVE6 = f.Stats.CurrentNAVE6
	return e.empty(ac)
}

// mutableFund loads a fund that is still allowed to change.
func (e *Engine) mutableFund(id uuid.UUID) (*state.Fund, error) {
	f, err := e.book.GetFund(id)
	if err != nil {
		return nil, err
	}
	if f.IsClosed {
		return nil, errs.Newf(errs.CodeFundClosed, "fund %s is closed", id)
	}
	return f, nil
}

func (e *Engine) handleFundFeeConfigUpdated(ac *applyCtx, evt *event.FundFeeConfigUpdated) (*custody.Batch, error) {
	f, err := e.mutableFund(evt.FundID)
	if err != nil {
		return nil, err
	}
	if f.IsInsurance() {
		return nil, errs.Newf(errs.CodeInvalidFeeConfig, "insurance fund charges no fees")
	}
	if err := f.UpdateFeeConfig(feeConfigFrom(evt.Fees), ac.ts); err != nil {
		return nil, err
	}
	ac.fund = f
	ac.out.FundID = f.ID
	return e.empty(ac)
}

func (e *Engine) handleFundOpenSet(ac *applyCtx, evt *event.FundOpenSet) (*custody.Batch, error) {
	f, err := e.mutableFund(evt.FundID)
	if err != nil {
		return nil, err
	}
	f.SetOpen(evt.Open, ac.ts)
	ac.fund = f
	ac.out.FundID = f.ID
	return e.empty(ac)
}

func (e *Engine) handleFundPausedSet(ac *applyCtx, evt *event.FundPausedSet) (*custody.Batch, error) {
	f, err := e.mutableFund(evt.FundID)
	if err != nil {
		return nil, err
	}
	f.SetPaused(evt.Paused, ac.ts)
	ac.fund = f
	ac.out.FundID = f.ID
	return e.empty(ac)
}

func (e *Engine) handleFundClosed(ac *applyCtx, evt *event.FundClosed) (*custody.Batch, error) {
	f, err := e.book.GetFund(evt.FundID)
	if err != nil {
		return nil, err
	}
	if f.IsInsurance() {
		return nil, errs.Newf(errs.CodeFundHasLPPositions, "insurance fund cannot be closed")
	}

	staged := *f
	if err := staged.Close(ac.ts); err != nil {
		return nil, err
	}
	if err := e.program.FundClosed(ac.ts); err != nil {
		return nil, fmt.Errorf("close fund: %w", err)
	}
	*f = staged

	residual := e.balanceTracker.VaultBalance(f.ID)
	ac.fund = f
	ac.out.FundID = f.ID
	ac.out.ValueE6 = residual
	return e.journalGen.GenerateCloseSweep(ac.ref, f.ID, f.Manager, ac.ts), nil
}

// --- Investor flows ---

func (e *Engine) handleDeposit(ac *applyCtx, evt *event.Deposit) (*custody.Batch, error) {
	res, err := e.book.Deposit(evt.FundID, ac.signer, evt.AmountE6, ac.ts)
	if err != nil {
		return nil, err
	}

	e.touchFund(ac, evt.FundID, ac.signer)
	ac.out.Shares = res.Shares
	ac.out.ValueE6 = evt.AmountE6
	ac.out.NAVE6 = res.NAVBefore
	ac.out.NewPosition = res.NewPosition

	return mustBatch(e.journalGen.GenerateDeposit(ac.ref, evt.FundID, ac.signer, evt.AmountE6, res.Shares, ac.ts)), nil
}

func (e *Engine) handleRedemption(ac *applyCtx, evt *event.Redemption) (*custody.Batch, error) {
	req := state.RedeemRequest{
		FundID:         evt.FundID,
		Investor:       ac.signer,
		Shares:         evt.Shares,
		VaultBalanceE6: e.balanceTracker.VaultBalance(evt.FundID),
		Timestamp:      ac.ts,
	}
	// The insurance vault fund is gated by the buffer: ADL freeze, then cooldown.
	if e.buffer != nil && e.buffer.FundID == evt.FundID {
		req.Gate = e.buffer
		ac.buffer = true
	}

	res, err := e.book.Redeem(req)
	if err != nil {
		return nil, err
	}

	e.touchFund(ac, evt.FundID, ac.signer)
	ac.out.Shares = evt.Shares
	ac.out.ValueE6 = res.ValueE6
	ac.out.NAVE6 = res.NAVE6
	ac.out.PositionEmptied = res.PositionEmptied

	return mustBatch(e.journalGen.GenerateRedemption(ac.ref, evt.FundID, ac.signer, res.ValueE6, evt.Shares, ac.ts)), nil
}

func (e *Engine) touchFund(ac *applyCtx, fundID, investor uuid.UUID) {
	f, err := e.book.GetFund(fundID)
	if err != nil {
		panic(fmt.Sprintf("FATAL: fund %s vanished after apply", fundID))
	}
	ac.fund = f
	ac.out.FundID = fundID
	ac.position = e.book.GetPosition(fundID, investor)
}

// --- Trading results & fees ---

func (e *Engine) handlePnLRecorded(ac *applyCtx, evt *event.PnLRecorded) (*custody.Batch, error) {
	f, err := e.mutableFund(evt.FundID)
	if err != nil {
		return nil, err
	}
	if err := f.RecordPnL(evt.DeltaE6, ac.ts); err != nil {
		return nil, err
	}

	ac.fund = f
	ac.out.FundID = f.ID
	ac.out.NAVE6 = f.Stats.CurrentNAVE6
	ac.out.ValueE6 = evt.DeltaE6
	if f.IsInsurance() {
		ac.buffer = true
	}
	return mustBatch(e.journalGen.GeneratePnL(ac.ref, f.ID, evt.DeltaE6, ac.ts)), nil
}

func (e *Engine) handleFeesCollected(ac *applyCtx, evt *event.FeesCollected) (*custody.Batch, error) {
	f, err := e.mutableFund(evt.FundID)
	if err != nil {
		return nil, err
	}
	mgmt, perf, err := f.CollectDueFees(ac.ts)
	if err != nil {
		return nil, err
	}

	ac.fund = f
	ac.out.FundID = f.ID
	ac.out.ManagementFeeE6 = mgmt
	ac.out.PerformanceFeeE6 = perf
	ac.out.NAVE6 = f.Stats.CurrentNAVE6

	if e.metrics != nil {
		id := f.ID.String()
		e.metrics.FeesCollected.WithLabelValues(id, "management").Add(float64(mgmt))
		e.metrics.FeesCollected.WithLabelValues(id, "performance").Add(float64(perf))
	}
	return mustBatch(e.journalGen.GenerateFeeCollection(ac.ref, f.ID, f.Manager, mgmt, perf, ac.ts)), nil
}

// --- Insurance buffer ---

func (e *Engine) handleInsuranceInitialized(ac *applyCtx, evt *event.InsuranceInitialized) (*custody.Batch, error) {
	if e.buffer != nil {
		return nil, errs.Newf(errs.CodeInsuranceFundAlreadyInitialized, "buffer over fund %s", e.buffer.FundID)
	}

	id := evt.FundID
	if id == uuid.Nil {
		id = deriveFundID(ac.ref)
	}
	caller := evt.AuthorizedCaller
	if caller == uuid.Nil {
		caller = ac.signer
	}

	buf, err := state.NewInsuranceBuffer(id, caller, evt.ADLThresholdE6, evt.WithdrawalDelaySecs, ac.ts)
	if err != nil {
		return nil, err
	}
	f, err := e.registerFund(ac, id, state.InsuranceFundName, state.FundKindInsurance, state.ZeroFeeConfig())
	if err != nil {
		return nil, err
	}
	e.buffer = buf

	ac.fund = f
	ac.buffer = true
	ac.out.FundID = f.ID
	ac.out.NAVE6 = f.Stats.CurrentNAVE6
	return e.empty(ac)
}

func (e *Engine) handleInsuranceConfigUpdated(ac *applyCtx, evt *event.InsuranceConfigUpdated) (*custody.Batch, error) {
	if err := e.buffer.UpdateConfig(evt.ADLThresholdE6, evt.WithdrawalDelaySecs, ac.ts); err != nil {
		return nil, err
	}
	ac.buffer = true
	return e.empty(ac)
}

func (e *Engine) insuranceFund() *state.Fund {
	f, err := e.book.GetFund(e.buffer.FundID)
	if err != nil {
		panic(fmt.Sprintf("FATAL: insurance fund %s missing", e.buffer.FundID))
	}
	return f
}

// handleInsuranceIncome books income on the buffer and as PnL on the vault fund.
func (e *Engine) handleInsuranceIncome(ac *applyCtx, amountE6 int64, jt custody.JournalType) (*custody.Batch, error) {
	f := e.insuranceFund()

	buf := *e.buffer
	var err error
	switch jt {
	case custody.JournalTypeLiquidationIncome:
		err = buf.AddLiquidationIncome(amountE6, ac.ts)
	case custody.JournalTypeADLProfit:
		err = buf.AddADLProfit(amountE6, ac.ts)
	case custody.JournalTypeTradingFee:
		err = buf.AddTradingFee(amountE6, ac.ts)
	}
	if err != nil {
		return nil, err
	}

	fund := *f
	if err := fund.RecordPnL(amountE6, ac.ts); err != nil {
		return nil, err
	}

	*e.buffer = buf
	*f = fund

	ac.fund = f
	ac.buffer = true
	ac.out.FundID = f.ID
	ac.out.ValueE6 = amountE6
	ac.out.NAVE6 = f.Stats.CurrentNAVE6
	return mustBatch(e.journalGen.GenerateInsuranceIncome(ac.ref, f.ID, amountE6, jt, ac.ts)), nil
}

// handleShortfallCoverage pays what the vault can toward a shortfall. A
// remainder is reported for deleveraging; it is not an error.
func (e *Engine) handleShortfallCoverage(ac *applyCtx, evt *event.ShortfallCoverage) (*custody.Batch, error) {
	f := e.insuranceFund()
	balance := e.balanceTracker.VaultBalance(f.ID)
	reason := e.buffer.ShouldTriggerADL(balance, evt.ShortfallE6)

	buf := *e.buffer
	covered, remaining, err := buf.CoverShortfall(evt.ShortfallE6, balance, ac.ts)
	if err != nil {
		return nil, err
	}

	fund := *f
	if covered > 0 {
		if err := fund.RecordPnL(-covered, ac.ts); err != nil {
			return nil, err
		}
	}

	*e.buffer = buf
	*f = fund

	ac.fund = f
	ac.buffer = true
	ac.out.FundID = f.ID
	ac.out.CoveredE6 = covered
	ac.out.RemainingE6 = remaining
	ac.out.TriggerReason = reason
	ac.out.NAVE6 = f.Stats.CurrentNAVE6

	if e.metrics != nil {
		e.metrics.ShortfallCovered.Add(float64(covered))
		e.metrics.ShortfallUncovered.Add(float64(remaining))
		if reason.ShouldADL() {
			e.metrics.ADLTriggers.WithLabelValues(reason.String()).Inc()
		}
	}
	if remaining > 0 {
		e.logger.Warn().
			Int64("shortfall_e6", evt.ShortfallE6).
			Int64("covered_e6", covered).
			Int64("remaining_e6", remaining).
			Str("reason", reason.String()).
			Msg("shortfall exceeds insurance vault")
	}
	return mustBatch(e.journalGen.GenerateShortfallCoverage(ac.ref, f.ID, covered, ac.ts)), nil
}

func (e *Engine) handleInsuranceSnapshot(ac *applyCtx, _ *event.InsuranceSnapshot) (*custody.Batch, error) {
	balance := e.balanceTracker.VaultBalance(e.buffer.FundID)
	if err := e.buffer.UpdateHourlySnapshot(balance, ac.ts); err != nil {
		return nil, err
	}
	ac.buffer = true
	ac.out.ValueE6 = balance
	return e.empty(ac)
}

func (e *Engine) handleADLStatusSet(ac *applyCtx, evt *event.ADLStatusSet) (*custody.Batch, error) {
	e.buffer.SetADLInProgress(evt.InProgress, ac.ts)
	ac.buffer = true
	return e.empty(ac)
}

// handleADLTriggerCheck records the evaluation in the log; it changes no state.
func (e *Engine) handleADLTriggerCheck(ac *applyCtx, evt *event.ADLTriggerCheck) (*custody.Batch, error) {
	if evt.ShortfallE6 < 0 {
		return nil, errs.Newf(errs.CodeInvalidAmount, "shortfall %d", evt.ShortfallE6)
	}
	balance := e.balanceTracker.VaultBalance(e.buffer.FundID)
	reason := e.buffer.ShouldTriggerADL(balance, evt.ShortfallE6)

	ac.out.TriggerReason = reason
	ac.out.ValueE6 = balance
	if reason.ShouldADL() && e.metrics != nil {
		e.metrics.ADLTriggers.WithLabelValues(reason.String()).Inc()
	}
	return e.empty(ac)
}
