package core

import (
	"NavLedger/internal/errs"
	"NavLedger/internal/event"
	"NavLedger/internal/state"

	"github.com/google/uuid"
)

// Authorizer decides whether the signer of an event may perform it.
// It runs before any state is touched.
//
//	program admin    ProgramPaused, AuthorityUpdated, InsuranceInitialized, InsuranceConfigUpdated
//	fund manager     FundFeeConfigUpdated, FundOpenSet, FundPausedSet, FundClosed
//	manager|admin    FeesCollected
//	pnl caller       PnLRecorded
//	buffer caller    LiquidationIncome, ADLProfit, TradingFee, ShortfallCoverage, ADLStatusSet
//	anyone           FundCreated, Deposit, Redemption, InsuranceSnapshot, ADLTriggerCheck
type Authorizer struct{}

func (Authorizer) Authorize(
	evt event.Event,
	program *state.ProgramConfig,
	book *state.FundBook,
	buffer *state.InsuranceBuffer,
) error {
	signer := evt.SignedBy()
	if signer == uuid.Nil {
		return errs.Newf(errs.CodeUnauthorized, "%s: missing signer", evt.EventType())
	}

	if _, ok := evt.(*event.ProgramInitialized); ok {
		if program != nil {
			return errs.Newf(errs.CodeAdminRequired, "program already initialized")
		}
		return nil
	}
	if program == nil || !program.Initialized {
		return errs.Newf(errs.CodeUnauthorized, "program not initialized")
	}

	switch e := evt.(type) {
	case *event.ProgramPaused, *event.AuthorityUpdated,
		*event.InsuranceInitialized, *event.InsuranceConfigUpdated:
		if !program.IsAuthority(signer) {
			return errs.Newf(errs.CodeAdminRequired, "%s signed by %s", evt.EventType(), signer)
		}
		if _, ok := evt.(*event.InsuranceConfigUpdated); ok && buffer == nil {
			return errs.ErrInsuranceFundNotInitialized
		}
		return nil

	case *event.FundFeeConfigUpdated:
		return requireManager(book, e.FundID, signer)
	case *event.FundOpenSet:
		return requireManager(book, e.FundID, signer)
	case *event.FundPausedSet:
		return requireManager(book, e.FundID, signer)
	case *event.FundClosed:
		return requireManager(book, e.FundID, signer)

	case *event.FeesCollected:
		if program.IsAuthority(signer) {
			return nil
		}
		return requireManager(book, e.FundID, signer)

	case *event.PnLRecorded:
		if !program.IsPnLCaller(signer) {
			return errs.Newf(errs.CodeUnauthorizedCaller, "pnl signed by %s", signer)
		}
		return nil

	case *event.LiquidationIncome, *event.ADLProfit, *event.TradingFee,
		*event.ShortfallCoverage, *event.ADLStatusSet:
		if buffer == nil {
			return errs.ErrInsuranceFundNotInitialized
		}
		if !buffer.IsAuthorizedCaller(signer) {
			return errs.Newf(errs.CodeUnauthorizedCaller, "%s signed by %s", evt.EventType(), signer)
		}
		return nil

	case *event.InsuranceSnapshot, *event.ADLTriggerCheck:
		if buffer == nil {
			return errs.ErrInsuranceFundNotInitialized
		}
		return nil
	}

	return nil
}

func requireManager(book *state.FundBook, fundID, signer uuid.UUID) error {
	f, err := book.GetFund(fundID)
	if err != nil {
		return err
	}
	if !f.IsManager(signer) {
		return errs.Newf(errs.CodeNotFundManager, "fund %s signed by %s", fundID, signer)
	}
	return nil
}
