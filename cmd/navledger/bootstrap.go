package main

import (
	"errors"
	"fmt"
	"time"

	"NavLedger/internal/config"
	"NavLedger/internal/core"
	"NavLedger/internal/errs"
	"NavLedger/internal/event"

	"github.com/rs/zerolog"
)

// bootstrap initializes the program and the insurance buffer from config
// when the recovered ledger has neither. The event ids are fixed, so a crash
// between the two events is resumed rather than repeated.
func bootstrap(engine *core.Engine, cfg *config.Config, logger zerolog.Logger) error {
	ids, err := cfg.ProgramBootstrap()
	if err != nil || ids == nil {
		return err
	}
	now := time.Now().Unix()

	if _, ok := engine.Program(); !ok {
		out, err := engine.ProcessEvent(&event.ProgramInitialized{
			Meta:      event.Meta{EventID: "bootstrap:program:" + ids.Authority.String(), Signer: ids.Authority, Timestamp: now},
			Authority: ids.Authority,
			PnLCaller: ids.PnLCaller,
		})
		if err != nil {
			return fmt.Errorf("initialize program: %w", err)
		}
		logger.Info().Int64("sequence", out.Sequence).Str("authority", ids.Authority.String()).Msg("program initialized")
	}

	ins, err := cfg.InsuranceBootstrap()
	if err != nil || ins == nil {
		return err
	}
	if _, err := engine.Insurance(); !errors.Is(err, errs.ErrInsuranceFundNotInitialized) {
		return nil
	}
	out, err := engine.ProcessEvent(&event.InsuranceInitialized{
		Meta:                event.Meta{EventID: "bootstrap:insurance:" + ins.FundID.String(), Signer: ids.Authority, Timestamp: now},
		FundID:              ins.FundID,
		ADLThresholdE6:      ins.ADLThresholdE6,
		WithdrawalDelaySecs: ins.WithdrawalDelaySecs,
		AuthorizedCaller:    ins.AuthorizedCaller,
	})
	if err != nil {
		return fmt.Errorf("initialize insurance: %w", err)
	}
	logger.Info().Int64("sequence", out.Sequence).Str("fund_id", ins.FundID.String()).Msg("insurance buffer initialized")
	return nil
}
