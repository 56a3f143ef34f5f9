package state

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"
)

// FeeConfig holds a fund's fee schedule.
type FeeConfig struct {
	ManagementFeeBps          uint32 // annual, prorated per second
	PerformanceFeeBps         uint32 // share of profit above HWM
	UseHighWaterMark          bool   // performance fee disabled when false
	FeeCollectionIntervalSecs int64
}

// NewFeeConfig returns a schedule with HWM enabled and the daily collection interval.
func NewFeeConfig(managementFeeBps, performanceFeeBps uint32) FeeConfig {
	return FeeConfig{
		ManagementFeeBps:          managementFeeBps,
		PerformanceFeeBps:         performanceFeeBps,
		UseHighWaterMark:          true,
		FeeCollectionIntervalSecs: fpmath.DefaultFeeCollectionIntervalSecs,
	}
}

// ZeroFeeConfig is the schedule of the insurance fund.
func ZeroFeeConfig() FeeConfig {
	return FeeConfig{}
}

func (c FeeConfig) Validate() error {
	if err := fpmath.ValidateFeeBps(c.ManagementFeeBps, c.PerformanceFeeBps); err != nil {
		return err
	}
	if c.FeeCollectionIntervalSecs < 0 {
		return errs.Newf(errs.CodeInvalidFeeConfig, "negative collection interval %d", c.FeeCollectionIntervalSecs)
	}
	return nil
}

// CanCollect reports whether the collection interval has elapsed since lastCollectionTs.
func (c FeeConfig) CanCollect(lastCollectionTs, now int64) bool {
	return fpmath.CanCollectFees(lastCollectionTs, c.FeeCollectionIntervalSecs, now)
}
