package event

import "github.com/google/uuid"

// InsuranceInitialized creates the insurance buffer over a new zero-fee vault fund.
type InsuranceInitialized struct {
	Meta
	FundID              uuid.UUID `json:"fund_id"`
	ADLThresholdE6      int64     `json:"adl_threshold_e6"`
	WithdrawalDelaySecs int64     `json:"withdrawal_delay_secs"`
	AuthorizedCaller    uuid.UUID `json:"authorized_caller"`
}

func (e *InsuranceInitialized) EventType() EventType { return EventTypeInsuranceInitialized }
func (e *InsuranceInitialized) FundRef() *uuid.UUID  { return fundRef(e.FundID) }

type InsuranceConfigUpdated struct {
	Meta
	ADLThresholdE6      int64 `json:"adl_threshold_e6"`
	WithdrawalDelaySecs int64 `json:"withdrawal_delay_secs"`
}

func (e *InsuranceConfigUpdated) EventType() EventType { return EventTypeInsuranceConfigUpdated }
func (e *InsuranceConfigUpdated) FundRef() *uuid.UUID  { return nil }

// LiquidationIncome credits liquidation penalties to the buffer.
type LiquidationIncome struct {
	Meta
	AmountE6 int64 `json:"amount_e6"`
}

func (e *LiquidationIncome) EventType() EventType { return EventTypeLiquidationIncome }
func (e *LiquidationIncome) FundRef() *uuid.UUID  { return nil }

type ADLProfit struct {
	Meta
	AmountE6 int64 `json:"amount_e6"`
}

func (e *ADLProfit) EventType() EventType { return EventTypeADLProfit }
func (e *ADLProfit) FundRef() *uuid.UUID  { return nil }

// TradingFee routes a share of trading fees into the buffer.
type TradingFee struct {
	Meta
	AmountE6 int64 `json:"amount_e6"`
}

func (e *TradingFee) EventType() EventType { return EventTypeTradingFee }
func (e *TradingFee) FundRef() *uuid.UUID  { return nil }

// ShortfallCoverage asks the buffer to absorb an under-collateralized loss.
type ShortfallCoverage struct {
	Meta
	ShortfallE6 int64 `json:"shortfall_e6"`
}

func (e *ShortfallCoverage) EventType() EventType { return EventTypeShortfallCoverage }
func (e *ShortfallCoverage) FundRef() *uuid.UUID  { return nil }

// InsuranceSnapshot records the vault balance into the rolling one-hour slot.
type InsuranceSnapshot struct {
	Meta
}

func (e *InsuranceSnapshot) EventType() EventType { return EventTypeInsuranceSnapshot }
func (e *InsuranceSnapshot) FundRef() *uuid.UUID  { return nil }

type ADLStatusSet struct {
	Meta
	InProgress bool `json:"in_progress"`
}

func (e *ADLStatusSet) EventType() EventType { return EventTypeADLStatusSet }
func (e *ADLStatusSet) FundRef() *uuid.UUID  { return nil }

// ADLTriggerCheck evaluates the trigger against the current vault balance. It changes no state.
type ADLTriggerCheck struct {
	Meta
	ShortfallE6 int64 `json:"shortfall_e6"`
}

func (e *ADLTriggerCheck) EventType() EventType { return EventTypeADLTriggerCheck }
func (e *ADLTriggerCheck) FundRef() *uuid.UUID  { return nil }

// New returns an empty payload for the type, ready to be decoded into.
func New(et EventType) (Event, bool) {
	switch et {
	case EventTypeProgramInitialized:
		return &ProgramInitialized{}, true
	case EventTypeProgramPaused:
		return &ProgramPaused{}, true
	case EventTypeAuthorityUpdated:
		return &AuthorityUpdated{}, true
	case EventTypeFundCreated:
		return &FundCreated{}, true
	case EventTypeFundFeeConfigUpdated:
		return &FundFeeConfigUpdated{}, true
	case EventTypeFundOpenSet:
		return &FundOpenSet{}, true
	case EventTypeFundPausedSet:
		return &FundPausedSet{}, true
	case EventTypeFundClosed:
		return &FundClosed{}, true
	case EventTypeDeposit:
		return &Deposit{}, true
	case EventTypeRedemption:
		return &Redemption{}, true
	case EventTypePnLRecorded:
		return &PnLRecorded{}, true
	case EventTypeFeesCollected:
		return &FeesCollected{}, true
	case EventTypeInsuranceInitialized:
		return &InsuranceInitialized{}, true
	case EventTypeInsuranceConfigUpdated:
		return &InsuranceConfigUpdated{}, true
	case EventTypeLiquidationIncome:
		return &LiquidationIncome{}, true
	case EventTypeADLProfit:
		return &ADLProfit{}, true
	case EventTypeTradingFee:
		return &TradingFee{}, true
	case EventTypeShortfallCoverage:
		return &ShortfallCoverage{}, true
	case EventTypeInsuranceSnapshot:
		return &InsuranceSnapshot{}, true
	case EventTypeADLStatusSet:
		return &ADLStatusSet{}, true
	case EventTypeADLTriggerCheck:
		return &ADLTriggerCheck{}, true
	default:
		return nil, false
	}
}
