package testutil

import (
	"testing"

	"NavLedger/internal/core"
	"NavLedger/internal/event"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// T0 is the base event time used by fixtures.
const T0 = 1_700_000_000

// Well-known identities shared by package tests.
var (
	Authority = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	PnLCaller = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	Manager   = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	Investor1 = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	Investor2 = uuid.MustParse("00000000-0000-0000-0000-0000000000d2")
	InsCaller = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")
	FundID    = uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
	InsFundID = uuid.MustParse("00000000-0000-0000-0000-0000000000f9")
)

// Meta returns event metadata with a fresh event id.
func Meta(signer uuid.UUID, ts int64) event.Meta {
	return event.Meta{EventID: uuid.NewString(), Signer: signer, Timestamp: ts}
}

// NewEngine builds an engine with buffered output channels and no database tier.
func NewEngine() (*core.Engine, chan core.CoreOutput, chan core.CoreOutput) {
	persistChan := make(chan core.CoreOutput, 4096)
	projChan := make(chan core.CoreOutput, 4096)
	return core.NewEngine(1, persistChan, projChan, nil, nil, zerolog.Nop()), persistChan, projChan
}

// MustApply fails the test on any ledger error.
func MustApply(t testing.TB, e *core.Engine, evt event.Event) *core.Outcome {
	t.Helper()
	out, err := e.ProcessEvent(evt)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", evt.EventType(), err)
	}
	return out
}

// Drain empties ch without blocking.
func Drain(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// Scenario is a fixed event history touching every accounting path:
// program setup, a fee-charging fund with two investors, PnL, fee collection,
// a redemption, the insurance buffer with income and a covered shortfall.
func Scenario() []event.Event {
	return []event.Event{
		&event.ProgramInitialized{Meta: Meta(Authority, T0), Authority: Authority, PnLCaller: PnLCaller},
		&event.FundCreated{
			Meta:   Meta(Manager, T0),
			FundID: FundID,
			Name:   "Alpha",
			Fees:   event.FeeParams{ManagementFeeBps: 200, PerformanceFeeBps: 2000},
		},
		&event.Deposit{Meta: Meta(Investor1, T0+10), FundID: FundID, AmountE6: 100_000_000},
		&event.Deposit{Meta: Meta(Investor2, T0+20), FundID: FundID, AmountE6: 50_000_000},
		&event.PnLRecorded{Meta: Meta(PnLCaller, T0+3600), FundID: FundID, DeltaE6: 15_000_000},
		&event.FeesCollected{Meta: Meta(Manager, T0+86_400), FundID: FundID},
		&event.Redemption{Meta: Meta(Investor2, T0+90_000), FundID: FundID, Shares: 20_000_000},
		&event.InsuranceInitialized{
			Meta:                Meta(Authority, T0+100_000),
			FundID:              InsFundID,
			ADLThresholdE6:      50_000_000,
			WithdrawalDelaySecs: 3600,
			AuthorizedCaller:    InsCaller,
		},
		&event.Deposit{Meta: Meta(Investor1, T0+100_010), FundID: InsFundID, AmountE6: 200_000_000},
		&event.LiquidationIncome{Meta: Meta(InsCaller, T0+100_020), AmountE6: 10_000_000},
		&event.InsuranceSnapshot{Meta: Meta(InsCaller, T0+100_030)},
		&event.ShortfallCoverage{Meta: Meta(InsCaller, T0+100_040), ShortfallE6: 30_000_000},
	}
}

// ApplyScenario runs Scenario against e and returns the events it applied.
func ApplyScenario(t testing.TB, e *core.Engine) []event.Event {
	t.Helper()
	events := Scenario()
	for _, evt := range events {
		MustApply(t, e, evt)
	}
	return events
}
