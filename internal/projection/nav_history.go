package projection

import (
	"NavLedger/internal/event"
	"NavLedger/internal/state"
)

// navMovingEvents are the event types that can change a fund's NAV or share count.
var navMovingEvents = map[string]bool{
	event.EventTypeFundCreated.String():          true,
	event.EventTypeDeposit.String():              true,
	event.EventTypeRedemption.String():           true,
	event.EventTypePnLRecorded.String():          true,
	event.EventTypeFeesCollected.String():        true,
	event.EventTypeFundClosed.String():           true,
	event.EventTypeInsuranceInitialized.String(): true,
	event.EventTypeLiquidationIncome.String():    true,
	event.EventTypeADLProfit.String():            true,
	event.EventTypeTradingFee.String():           true,
	event.EventTypeShortfallCoverage.String():    true,
}

func navHistoryInsert(f *state.Fund, seq int64, eventType string) (Statement, bool) {
	if !navMovingEvents[eventType] {
		return Statement{}, false
	}
	tv, _ := f.TotalValue()
	return Statement{
		Name: "nav_history",
		Query: `INSERT INTO projections.nav_history
			(fund_id, sequence, event_type, nav_e6, total_value_e6, total_shares, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (fund_id, sequence) DO NOTHING`,
		Args: []any{f.ID, seq, eventType, f.Stats.CurrentNAVE6, tv, int64(f.Stats.TotalShares), f.LastUpdateTs},
	}, true
}
