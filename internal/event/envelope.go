package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeProgramInitialized
	EventTypeProgramPaused
	EventTypeAuthorityUpdated
	EventTypeFundCreated
	EventTypeFundFeeConfigUpdated
	EventTypeFundOpenSet
	EventTypeFundPausedSet
	EventTypeFundClosed
	EventTypeDeposit
	EventTypeRedemption
	EventTypePnLRecorded
	EventTypeFeesCollected
	EventTypeInsuranceInitialized
	EventTypeInsuranceConfigUpdated
	EventTypeLiquidationIncome
	EventTypeADLProfit
	EventTypeTradingFee
	EventTypeShortfallCoverage
	EventTypeInsuranceSnapshot
	EventTypeADLStatusSet
	EventTypeADLTriggerCheck
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Fund context (nil for program-wide events)
	FundID *uuid.UUID

	// Caller-supplied event time (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// FundRef returns the fund context (nil for program-wide events)
	FundRef() *uuid.UUID

	// SourceSequence returns upstream ordering key (0 = unordered)
	SourceSequence() int64

	// EventTimestamp returns the caller-supplied unix time in seconds
	EventTimestamp() int64

	// SignedBy returns the identity that issued the event
	SignedBy() uuid.UUID
}

// Meta carries the fields common to every event. Embedded in each payload.
type Meta struct {
	EventID   string    `json:"event_id"`
	Signer    uuid.UUID `json:"signer"`
	Sequence  int64     `json:"sequence,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func (m Meta) IdempotencyKey() string { return m.EventID }

func (m Meta) SourceSequence() int64 { return m.Sequence }

func (m Meta) EventTimestamp() int64 { return m.Timestamp }

func (m Meta) SignedBy() uuid.UUID { return m.Signer }

var eventTypeNames = map[EventType]string{
	EventTypeProgramInitialized:     "program_initialized",
	EventTypeProgramPaused:          "program_paused",
	EventTypeAuthorityUpdated:       "authority_updated",
	EventTypeFundCreated:            "fund_created",
	EventTypeFundFeeConfigUpdated:   "fund_fee_config_updated",
	EventTypeFundOpenSet:            "fund_open_set",
	EventTypeFundPausedSet:          "fund_paused_set",
	EventTypeFundClosed:             "fund_closed",
	EventTypeDeposit:                "deposit",
	EventTypeRedemption:             "redemption",
	EventTypePnLRecorded:            "pnl_recorded",
	EventTypeFeesCollected:          "fees_collected",
	EventTypeInsuranceInitialized:   "insurance_initialized",
	EventTypeInsuranceConfigUpdated: "insurance_config_updated",
	EventTypeLiquidationIncome:      "liquidation_income",
	EventTypeADLProfit:              "adl_profit",
	EventTypeTradingFee:             "trading_fee",
	EventTypeShortfallCoverage:      "shortfall_coverage",
	EventTypeInsuranceSnapshot:      "insurance_snapshot",
	EventTypeADLStatusSet:           "adl_status_set",
	EventTypeADLTriggerCheck:        "adl_trigger_check",
}

var eventTypesByName = func() map[string]EventType {
	m := make(map[string]EventType, len(eventTypeNames))
	for t, n := range eventTypeNames {
		m[n] = t
	}
	return m
}()

// String returns the wire name used in subjects, routes and the event log.
func (et EventType) String() string {
	if n, ok := eventTypeNames[et]; ok {
		return n
	}
	return "unknown"
}

// ParseEventType resolves a wire name.
func ParseEventType(name string) (EventType, bool) {
	et, ok := eventTypesByName[name]
	return et, ok
}

// AllEventTypes returns every known type in discriminator order.
func AllEventTypes() []EventType {
	out := make([]EventType, 0, len(eventTypeNames))
	for et := EventTypeProgramInitialized; et <= EventTypeADLTriggerCheck; et++ {
		out = append(out, et)
	}
	return out
}

func fundRef(id uuid.UUID) *uuid.UUID {
	return &id
}
