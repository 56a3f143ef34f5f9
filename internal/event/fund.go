// internal/event/fund.go
package event

import "github.com/google/uuid"

// FeeParams is the wire form of a fee schedule.
// Nil UseHighWaterMark and nil interval take the defaults (true, daily).
type FeeParams struct {
	ManagementFeeBps          uint32 `json:"management_fee_bps"`
	PerformanceFeeBps         uint32 `json:"performance_fee_bps"`
	UseHighWaterMark          *bool  `json:"use_high_water_mark,omitempty"`
	FeeCollectionIntervalSecs *int64 `json:"fee_collection_interval_secs,omitempty"`
}

// FundCreated registers a fund managed by the signer.
type FundCreated struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
	Name   string    `json:"name"`
	Fees   FeeParams `json:"fees"`
}

func (e *FundCreated) EventType() EventType { return EventTypeFundCreated }
func (e *FundCreated) FundRef() *uuid.UUID  { return fundRef(e.FundID) }

type FundFeeConfigUpdated struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
	Fees   FeeParams `json:"fees"`
}

func (e *FundFeeConfigUpdated) EventType() EventType { return EventTypeFundFeeConfigUpdated }
func (e *FundFeeConfigUpdated) FundRef() *uuid.UUID  { return fundRef(e.FundID) }

type FundOpenSet struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
	Open   bool      `json:"open"`
}

func (e *FundOpenSet) EventType() EventType { return EventTypeFundOpenSet }
func (e *FundOpenSet) FundRef() *uuid.UUID  { return fundRef(e.FundID) }

type FundPausedSet struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
	Paused bool      `json:"paused"`
}

func (e *FundPausedSet) EventType() EventType { return EventTypeFundPausedSet }
func (e *FundPausedSet) FundRef() *uuid.UUID  { return fundRef(e.FundID) }

// FundClosed retires an empty fund and sweeps its vault to the manager.
type FundClosed struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
}

func (e *FundClosed) EventType() EventType { return EventTypeFundClosed }
func (e *FundClosed) FundRef() *uuid.UUID  { return fundRef(e.FundID) }
