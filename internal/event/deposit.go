// internal/event/deposit.go
package event

import "github.com/google/uuid"

// Deposit buys shares for the signing investor at the pre-deposit NAV.
type Deposit struct {
	Meta
	FundID   uuid.UUID `json:"fund_id"`
	AmountE6 int64     `json:"amount_e6"`
}

func (d *Deposit) EventType() EventType { return EventTypeDeposit }
func (d *Deposit) FundRef() *uuid.UUID  { return fundRef(d.FundID) }

// Redemption burns the signing investor's shares at the current NAV.
type Redemption struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
	Shares uint64    `json:"shares"`
}

func (r *Redemption) EventType() EventType { return EventTypeRedemption }
func (r *Redemption) FundRef() *uuid.UUID  { return fundRef(r.FundID) }

// PnLRecorded books a realized trading result. Only the configured PnL caller may sign it.
type PnLRecorded struct {
	Meta
	FundID  uuid.UUID `json:"fund_id"`
	DeltaE6 int64     `json:"delta_e6"`
}

func (p *PnLRecorded) EventType() EventType { return EventTypePnLRecorded }
func (p *PnLRecorded) FundRef() *uuid.UUID  { return fundRef(p.FundID) }

// FeesCollected asks the fund to accrue and pay out fees due at Timestamp.
type FeesCollected struct {
	Meta
	FundID uuid.UUID `json:"fund_id"`
}

func (f *FeesCollected) EventType() EventType { return EventTypeFeesCollected }
func (f *FeesCollected) FundRef() *uuid.UUID  { return fundRef(f.FundID) }
