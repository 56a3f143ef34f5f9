package event

import "github.com/google/uuid"

// ProgramInitialized sets up the program authority and the ledger allowed to record PnL.
type ProgramInitialized struct {
	Meta
	Authority uuid.UUID `json:"authority"`
	PnLCaller uuid.UUID `json:"pnl_caller"`
}

func (e *ProgramInitialized) EventType() EventType { return EventTypeProgramInitialized }
func (e *ProgramInitialized) FundRef() *uuid.UUID  { return nil }

// ProgramPaused toggles the global pause. Paused programs reject fund creation.
type ProgramPaused struct {
	Meta
	Paused bool `json:"paused"`
}

func (e *ProgramPaused) EventType() EventType { return EventTypeProgramPaused }
func (e *ProgramPaused) FundRef() *uuid.UUID  { return nil }

// AuthorityUpdated hands the program over to a new authority.
// A zero NewPnLCaller keeps the current one.
type AuthorityUpdated struct {
	Meta
	NewAuthority uuid.UUID `json:"new_authority"`
	NewPnLCaller uuid.UUID `json:"new_pnl_caller,omitempty"`
}

func (e *AuthorityUpdated) EventType() EventType { return EventTypeAuthorityUpdated }
func (e *AuthorityUpdated) FundRef() *uuid.UUID  { return nil }
