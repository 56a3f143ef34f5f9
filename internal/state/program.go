package state

import (
	"NavLedger/internal/errs"
	fpmath "NavLedger/internal/math"

	"github.com/google/uuid"
)

// ProgramConfig holds the global administration state.
type ProgramConfig struct {
	Authority           uuid.UUID
	AuthorizedPnLCaller uuid.UUID // trading ledger allowed to record fund PnL
	TotalFunds          uint32
	ActiveFunds         uint32
	IsPaused            bool
	Initialized         bool
	LastUpdateTs        int64
}

func NewProgramConfig(authority, pnlCaller uuid.UUID, ts int64) *ProgramConfig {
	return &ProgramConfig{
		Authority:           authority,
		AuthorizedPnLCaller: pnlCaller,
		Initialized:         true,
		LastUpdateTs:        ts,
	}
}

func (p *ProgramConfig) IsAuthority(id uuid.UUID) bool { return p.Initialized && p.Authority == id }

func (p *ProgramConfig) IsPnLCaller(id uuid.UUID) bool {
	return p.Initialized && p.AuthorizedPnLCaller == id
}

// CanCreateFund fails with FundPaused while the program is paused.
func (p *ProgramConfig) CanCreateFund() error {
	if p.IsPaused {
		return errs.Newf(errs.CodeFundPaused, "program paused")
	}
	return nil
}

// NextFundIndex reserves an index for a new fund and counts it as active.
func (p *ProgramConfig) NextFundIndex(ts int64) (uint64, error) {
	total, err := fpmath.CheckedAddU32(p.TotalFunds, 1)
	if err != nil {
		return 0, err
	}
	active, err := fpmath.CheckedAddU32(p.ActiveFunds, 1)
	if err != nil {
		return 0, err
	}
	index := uint64(p.TotalFunds)
	p.TotalFunds = total
	p.ActiveFunds = active
	p.LastUpdateTs = ts
	return index, nil
}

func (p *ProgramConfig) FundClosed(ts int64) error {
	active, err := fpmath.CheckedSubU32(p.ActiveFunds, 1)
	if err != nil {
		return err
	}
	p.ActiveFunds = active
	p.LastUpdateTs = ts
	return nil
}

func (p *ProgramConfig) SetPaused(paused bool, ts int64) {
	p.IsPaused = paused
	p.LastUpdateTs = ts
}

// UpdateAuthority replaces the authority, and the PnL caller unless it is uuid.Nil.
func (p *ProgramConfig) UpdateAuthority(authority uuid.UUID, pnlCaller uuid.UUID, ts int64) {
	p.Authority = authority
	if pnlCaller != uuid.Nil {
		p.AuthorizedPnLCaller = pnlCaller
	}
	p.LastUpdateTs = ts
}

// CanonicalBytes for deterministic hashing
func (p *ProgramConfig) CanonicalBytes() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, p.Authority[:]...)
	buf = append(buf, p.AuthorizedPnLCaller[:]...)
	buf = appendInt64LE(buf, int64(p.TotalFunds))
	buf = appendInt64LE(buf, int64(p.ActiveFunds))
	buf = appendBool(buf, p.IsPaused)
	return buf
}
