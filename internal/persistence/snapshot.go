package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/custody"
	"NavLedger/internal/state"

	"github.com/google/uuid"
)

// SnapshotFormatVersion tags the JSON layout of SnapshotData.
const SnapshotFormatVersion = 1

// SnapshotManager creates and loads state snapshots for recovery.
// A snapshot holds the full engine state plus dedup and ordering state; on
// restart the engine restores it and replays events after Sequence.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the stored form of core.SnapshotState.
type SnapshotData struct {
	Sequence        int64                  `json:"sequence"`
	StateHash       []byte                 `json:"state_hash"`
	Clock           int64                  `json:"clock"`
	Program         *state.ProgramConfig   `json:"program,omitempty"`
	Funds           []*state.Fund          `json:"funds"`
	Positions       []*state.LPPosition    `json:"positions"`
	Buffer          *state.InsuranceBuffer `json:"buffer,omitempty"`
	Balances        []BalanceEntry         `json:"balances"`
	SequenceState   map[string]int64       `json:"sequence_state"`
	IdempotencyKeys []string               `json:"idempotency_keys"`
	CreatedAt       time.Time              `json:"created_at"`
}

// BalanceEntry is one account balance. Account keys are structs, so the
// balance map is stored as a list.
type BalanceEntry struct {
	Account custody.AccountKey `json:"account"`
	Path    string             `json:"path"`
	Balance int64              `json:"balance"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SnapshotFromState converts an engine snapshot for storage.
func SnapshotFromState(s *core.SnapshotState, createdAt time.Time) *SnapshotData {
	data := &SnapshotData{
		Sequence:        s.Sequence,
		StateHash:       append([]byte(nil), s.StateHash[:]...),
		Clock:           s.Clock,
		Program:         s.Program,
		Funds:           s.Funds,
		Positions:       s.Positions,
		Buffer:          s.Buffer,
		Balances:        make([]BalanceEntry, 0, len(s.Balances)),
		SequenceState:   s.SequenceState,
		IdempotencyKeys: s.IdempotencyKeys,
		CreatedAt:       createdAt.UTC(),
	}
	for key, balance := range s.Balances {
		data.Balances = append(data.Balances, BalanceEntry{
			Account: key,
			Path:    key.AccountPath(),
			Balance: balance,
		})
	}
	return data
}

// ToState converts a stored snapshot back into engine form.
func (d *SnapshotData) ToState() (*core.SnapshotState, error) {
	if len(d.StateHash) != 32 {
		return nil, fmt.Errorf("snapshot %d: state hash is %d bytes", d.Sequence, len(d.StateHash))
	}
	s := &core.SnapshotState{
		Sequence:        d.Sequence,
		Clock:           d.Clock,
		Program:         d.Program,
		Funds:           d.Funds,
		Positions:       d.Positions,
		Buffer:          d.Buffer,
		Balances:        make(map[custody.AccountKey]int64, len(d.Balances)),
		SequenceState:   d.SequenceState,
		IdempotencyKeys: d.IdempotencyKeys,
	}
	copy(s.StateHash[:], d.StateHash)
	for _, b := range d.Balances {
		s.Balances[b.Account] = b.Balance
	}
	return s, nil
}

// SaveSnapshot persists a snapshot and returns its encoded size.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, uuid.New(), snap.Sequence, data, snap.StateHash, SnapshotFormatVersion, len(data), snap.CreatedAt)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil on a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE AND format_version = $1
		ORDER BY sequence DESC
		LIMIT 1
	`, SnapshotFormatVersion)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarkVerified marks a snapshot as verified after an integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads up to limit events starting at fromSequence.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, fund_id, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fundID sql.NullString
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &fundID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		if fundID.Valid {
			e.FundID = &fundID.String
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log, 0 when empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// TakeSnapshot captures the engine state, stores it and marks it verified.
func (sm *SnapshotManager) TakeSnapshot(ctx context.Context, engine *core.Engine) (*SnapshotData, int, error) {
	snap := SnapshotFromState(engine.CreateSnapshotState(), time.Now())
	size, err := sm.SaveSnapshot(ctx, snap)
	if err != nil {
		return nil, 0, fmt.Errorf("save snapshot: %w", err)
	}
	// Taken from live state under the engine lock, so it is consistent by construction.
	if err := sm.MarkVerified(ctx, snap.Sequence); err != nil {
		return nil, 0, fmt.Errorf("mark snapshot verified: %w", err)
	}
	return snap, size, nil
}
