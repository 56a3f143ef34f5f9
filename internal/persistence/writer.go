package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"NavLedger/internal/core"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EventLogWriter writes events and journals to Postgres using multi-row INSERT.
// Both writes go through the caller's Execer so one transaction covers a batch.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	FundID         *string
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// JournalRow represents a row in event_log.journal
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
	Timestamp     int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// DB returns the pool the writer opens transactions on.
func (w *EventLogWriter) DB() *sql.DB {
	return w.db
}

// RowsFromOutput flattens one core output into its event row and journal rows.
func RowsFromOutput(out core.CoreOutput) (EventRow, []JournalRow) {
	env := out.Envelope
	row := EventRow{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Payload:        env.Payload,
		StateHash:      append([]byte(nil), env.StateHash[:]...),
		PrevHash:       append([]byte(nil), env.PrevHash[:]...),
		Timestamp:      env.Timestamp.UTC(),
		SourceSequence: env.SourceSequence,
	}
	if env.FundID != nil {
		id := env.FundID.String()
		row.FundID = &id
	}

	if out.Batch == nil {
		return row, nil
	}
	journals := make([]JournalRow, 0, len(out.Batch.Journals))
	for _, j := range out.Batch.Journals {
		journals = append(journals, JournalRow{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			Sequence:      j.Sequence,
			DebitAccount:  j.DebitAccount.AccountPath(),
			CreditAccount: j.CreditAccount.AccountPath(),
			AssetID:       uint16(j.AssetID),
			Amount:        j.Amount,
			JournalType:   int32(j.JournalType),
			Timestamp:     j.Timestamp,
		})
	}
	return row, journals
}

// WriteEventBatch writes a batch of events to event_log.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, ex Execer, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query, args := buildEventInsert(events)
	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch writes a batch of journal entries to event_log.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, ex Execer, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	query, args := buildJournalInsert(journals)
	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

const eventColumns = 9

func buildEventInsert(events []EventRow) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO event_log.events
		(sequence, event_type, idempotency_key, fund_id, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `)

	args := make([]any, 0, len(events)*eventColumns)
	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*eventColumns, eventColumns)
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.FundID,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	// Re-delivered batches after a partial failure are no-ops.
	sb.WriteString(" ON CONFLICT (sequence) DO NOTHING")
	return sb.String(), args
}

const journalColumns = 10

func buildJournalInsert(journals []JournalRow) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO event_log.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, asset_id, amount, journal_type, timestamp)
		VALUES `)

	args := make([]any, 0, len(journals)*journalColumns)
	for i, j := range journals {
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*journalColumns, journalColumns)
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.AssetID, j.Amount,
			j.JournalType, j.Timestamp,
		)
	}

	sb.WriteString(" ON CONFLICT (journal_id) DO NOTHING")
	return sb.String(), args
}

func writePlaceholders(sb *strings.Builder, base, n int) {
	sb.WriteByte('(')
	for k := 1; k <= n; k++ {
		if k > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+k)
	}
	sb.WriteByte(')')
}
