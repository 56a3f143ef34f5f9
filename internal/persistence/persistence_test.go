package persistence_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/event"
	"NavLedger/internal/persistence"
	"NavLedger/internal/testutil"

	"github.com/rs/zerolog"
)

func TestPendingMigrations(t *testing.T) {
	files := fstest.MapFS{
		"000002_projections.up.sql":   {Data: []byte("SELECT 2")},
		"000001_event_log.up.sql":     {Data: []byte("SELECT 1")},
		"000001_event_log.down.sql":   {Data: []byte("SELECT 0")},
		"000002_projections.down.sql": {Data: []byte("SELECT 0")},
		"README.md":                   {Data: []byte("notes")},
	}

	got, err := persistence.PendingMigrations(files, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "000001_event_log.up.sql" || got[1] != "000002_projections.up.sql" {
		t.Fatalf("pending = %v", got)
	}

	got, err = persistence.PendingMigrations(files, map[string]bool{"000001": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "000002_projections.up.sql" {
		t.Fatalf("pending after 000001 = %v", got)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := persistence.PendingMigrations(persistence.Migrations(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) == 0 {
		t.Fatal("no embedded migrations")
	}
	for _, up := range ups {
		down := strings.Replace(up, ".up.sql", ".down.sql", 1)
		if _, err := persistence.Migrations().Open(down); err != nil {
			t.Errorf("%s has no down migration: %v", up, err)
		}
	}
}

func TestRowsFromOutput(t *testing.T) {
	e, persistChan, _ := testutil.NewEngine()
	testutil.ApplyScenario(t, e)
	outputs := testutil.Drain(persistChan)

	var deposit core.CoreOutput
	for _, o := range outputs {
		if o.Envelope.EventType == event.EventTypeDeposit {
			deposit = o
			break
		}
	}
	if deposit.Envelope == nil {
		t.Fatal("no deposit output")
	}

	row, journals := persistence.RowsFromOutput(deposit)
	if row.EventType != "deposit" || row.Sequence != deposit.Envelope.Sequence {
		t.Fatalf("row = %+v", row)
	}
	if row.FundID == nil || *row.FundID != testutil.FundID.String() {
		t.Errorf("fund id = %v", row.FundID)
	}
	if len(row.StateHash) != 32 || len(row.PrevHash) != 32 {
		t.Errorf("hash lengths = %d/%d", len(row.StateHash), len(row.PrevHash))
	}
	if len(journals) != 2 {
		t.Fatalf("deposit journals = %d, want 2", len(journals))
	}
	for _, j := range journals {
		if j.Sequence != row.Sequence || j.Amount <= 0 {
			t.Errorf("journal = %+v", j)
		}
	}
	if !strings.HasPrefix(journals[0].DebitAccount, "fund:") {
		t.Errorf("deposit debit = %s, want the fund vault", journals[0].DebitAccount)
	}

	var decoded event.Deposit
	if err := json.Unmarshal(row.Payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.AmountE6 != 100_000_000 {
		t.Errorf("payload amount = %d", decoded.AmountE6)
	}
}

func TestDecodeEvent(t *testing.T) {
	row := persistence.EventRow{
		Sequence:  7,
		EventType: "pnl_recorded",
		Payload:   []byte(`{"event_id":"k1","signer":"00000000-0000-0000-0000-0000000000b1","timestamp":5,"fund_id":"00000000-0000-0000-0000-0000000000f1","delta_e6":-42}`),
	}
	evt, err := persistence.DecodeEvent(row)
	if err != nil {
		t.Fatal(err)
	}
	pnl, ok := evt.(*event.PnLRecorded)
	if !ok {
		t.Fatalf("decoded %T", evt)
	}
	if pnl.DeltaE6 != -42 || pnl.IdempotencyKey() != "k1" || pnl.FundID != testutil.FundID {
		t.Errorf("decoded = %+v", pnl)
	}

	if _, err := persistence.DecodeEvent(persistence.EventRow{EventType: "margin_call"}); err == nil {
		t.Error("unknown event type decoded")
	}
	if _, err := persistence.DecodeEvent(persistence.EventRow{EventType: "deposit", Payload: []byte("{")}); err == nil {
		t.Error("truncated payload decoded")
	}
}

// memLog is an in-memory event log built from persisted outputs.
type memLog struct {
	rows []persistence.EventRow
}

func (m *memLog) LoadEventsFrom(_ context.Context, from int64, limit int) ([]persistence.EventRow, error) {
	var out []persistence.EventRow
	for _, r := range m.rows {
		if r.Sequence >= from && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func logOf(outputs []core.CoreOutput) *memLog {
	m := &memLog{}
	for _, o := range outputs {
		row, _ := persistence.RowsFromOutput(o)
		m.rows = append(m.rows, row)
	}
	return m
}

func TestColdRecoveryReplaysWholeLog(t *testing.T) {
	live, persistChan, _ := testutil.NewEngine()
	testutil.ApplyScenario(t, live)
	log := logOf(testutil.Drain(persistChan))

	fresh, freshPersist, _ := testutil.NewEngine()
	res, err := persistence.Recover(context.Background(), fresh, nil, log, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if res.Replayed != int64(len(log.rows)) {
		t.Errorf("replayed %d of %d", res.Replayed, len(log.rows))
	}
	if res.StateHash != live.GetStateHash() || res.NextSequence != live.GetSequence() {
		t.Errorf("recovered tip %x@%d, live %x@%d", res.StateHash, res.NextSequence, live.GetStateHash(), live.GetSequence())
	}
	if n := len(testutil.Drain(freshPersist)); n != 0 {
		t.Errorf("replay emitted %d outputs", n)
	}
}

func TestWarmRecoveryFromSnapshot(t *testing.T) {
	live, persistChan, _ := testutil.NewEngine()
	events := testutil.Scenario()
	half := len(events) / 2
	for _, evt := range events[:half] {
		testutil.MustApply(t, live, evt)
	}

	// Round-trip the snapshot through its stored encoding.
	raw, err := json.Marshal(persistence.SnapshotFromState(live.CreateSnapshotState(), time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	var snap persistence.SnapshotData
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	if want := events[half-1].EventTimestamp(); snap.Clock != want {
		t.Errorf("snapshot clock = %d, want %d", snap.Clock, want)
	}

	for _, evt := range events[half:] {
		testutil.MustApply(t, live, evt)
	}
	log := logOf(testutil.Drain(persistChan))

	fresh, _, _ := testutil.NewEngine()
	res, err := persistence.Recover(context.Background(), fresh, &snap, log, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if res.SnapshotSequence != int64(half) {
		t.Errorf("snapshot sequence = %d, want %d", res.SnapshotSequence, half)
	}
	if res.Replayed != int64(len(events)-half) {
		t.Errorf("replayed = %d, want %d", res.Replayed, len(events)-half)
	}
	if res.StateHash != live.GetStateHash() {
		t.Errorf("recovered hash %x, live %x", res.StateHash, live.GetStateHash())
	}
	if fresh.Clock() != live.Clock() {
		t.Errorf("recovered clock = %d, live %d", fresh.Clock(), live.Clock())
	}

	// The recovered engine still rejects a redelivery from before the snapshot.
	out, err := fresh.ProcessEvent(events[2])
	if err != nil || !out.Duplicate {
		t.Errorf("redelivered deposit = %+v, %v", out, err)
	}
}

func TestRecoveryDetectsTamperedLog(t *testing.T) {
	live, persistChan, _ := testutil.NewEngine()
	testutil.ApplyScenario(t, live)
	log := logOf(testutil.Drain(persistChan))

	log.rows[4].StateHash[0] ^= 0xff
	fresh, _, _ := testutil.NewEngine()
	if _, err := persistence.Recover(context.Background(), fresh, nil, log, nil, zerolog.Nop()); err == nil {
		t.Fatal("tampered state hash accepted")
	}

	gapped := logOf(nil)
	gapped.rows = append(gapped.rows, log.rows[0], log.rows[2])
	fresh, _, _ = testutil.NewEngine()
	if _, err := persistence.Recover(context.Background(), fresh, nil, gapped, nil, zerolog.Nop()); err == nil {
		t.Fatal("gap in the event log accepted")
	}
}
