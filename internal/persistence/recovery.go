package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/event"
	"NavLedger/internal/observability"

	"github.com/rs/zerolog"
)

// ReplayBatchSize is the page size used when reading the event log back.
const ReplayBatchSize = 1000

// EventSource pages through the event log in sequence order.
type EventSource interface {
	LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error)
}

// RecoveryResult summarizes a warm or cold start.
type RecoveryResult struct {
	SnapshotSequence int64 // 0 on a cold start
	Replayed         int64
	NextSequence     int64
	StateHash        [32]byte
}

// DecodeEvent rebuilds the typed event stored in a log row.
func DecodeEvent(row EventRow) (event.Event, error) {
	et, ok := event.ParseEventType(row.EventType)
	if !ok {
		return nil, fmt.Errorf("sequence %d: unknown event type %q", row.Sequence, row.EventType)
	}
	evt, _ := event.New(et)
	if err := json.Unmarshal(row.Payload, evt); err != nil {
		return nil, fmt.Errorf("sequence %d: decode %s payload: %w", row.Sequence, row.EventType, err)
	}
	return evt, nil
}

// Recover restores snap (when non-nil) into engine and replays every logged
// event after it. Each replayed event must land on its logged sequence, chain
// from the previous hash and reproduce its logged state hash.
func Recover(
	ctx context.Context,
	engine *core.Engine,
	snap *SnapshotData,
	src EventSource,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) (RecoveryResult, error) {
	start := time.Now()
	var res RecoveryResult

	if snap != nil {
		st, err := snap.ToState()
		if err != nil {
			return res, err
		}
		engine.RestoreFromSnapshot(st)
		res.SnapshotSequence = snap.Sequence
		logger.Info().Int64("sequence", snap.Sequence).Msg("restored state from snapshot")
	}

	from := engine.GetSequence()
	for {
		rows, err := src.LoadEventsFrom(ctx, from, ReplayBatchSize)
		if err != nil {
			return res, fmt.Errorf("load events from seq %d: %w", from, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if err := replayRow(engine, row); err != nil {
				return res, err
			}
			res.Replayed++
		}
		from = rows[len(rows)-1].Sequence + 1

		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	res.NextSequence = engine.GetSequence()
	res.StateHash = engine.GetStateHash()

	if metrics != nil {
		metrics.ReplayDuration.Set(time.Since(start).Seconds())
	}
	logger.Info().
		Int64("replayed", res.Replayed).
		Int64("next_sequence", res.NextSequence).
		Dur("duration", time.Since(start)).
		Msg("recovery complete")

	return res, nil
}

func replayRow(engine *core.Engine, row EventRow) error {
	if want := engine.GetSequence(); row.Sequence != want {
		return fmt.Errorf("event log gap: expected sequence %d, found %d", want, row.Sequence)
	}

	tip := engine.GetStateHash()
	if len(row.PrevHash) > 0 && !bytes.Equal(row.PrevHash, tip[:]) {
		return fmt.Errorf("hash chain broken at sequence %d: prev %x, engine tip %x", row.Sequence, row.PrevHash, tip)
	}

	evt, err := DecodeEvent(row)
	if err != nil {
		return err
	}

	var expected [32]byte
	copy(expected[:], row.StateHash)
	return engine.Replay(evt, expected)
}
