package projection

import (
	"context"
	"database/sql"
	"fmt"

	"NavLedger/internal/cache"
	"NavLedger/internal/core"
	"NavLedger/internal/persistence"

	"github.com/rs/zerolog"
)

// RebuildStatements returns the upserts that recreate every current-state
// projection row from a full engine snapshot.
func RebuildStatements(snap *core.SnapshotState) []Statement {
	seq := snap.Sequence
	var stmts []Statement
	if snap.Program != nil {
		stmts = append(stmts, programUpsert(snap.Program, seq))
	}
	for _, f := range snap.Funds {
		stmts = append(stmts, fundUpsert(f, seq))
	}
	for _, p := range snap.Positions {
		stmts = append(stmts, positionUpsert(p, seq))
	}
	if snap.Buffer != nil {
		stmts = append(stmts, insuranceUpsert(snap.Buffer, seq))
	}
	return stmts
}

// Rebuild replays the event log into a scratch engine and rewrites the
// current-state projections from it. nav_history is append-only and is kept.
func Rebuild(
	ctx context.Context,
	db *sql.DB,
	src persistence.EventSource,
	store cache.Store,
	logger zerolog.Logger,
) (int64, error) {
	scratch := core.NewEngine(1, nil, nil, nil, nil, logger)
	res, err := persistence.Recover(ctx, scratch, nil, src, nil, logger)
	if err != nil {
		return 0, fmt.Errorf("replay event log: %w", err)
	}
	snap := scratch.CreateSnapshotState()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`TRUNCATE projections.program`,
		`TRUNCATE projections.funds`,
		`TRUNCATE projections.lp_positions`,
		`TRUNCATE projections.insurance`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("truncate failed: %w", err)
		}
	}
	if err := Apply(ctx, tx, RebuildStatements(snap)); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (projection_name, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (projection_name) DO UPDATE SET last_sequence = $2, updated_at = NOW()
	`, WatermarkName, snap.Sequence); err != nil {
		return 0, fmt.Errorf("watermark update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if store != nil {
		if err := store.Del(ctx, rebuildKeys(snap)...); err != nil {
			logger.Warn().Err(err).Msg("cache flush after rebuild failed")
		}
	}

	logger.Info().Int64("events", res.Replayed).Int64("sequence", snap.Sequence).Msg("projection rebuild complete")
	return res.Replayed, nil
}

func rebuildKeys(snap *core.SnapshotState) []string {
	keys := []string{cache.InsuranceKey()}
	for _, f := range snap.Funds {
		keys = append(keys, cache.FundKey(f.ID))
	}
	for _, p := range snap.Positions {
		keys = append(keys, cache.PositionKey(p.FundID, p.Investor), cache.InvestorKey(p.Investor))
	}
	return keys
}
