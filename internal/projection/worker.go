package projection

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"NavLedger/internal/cache"
	"NavLedger/internal/core"
	"NavLedger/internal/observability"
	"NavLedger/internal/persistence"

	"github.com/rs/zerolog"
)

// WatermarkName is the watermark row owned by the live projection worker.
const WatermarkName = "main"

// ProjectionWorker updates projection tables from processed events.
// The projection channel drops on overflow; a lagging or failed projection
// is repaired with Rebuild from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	cache     cache.Store
	headSeq   func() int64
	metrics   *observability.Metrics
	logger    zerolog.Logger
	lastSeq   atomic.Int64
}

func NewProjectionWorker(
	db *sql.DB,
	inputChan <-chan core.CoreOutput,
	store cache.Store,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		cache:     store,
		metrics:   metrics,
		logger:    logger,
	}
}

// TrackHead sets the source of the core sequence used for the lag gauge.
func (pw *ProjectionWorker) TrackHead(head func() int64) {
	pw.headSeq = head
}

// LastSequence returns the last sequence the worker processed.
func (pw *ProjectionWorker) LastSequence() int64 {
	return pw.lastSeq.Load()
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}
			if output.Envelope == nil {
				continue
			}

			if err := pw.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent and can be rebuilt.
				pw.logger.Warn().Err(err).Int64("sequence", output.Envelope.Sequence).Msg("projection update failed")
			}
			pw.lastSeq.Store(output.Envelope.Sequence)

			if pw.metrics != nil && pw.headSeq != nil {
				// headSeq is the next sequence to assign.
				pw.metrics.ProjectionLag.Set(float64(pw.headSeq() - 1 - pw.lastSeq.Load()))
			}
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output core.CoreOutput) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := Apply(ctx, tx, Statements(output)); err != nil {
		return err
	}
	if err := writeWatermark(ctx, tx, WatermarkName, output.Envelope.Sequence); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if pw.metrics != nil {
		pw.metrics.ProjectionUpdateDur.WithLabelValues("all").Observe(time.Since(start).Seconds())
	}

	pw.invalidate(ctx, output)
	return nil
}

// Apply executes stmts in order on ex.
func Apply(ctx context.Context, ex persistence.Execer, stmts []Statement) error {
	for _, s := range stmts {
		if _, err := ex.ExecContext(ctx, s.Query, s.Args...); err != nil {
			return fmt.Errorf("%s projection: %w", s.Name, err)
		}
	}
	return nil
}

func (pw *ProjectionWorker) invalidate(ctx context.Context, output core.CoreOutput) {
	if pw.cache == nil {
		return
	}
	for view, keys := range InvalidationKeys(output) {
		if err := pw.cache.Del(ctx, keys...); err != nil {
			pw.logger.Warn().Err(err).Str("view", view).Msg("cache invalidation failed")
			continue
		}
		if pw.metrics != nil {
			pw.metrics.CacheInvalidations.WithLabelValues(view).Add(float64(len(keys)))
		}
	}
}

func writeWatermark(ctx context.Context, ex persistence.Execer, name string, seq int64) error {
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO projections.watermark (projection_name, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (projection_name) DO UPDATE SET last_sequence = $2, updated_at = NOW()
		WHERE projections.watermark.last_sequence < $2
	`, name, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}
	return nil
}
