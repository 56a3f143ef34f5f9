package query

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"NavLedger/internal/cache"
	"NavLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL bounds staleness if an invalidation is lost.
const DefaultCacheTTL = 30 * time.Second

// CachedQueryService serves current-state views from a cache.Store and
// falls through to the wrapped Reader on a miss. The projection worker
// deletes keys as it applies events. History and integrity reads are not cached.
type CachedQueryService struct {
	next    Reader
	store   cache.Store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ Reader = (*CachedQueryService)(nil)

func NewCachedQueryService(next Reader, store cache.Store, ttl time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *CachedQueryService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedQueryService{next: next, store: store, ttl: ttl, metrics: metrics, logger: logger}
}

func (c *CachedQueryService) GetFund(ctx context.Context, fundID uuid.UUID) (*FundResponse, error) {
	return readThrough(ctx, c, "fund", cache.FundKey(fundID), func() (*FundResponse, error) {
		return c.next.GetFund(ctx, fundID)
	})
}

func (c *CachedQueryService) GetPosition(ctx context.Context, fundID, investor uuid.UUID) (*PositionResponse, error) {
	return readThrough(ctx, c, "position", cache.PositionKey(fundID, investor), func() (*PositionResponse, error) {
		return c.next.GetPosition(ctx, fundID, investor)
	})
}

func (c *CachedQueryService) GetInvestorPositions(ctx context.Context, investor uuid.UUID) ([]PositionResponse, error) {
	return readThrough(ctx, c, "investor", cache.InvestorKey(investor), func() ([]PositionResponse, error) {
		return c.next.GetInvestorPositions(ctx, investor)
	})
}

func (c *CachedQueryService) GetInsurance(ctx context.Context) (*InsuranceResponse, error) {
	return readThrough(ctx, c, "insurance", cache.InsuranceKey(), func() (*InsuranceResponse, error) {
		return c.next.GetInsurance(ctx)
	})
}

func (c *CachedQueryService) GetNAVHistory(ctx context.Context, fundID uuid.UUID, limit int, before *int64) (*NAVHistoryResponse, error) {
	return c.next.GetNAVHistory(ctx, fundID, limit, before)
}

func (c *CachedQueryService) GetJournalHistory(ctx context.Context, accountPrefix string, limit int, before *int64) ([]JournalEntry, error) {
	return c.next.GetJournalHistory(ctx, accountPrefix, limit, before)
}

func (c *CachedQueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	return c.next.VerifyIntegrity(ctx)
}

// readThrough never fails because of the cache: store errors are logged and
// the read goes to the database. Errors from load are not cached.
func readThrough[T any](ctx context.Context, c *CachedQueryService, view, key string, load func() (T, error)) (T, error) {
	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if jerr := json.Unmarshal(raw, &v); jerr == nil {
			c.count(view, "hit")
			return v, nil
		}
		c.logger.Warn().Str("key", key).Msg("undecodable cache entry")
		c.count(view, "error")
	case errors.Is(err, cache.ErrMiss):
		c.count(view, "miss")
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		c.count(view, "error")
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return v, nil
}

func (c *CachedQueryService) count(view, result string) {
	if c.metrics != nil {
		c.metrics.CacheRequests.WithLabelValues(view, result).Inc()
	}
}
