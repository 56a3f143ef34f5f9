package cache_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"NavLedger/internal/cache"

	"github.com/google/uuid"
)

func exerciseStore(t *testing.T, s cache.Store) {
	t.Helper()
	ctx := context.Background()
	key := cache.FundKey(uuid.New())

	if _, err := s.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("empty get = %v, want miss", err)
	}
	if err := s.Set(ctx, key, []byte(`{"nav":"1.1"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, key)
	if err != nil || string(got) != `{"nav":"1.1"}` {
		t.Fatalf("get = %q, %v", got, err)
	}
	if err := s.Del(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("get after del = %v, want miss", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, cache.NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := cache.NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), 10*time.Second)
	now = now.Add(9 * time.Second)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("before expiry: %v", err)
	}
	now = now.Add(time.Second)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("at expiry: %v, want miss", err)
	}
	if s.Len() != 0 {
		t.Errorf("expired entry kept, len = %d", s.Len())
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := cache.Connect(context.Background(), addr, 0)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer rdb.Close()
	exerciseStore(t, cache.NewRedisStore(rdb))
}

func TestKeysAreDistinct(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	keys := map[string]bool{
		cache.FundKey(a):        true,
		cache.PositionKey(a, b): true,
		cache.PositionKey(b, a): true,
		cache.InvestorKey(a):    true,
		cache.InsuranceKey():    true,
	}
	if len(keys) != 5 {
		t.Errorf("key collision: %v", keys)
	}
}
