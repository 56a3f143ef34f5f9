package core_test

import (
	"errors"
	"testing"

	"NavLedger/internal/core"

	"github.com/rs/zerolog"
)

type stubDB struct {
	seen map[string]bool
	err  error
	hits int
}

func (s *stubDB) IsDuplicate(eventType, key string) (bool, error) {
	s.hits++
	if s.err != nil {
		return false, s.err
	}
	return s.seen[core.CompositeKey(eventType, key)], nil
}

func TestIdempotencyLRU_Eviction(t *testing.T) {
	lru := core.NewIdempotencyLRU(2)
	lru.Add("a")
	lru.Add("b")
	lru.Contains("a") // a is now most recent
	if evicted := lru.Add("c"); !evicted {
		t.Fatal("expected eviction at capacity")
	}
	if lru.Contains("b") {
		t.Error("least recently used key survived")
	}
	if !lru.Contains("a") || !lru.Contains("c") {
		t.Error("recent keys evicted")
	}
	if got := lru.GetAllKeys(); len(got) != 2 || got[1] != "c" {
		t.Errorf("keys oldest-first = %v", got)
	}
}

func TestIdempotencyChecker_Tiers(t *testing.T) {
	db := &stubDB{seen: map[string]bool{"deposit:old": true}}
	ic := core.NewIdempotencyChecker(16, db, nil, zerolog.Nop())

	if !ic.IsDuplicate("deposit", "old") {
		t.Fatal("database tier missed a logged key")
	}
	if !ic.IsDuplicate("deposit", "old") || db.hits != 1 {
		t.Errorf("second lookup should be served by the LRU, db hits = %d", db.hits)
	}

	if ic.IsDuplicate("deposit", "new") {
		t.Fatal("unseen key reported as duplicate")
	}
	ic.MarkProcessed("deposit", "new")
	if !ic.IsDuplicate("deposit", "new") {
		t.Error("processed key not remembered")
	}
	if ic.IsDuplicate("redemption", "new") {
		t.Error("keys must be scoped by event type")
	}

	db.err = errors.New("db down")
	if ic.IsDuplicate("deposit", "unknown") {
		t.Error("db failure must not reject events")
	}
}

func TestSequenceValidator(t *testing.T) {
	sv := core.NewSequenceValidator(nil)

	if err := sv.ValidateSequence("fund:a", 0, false); err != nil {
		t.Errorf("unordered event rejected: %v", err)
	}
	if err := sv.ValidateSequence("fund:a", 1, false); err != nil {
		t.Fatal(err)
	}
	if err := sv.ValidateSequence("fund:a", 3, false); err == nil {
		t.Error("gap accepted")
	}
	if err := sv.ValidateSequence("fund:a", 1, false); err == nil {
		t.Error("stale new event accepted")
	}
	if err := sv.ValidateSequence("fund:a", 1, true); err != nil {
		t.Errorf("stale duplicate rejected: %v", err)
	}
	if err := sv.ValidateSequence("fund:b", 1, false); err != nil {
		t.Errorf("partitions are independent: %v", err)
	}

	sv.RestorePartition("fund:c", 10)
	if got := sv.GetAllPartitions(); got["fund:a"] != 2 || got["fund:c"] != 10 {
		t.Errorf("partitions = %v", got)
	}
}
