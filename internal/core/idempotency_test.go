package core_test

import (
	"fmt"
	"testing"

	"PerpCore/internal/core"
)

func TestIdempotencyChecker_DetectsDuplicates(t *testing.T) {
	ic := core.NewIdempotencyChecker(10)

	if ic.IsDuplicate("tx-1") {
		t.Error("unseen key should not be a duplicate")
	}
	ic.MarkProcessed("tx-1")
	if !ic.IsDuplicate("tx-1") {
		t.Error("processed key should be a duplicate")
	}
}

func TestIdempotencyChecker_EvictsOldest(t *testing.T) {
	ic := core.NewIdempotencyChecker(3)
	for i := 0; i < 4; i++ {
		ic.MarkProcessed(fmt.Sprintf("tx-%d", i))
	}

	if ic.IsDuplicate("tx-0") {
		t.Error("oldest key should have been evicted")
	}
	for i := 1; i < 4; i++ {
		if !ic.IsDuplicate(fmt.Sprintf("tx-%d", i)) {
			t.Errorf("tx-%d should still be tracked", i)
		}
	}
	if ic.Evictions() != 1 {
		t.Errorf("got %d evictions, want 1", ic.Evictions())
	}
}

func TestIdempotencyChecker_LookupPromotes(t *testing.T) {
	ic := core.NewIdempotencyChecker(2)
	ic.MarkProcessed("tx-a")
	ic.MarkProcessed("tx-b")

	// Touch tx-a so tx-b becomes the eviction candidate.
	ic.IsDuplicate("tx-a")
	ic.MarkProcessed("tx-c")

	if !ic.IsDuplicate("tx-a") {
		t.Error("promoted key should survive eviction")
	}
	if ic.IsDuplicate("tx-b") {
		t.Error("least recently used key should have been evicted")
	}
}

func TestIdempotencyChecker_WarmAndKeysRoundTrip(t *testing.T) {
	ic := core.NewIdempotencyChecker(10)
	ic.MarkProcessed("tx-1")
	ic.MarkProcessed("tx-2")

	warmed := core.NewIdempotencyChecker(10)
	warmed.Warm(ic.Keys())

	if !warmed.IsDuplicate("tx-1") || !warmed.IsDuplicate("tx-2") {
		t.Error("warmed checker should know every captured key")
	}
	if warmed.Size() != 2 {
		t.Errorf("got size %d, want 2", warmed.Size())
	}
}

func TestIdempotencyChecker_KeysMostRecentFirst(t *testing.T) {
	ic := core.NewIdempotencyChecker(10)
	ic.MarkProcessed("tx-1")
	ic.MarkProcessed("tx-2")

	keys := ic.Keys()
	if len(keys) != 2 || keys[0] != "tx-2" || keys[1] != "tx-1" {
		t.Errorf("got %v, want [tx-2 tx-1]", keys)
	}
}
