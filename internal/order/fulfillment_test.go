package order_test

import (
	"errors"
	"math/big"
	"testing"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/order"
	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

func fixtureHash(buying bool) state.Hash {
	h := order.FixtureHasher{}
	return h.HashLimitOrder(&order.LimitOrder{IsBuyingSynthetic: buying})
}

// ============================================================================
// Test: FulfillmentStore
// ============================================================================

func TestFulfillmentStore_UnknownReadsZero(t *testing.T) {
	s := order.NewFulfillmentStore()
	if got := s.GetFilledAmount(123); got.Sign() != 0 {
		t.Errorf("got %s, want 0", got)
	}
}

func TestFulfillmentStore_UpdateReturnsPrevious(t *testing.T) {
	s := order.NewFulfillmentStore()
	prev := s.Update(1, big.NewInt(10))
	if prev.Sign() != 0 {
		t.Errorf("got %s, want 0", prev)
	}
	prev = s.Update(1, big.NewInt(25))
	if prev.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("got %s, want 10", prev)
	}
}

func TestFulfillmentStore_IDsAscending(t *testing.T) {
	s := order.NewFulfillmentStore()
	for _, id := range []order.OrderID{9, 3, 6} {
		s.Update(id, big.NewInt(1))
	}
	ids := s.IDs()
	want := []order.OrderID{3, 6, 9}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

// ============================================================================
// Test: ExtractOrderID
// ============================================================================

func TestExtractOrderID_Deterministic(t *testing.T) {
	h := fixtureHash(true)
	first := order.ExtractOrderID(h)
	second := order.ExtractOrderID(h)
	if first != second {
		t.Errorf("got %d then %d", first, second)
	}
}

func TestExtractOrderID_DistinctHashesDistinctIDs(t *testing.T) {
	buy := order.ExtractOrderID(fixtureHash(true))
	sell := order.ExtractOrderID(fixtureHash(false))
	if buy == sell {
		t.Errorf("buy and sell hashes mapped to the same order id %d", buy)
	}
}

// ============================================================================
// Test: UpdateFulfillment
// ============================================================================

func TestUpdateFulfillment_AccumulatesAcrossFills(t *testing.T) {
	s := order.NewFulfillmentStore()
	h := fixtureHash(true)
	full := big.NewInt(100)

	if err := order.UpdateFulfillment(s, h, big.NewInt(60), full); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := order.UpdateFulfillment(s, h, big.NewInt(40), full); err != nil {
		t.Fatalf("second fill: %v", err)
	}

	id := order.ExtractOrderID(h)
	if got := s.GetFilledAmount(id); got.Cmp(full) != 0 {
		t.Errorf("got %s, want 100", got)
	}
}

func TestUpdateFulfillment_OverfillRejectedWithoutMutation(t *testing.T) {
	s := order.NewFulfillmentStore()
	h := fixtureHash(true)
	full := big.NewInt(100)

	if err := order.UpdateFulfillment(s, h, big.NewInt(60), full); err != nil {
		t.Fatalf("first fill: %v", err)
	}

	err := order.UpdateFulfillment(s, h, big.NewInt(41), full)
	if !errors.Is(err, perperr.OutOfRangeAmount) {
		t.Fatalf("got %v, want OutOfRangeAmount", err)
	}

	// The rejection must leave the ledger at the prior fill level.
	id := order.ExtractOrderID(h)
	if got := s.GetFilledAmount(id); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("got %s, want 60 after rejected overfill", got)
	}
}

func TestUpdateFulfillment_NegativeAmountRejected(t *testing.T) {
	s := order.NewFulfillmentStore()
	err := order.UpdateFulfillment(s, fixtureHash(true), big.NewInt(-1), big.NewInt(100))
	if !errors.Is(err, perperr.OutOfRangeAmount) {
		t.Errorf("got %v, want OutOfRangeAmount", err)
	}
}

func TestUpdateFulfillment_FullAmountAboveBoundRejected(t *testing.T) {
	s := order.NewFulfillmentStore()
	err := order.UpdateFulfillment(s, fixtureHash(true), big.NewInt(1), fpmath.AmountUpperBound)
	if !errors.Is(err, perperr.OutOfRangeAmount) {
		t.Errorf("got %v, want OutOfRangeAmount", err)
	}
}
