package state_test

import (
	"errors"
	"math/big"
	"testing"

	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

func testIndices() *state.FundingIndicesInfo {
	return &state.FundingIndicesInfo{
		FundingIndices: []state.FundingIndex{
			{AssetID: 0, FundingIndex: 1},
			{AssetID: 1, FundingIndex: 100},
		},
	}
}

func TestAddAsset_CreatesHolding(t *testing.T) {
	p := state.NewPosition(testKey(1), big.NewInt(1000), nil, 0)

	next, err := state.AddAsset(p, testIndices(), 0, big.NewInt(50), testKey(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(next.Assets))
	}
	if next.Assets[0].Balance.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("got balance %s, want 50", next.Assets[0].Balance)
	}
	// New holdings start from the current global index.
	if next.Assets[0].CachedFundingIndex != 1 {
		t.Errorf("got cached index %d, want 1", next.Assets[0].CachedFundingIndex)
	}
}

func TestAddAsset_RemovesZeroedHolding(t *testing.T) {
	p := state.NewPosition(testKey(1), big.NewInt(1000), []state.PositionAsset{
		{AssetID: 0, Balance: big.NewInt(50), CachedFundingIndex: 1},
	}, 0)

	next, err := state.AddAsset(p, testIndices(), 0, big.NewInt(-50), testKey(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Assets) != 0 {
		t.Errorf("zeroed holding should be removed, got %d assets", len(next.Assets))
	}
}

func TestAddAsset_ZeroDeltaIsNoop(t *testing.T) {
	p := state.NewPosition(testKey(1), big.NewInt(1000), nil, 0)

	// An asset id with no global index would otherwise fail; the zero
	// delta short-circuits before the lookup.
	next, err := state.AddAsset(p, testIndices(), 99, new(big.Int), testKey(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Assets) != 0 {
		t.Errorf("got %d assets, want 0", len(next.Assets))
	}
}

func TestAddAsset_UnknownFundingIndexFails(t *testing.T) {
	p := state.NewPosition(testKey(1), big.NewInt(1000), nil, 0)

	_, err := state.AddAsset(p, testIndices(), 99, big.NewInt(1), testKey(1))
	if !errors.Is(err, perperr.Internal) {
		t.Errorf("got %v, want Internal", err)
	}
}

func TestAddAsset_KeepsAscendingOrder(t *testing.T) {
	p := state.NewPosition(testKey(1), big.NewInt(1000), []state.PositionAsset{
		{AssetID: 1, Balance: big.NewInt(5), CachedFundingIndex: 100},
	}, 0)

	next, err := state.AddAsset(p, testIndices(), 0, big.NewInt(3), testKey(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(next.Assets))
	}
	if next.Assets[0].AssetID != 0 || next.Assets[1].AssetID != 1 {
		t.Errorf("assets not in ascending id order: %v, %v", next.Assets[0].AssetID, next.Assets[1].AssetID)
	}
}

func TestAddAsset_DoesNotMutateInput(t *testing.T) {
	p := state.NewPosition(testKey(1), big.NewInt(1000), []state.PositionAsset{
		{AssetID: 0, Balance: big.NewInt(50), CachedFundingIndex: 1},
	}, 0)

	if _, err := state.AddAsset(p, testIndices(), 0, big.NewInt(25), testKey(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Assets[0].Balance.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("input position mutated: %s", p.Assets[0].Balance)
	}
}
