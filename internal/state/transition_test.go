package state_test

import (
	"errors"
	"math/big"
	"testing"

	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

// All transition tests run with price 2.0 and risk factor 1.0, so a
// position is well leveraged iff collateral + 2*balance >= 2*|balance|.
func transitionConfig() *state.GeneralConfig {
	return statusConfig(new(big.Int).Lsh(big.NewInt(1), 32))
}

func positionWith(collateral int64, balance int64) *state.Position {
	var assets []state.PositionAsset
	if balance != 0 {
		assets = []state.PositionAsset{
			{AssetID: 0, Balance: big.NewInt(balance), CachedFundingIndex: 0},
		}
	}
	return state.NewPosition(testKey(1), big.NewInt(collateral), assets, 0)
}

func TestCheckValidTransition_WellLeveragedAlwaysPasses(t *testing.T) {
	// The initial position is deeply underwater; the updated one is well
	// leveraged, so the transition passes without the ratio checks.
	initial := positionWith(-100, 20)
	updated := positionWith(1000, 10)

	if err := state.CheckValidTransition(updated, initial, statusPrices(), transitionConfig()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckValidTransition_EnlargingHoldingsRejected(t *testing.T) {
	initial := positionWith(-5, 0)
	updated := positionWith(-5, 10)

	err := state.CheckValidTransition(updated, initial, statusPrices(), transitionConfig())
	if !errors.Is(err, perperr.IllegalPositionTransitionEnlargingSyntheticHoldings) {
		t.Errorf("got %v, want IllegalPositionTransitionEnlargingSyntheticHoldings", err)
	}
}

func TestCheckValidTransition_SignFlipRejected(t *testing.T) {
	initial := positionWith(-5, 20)
	updated := positionWith(-5, -10)

	err := state.CheckValidTransition(updated, initial, statusPrices(), transitionConfig())
	if !errors.Is(err, perperr.IllegalPositionTransitionEnlargingSyntheticHoldings) {
		t.Errorf("got %v, want IllegalPositionTransitionEnlargingSyntheticHoldings", err)
	}
}

func TestCheckValidTransition_RatioDecreaseRejected(t *testing.T) {
	// initial: value 35, risk 40; updated: value 5, risk 20. The holdings
	// shrank but value sank disproportionately: 35/40 > 5/20.
	initial := positionWith(-5, 20)
	updated := positionWith(-15, 10)

	err := state.CheckValidTransition(updated, initial, statusPrices(), transitionConfig())
	if !errors.Is(err, perperr.IllegalPositionTransitionReducingTotalValueRiskRatio) {
		t.Errorf("got %v, want IllegalPositionTransitionReducingTotalValueRiskRatio", err)
	}
}

func TestCheckValidTransition_RatioImprovementPasses(t *testing.T) {
	// initial: value 35, risk 40; updated: value 19, risk 20. Still not
	// well leveraged, but 35/40 <= 19/20.
	initial := positionWith(-5, 20)
	updated := positionWith(-1, 10)

	if err := state.CheckValidTransition(updated, initial, statusPrices(), transitionConfig()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckValidTransition_ZeroRiskReducedValueRejected(t *testing.T) {
	// Flat positions on both sides with no risk: value must not decrease
	// below zero.
	initial := positionWith(10, 0)
	updated := positionWith(-5, 0)

	err := state.CheckValidTransition(updated, initial, statusPrices(), transitionConfig())
	if !errors.Is(err, perperr.IllegalPositionTransitionNoRiskReducedValue) {
		t.Errorf("got %v, want IllegalPositionTransitionNoRiskReducedValue", err)
	}
}
