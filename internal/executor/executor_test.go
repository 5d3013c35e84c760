package executor_test

import (
	"errors"
	"math/big"
	"testing"

	"PerpCore/internal/executor"
	"PerpCore/internal/order"
	"PerpCore/internal/perperr"
	"PerpCore/internal/testutil"
)

func newExecutor() *executor.TradeExecutor {
	return executor.NewTradeExecutor(order.FixtureHasher{}, order.NoopVerifier{})
}

// ============================================================================
// Test: reference trade settlement
// ============================================================================

func TestExecuteTrade_ReferenceScenario(t *testing.T) {
	carried := testutil.MakeState()
	batch := testutil.TestBatchConfig()

	trade := testutil.ReferenceTrade()
	if err := newExecutor().ExecuteTrade(carried, batch, trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buyer := carried.Positions.Get(testutil.PartyAPositionID)
	if buyer.CollateralBalance.Cmp(big.NewInt(-15025000000)) != 0 {
		t.Errorf("buyer collateral: got %s, want -15025000000", buyer.CollateralBalance)
	}
	if got := buyer.AssetBalance(testutil.BTCAssetID); got.Cmp(big.NewInt(100000000)) != 0 {
		t.Errorf("buyer synthetic: got %s, want 100000000", got)
	}

	seller := carried.Positions.Get(testutil.PartyBPositionID)
	if seller.CollateralBalance.Cmp(big.NewInt(34987500000)) != 0 {
		t.Errorf("seller collateral: got %s, want 34987500000", seller.CollateralBalance)
	}
	if got := seller.AssetBalance(testutil.BTCAssetID); got.Cmp(big.NewInt(-100000000)) != 0 {
		t.Errorf("seller synthetic: got %s, want -100000000", got)
	}

	// Fee position collects both fees: 25,000,000 + 12,500,000.
	feePos := carried.Positions.Get(testutil.FeePositionID)
	if feePos.CollateralBalance.Cmp(big.NewInt(37500000)) != 0 {
		t.Errorf("fee collateral: got %s, want 37500000", feePos.CollateralBalance)
	}
	if len(feePos.Assets) != 0 {
		t.Errorf("fee position should hold no synthetics, got %d", len(feePos.Assets))
	}
}

func TestExecuteTrade_RecordsFulfillments(t *testing.T) {
	carried := testutil.MakeState()
	trade := testutil.ReferenceTrade()

	if err := newExecutor().ExecuteTrade(carried, testutil.TestBatchConfig(), trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hasher := order.FixtureHasher{}
	buyID := order.ExtractOrderID(hasher.HashLimitOrder(&trade.PartyAOrder))
	sellID := order.ExtractOrderID(hasher.HashLimitOrder(&trade.PartyBOrder))

	if got := carried.Orders.GetFilledAmount(buyID); got.Cmp(big.NewInt(100000000)) != 0 {
		t.Errorf("buy fill: got %s, want 100000000", got)
	}
	if got := carried.Orders.GetFilledAmount(sellID); got.Cmp(big.NewInt(100000000)) != 0 {
		t.Errorf("sell fill: got %s, want 100000000", got)
	}
}

func TestExecuteTrade_ReplayOverfillsBuyOrder(t *testing.T) {
	carried := testutil.MakeState()
	batch := testutil.TestBatchConfig()
	exec := newExecutor()

	if err := exec.ExecuteTrade(carried, batch, testutil.ReferenceTrade()); err != nil {
		t.Fatalf("first settlement: %v", err)
	}

	// The buy order's declared 100,000,000 synthetic is fully consumed;
	// resubmitting the trade must hit the fulfillment cap.
	err := exec.ExecuteTrade(carried, batch, testutil.ReferenceTrade())
	if !errors.Is(err, perperr.OutOfRangeAmount) {
		t.Errorf("got %v, want OutOfRangeAmount", err)
	}
}

// ============================================================================
// Test: rejection paths
// ============================================================================

func TestExecuteTrade_ZeroSyntheticRejected(t *testing.T) {
	trade := testutil.ReferenceTrade()
	trade.ActualSynthetic = big.NewInt(0)
	trade.ActualCollateral = big.NewInt(0)
	trade.ActualAFee = big.NewInt(0)
	trade.ActualBFee = big.NewInt(0)

	err := newExecutor().ExecuteTrade(testutil.MakeState(), testutil.TestBatchConfig(), trade)
	if !errors.Is(err, perperr.OutOfRangePositiveAmount) {
		t.Errorf("got %v, want OutOfRangePositiveAmount", err)
	}
}

func TestExecuteTrade_WrongCollateralAssetRejected(t *testing.T) {
	trade := testutil.ReferenceTrade()
	trade.PartyAOrder.AssetIDCollateral = 99

	err := newExecutor().ExecuteTrade(testutil.MakeState(), testutil.TestBatchConfig(), trade)
	if !errors.Is(err, perperr.InvalidCollateralAssetID) {
		t.Errorf("got %v, want InvalidCollateralAssetID", err)
	}
}

func TestExecuteTrade_FeePositionAsPartyRejected(t *testing.T) {
	trade := testutil.ReferenceTrade()
	trade.PartyAOrder.PositionID = testutil.FeePositionID

	err := newExecutor().ExecuteTrade(testutil.MakeState(), testutil.TestBatchConfig(), trade)
	if !errors.Is(err, perperr.InvalidPositionID) {
		t.Errorf("got %v, want InvalidPositionID", err)
	}
}

func TestExecuteTrade_MismatchedSyntheticAssetRejected(t *testing.T) {
	trade := testutil.ReferenceTrade()
	trade.PartyBOrder.AssetIDSynthetic = testutil.ETHAssetID

	err := newExecutor().ExecuteTrade(testutil.MakeState(), testutil.TestBatchConfig(), trade)
	if !errors.Is(err, perperr.Internal) {
		t.Errorf("got %v, want Internal", err)
	}
}

func TestExecuteTrade_BothOrdersSameDirectionRejected(t *testing.T) {
	trade := testutil.ReferenceTrade()
	trade.PartyBOrder.IsBuyingSynthetic = true

	err := newExecutor().ExecuteTrade(testutil.MakeState(), testutil.TestBatchConfig(), trade)
	if !errors.Is(err, perperr.Internal) {
		t.Errorf("got %v, want Internal", err)
	}
}

func TestExecuteTrade_RejectionLeavesPartiesUntouched(t *testing.T) {
	carried := testutil.MakeState()

	trade := testutil.ReferenceTrade()
	trade.PartyAOrder.AssetIDCollateral = 99

	if err := newExecutor().ExecuteTrade(carried, testutil.TestBatchConfig(), trade); err == nil {
		t.Fatal("expected rejection")
	}

	buyer := carried.Positions.Get(testutil.PartyAPositionID)
	if buyer.CollateralBalance.Cmp(big.NewInt(10000000000)) != 0 {
		t.Errorf("buyer collateral changed: %s", buyer.CollateralBalance)
	}
	seller := carried.Positions.Get(testutil.PartyBPositionID)
	if seller.CollateralBalance.Cmp(big.NewInt(10000000000)) != 0 {
		t.Errorf("seller collateral changed: %s", seller.CollateralBalance)
	}
}

func TestExecuteLimitOrder_WrongSignerRejected(t *testing.T) {
	carried := testutil.MakeState()
	trade := testutil.ReferenceTrade()
	// Party A's order claims to act on party B's position.
	trade.PartyAOrder.PositionID = testutil.PartyBPositionID

	err := newExecutor().ExecuteTrade(carried, testutil.TestBatchConfig(), trade)
	if !errors.Is(err, perperr.InvalidPublicKey) {
		t.Errorf("got %v, want InvalidPublicKey", err)
	}
}
