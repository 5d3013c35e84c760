package order_test

import (
	"errors"
	"math/big"
	"testing"

	"PerpCore/internal/order"
	"PerpCore/internal/perperr"
)

func buyOrder() *order.LimitOrder {
	return &order.LimitOrder{
		AmountSynthetic:   big.NewInt(100),
		AmountCollateral:  big.NewInt(1000),
		AmountFee:         big.NewInt(10),
		IsBuyingSynthetic: true,
	}
}

func sellOrder() *order.LimitOrder {
	o := buyOrder()
	o.IsBuyingSynthetic = false
	return o
}

// ============================================================================
// Test: fee ratio
// ============================================================================

func TestValidateFairness_FeeAtLimitPasses(t *testing.T) {
	// actual_fee/actual_collateral == amount_fee/amount_collateral.
	err := order.ValidateFairness(buyOrder(), big.NewInt(500), big.NewInt(50), big.NewInt(5))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateFairness_FeeAboveLimitRejected(t *testing.T) {
	err := order.ValidateFairness(buyOrder(), big.NewInt(500), big.NewInt(50), big.NewInt(6))
	if !errors.Is(err, perperr.InvalidFulfillmentFeeRatio) {
		t.Errorf("got %v, want InvalidFulfillmentFeeRatio", err)
	}
}

// ============================================================================
// Test: price ratio, buy side
// ============================================================================

func TestValidateFairness_BuyAtLimitPrice(t *testing.T) {
	// Paying exactly 10 collateral per synthetic, the declared limit.
	// The one-unit allowance admits it: (1000-1)*100 < 1000*100.
	err := order.ValidateFairness(buyOrder(), big.NewInt(1000), big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateFairness_BuyOverpayingRejected(t *testing.T) {
	// Paying 1001 collateral for 100 synthetic exceeds the allowance:
	// (1001-1)*100 >= 1000*100.
	err := order.ValidateFairness(buyOrder(), big.NewInt(1001), big.NewInt(100), big.NewInt(0))
	if !errors.Is(err, perperr.InvalidFulfillmentAssetsRatio) {
		t.Errorf("got %v, want InvalidFulfillmentAssetsRatio", err)
	}
}

func TestValidateFairness_BuyZeroCollateralPasses(t *testing.T) {
	// Receiving synthetic for free is trivially fair to the buyer.
	err := order.ValidateFairness(buyOrder(), big.NewInt(0), big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ============================================================================
// Test: price ratio, sell side
// ============================================================================

func TestValidateFairness_SellAtLimitPrice(t *testing.T) {
	err := order.ValidateFairness(sellOrder(), big.NewInt(1000), big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateFairness_SellUnderpaidRejected(t *testing.T) {
	// Selling 100 synthetic for only 989 collateral: even with the
	// one-unit allowance, 100*1000 > 100*(989+1).
	err := order.ValidateFairness(sellOrder(), big.NewInt(989), big.NewInt(100), big.NewInt(0))
	if !errors.Is(err, perperr.InvalidFulfillmentAssetsRatio) {
		t.Errorf("got %v, want InvalidFulfillmentAssetsRatio", err)
	}
}

func TestValidateFairness_SellOneUnitAllowance(t *testing.T) {
	// 999 collateral for 100 synthetic is one unit short of the limit;
	// the allowance absorbs it: 100*1000 <= 100*(999+1).
	err := order.ValidateFairness(sellOrder(), big.NewInt(999), big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
