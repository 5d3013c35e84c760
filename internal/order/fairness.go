package order

import (
	"math/big"

	"PerpCore/internal/perperr"
)

// ValidateFairness checks that an actual fill respects the limit order's
// declared price and fee ratios.
//
// The fee check enforces actual_fee / actual_collateral <=
// amount_fee / amount_collateral, cross-multiplied. The price check is
// direction dependent with a one-unit allowance in the order's favor,
// absorbing the integer-division truncation of external matching engines.
func ValidateFairness(limitOrder *LimitOrder, actualCollateral, actualSynthetic, actualFee *big.Int) error {
	lhs := new(big.Int).Mul(actualFee, limitOrder.AmountCollateral)
	rhs := new(big.Int).Mul(limitOrder.AmountFee, actualCollateral)
	if lhs.Cmp(rhs) > 0 {
		return perperr.InvalidFulfillmentFeeRatio
	}

	if limitOrder.IsBuyingSynthetic {
		actualSold := actualCollateral
		actualBought := actualSynthetic
		amountSell := limitOrder.AmountCollateral
		amountBuy := limitOrder.AmountSynthetic

		if actualSold.Sign() == 0 {
			return nil
		}

		// (actual_sold - 1) * amount_buy < amount_sell * actual_bought.
		soldLess := new(big.Int).Sub(actualSold, big.NewInt(1))
		lhs = soldLess.Mul(soldLess, amountBuy)
		rhs = new(big.Int).Mul(amountSell, actualBought)
		if lhs.Cmp(rhs) >= 0 {
			return perperr.InvalidFulfillmentAssetsRatio
		}
		return nil
	}

	actualSold := actualSynthetic
	actualBought := actualCollateral
	amountSell := limitOrder.AmountSynthetic
	amountBuy := limitOrder.AmountCollateral

	// actual_sold * amount_buy <= amount_sell * (actual_bought + 1).
	lhs = new(big.Int).Mul(actualSold, amountBuy)
	boughtMore := new(big.Int).Add(actualBought, big.NewInt(1))
	rhs = boughtMore.Mul(amountSell, boughtMore)
	if lhs.Cmp(rhs) > 0 {
		return perperr.InvalidFulfillmentAssetsRatio
	}
	return nil
}
