package executor

import (
	"math/big"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/order"
	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

var positiveAmountLowerBound = big.NewInt(fpmath.PositiveAmountLowerBound)

// TradeExecutor orchestrates limit-order fills against a carried state. The
// order hashing and verification collaborators are injected; everything else
// is pure deterministic state transition.
type TradeExecutor struct {
	hasher   order.Hasher
	verifier order.Verifier
}

func NewTradeExecutor(hasher order.Hasher, verifier order.Verifier) *TradeExecutor {
	return &TradeExecutor{hasher: hasher, verifier: verifier}
}

// ExecuteLimitOrder applies a single fill of limitOrder to the carried
// state: fairness and fulfillment bookkeeping first, then the fee leg into
// the fee position, then the full delta into the order's own position.
func (e *TradeExecutor) ExecuteLimitOrder(
	carried *CarriedState,
	batch *state.BatchConfig,
	limitOrder *order.LimitOrder,
	actualCollateral, actualSynthetic, actualFee *big.Int,
) error {
	general := &batch.General

	if limitOrder.PositionID == general.FeePositionInfo.PositionID {
		return perperr.InvalidPositionID
	}
	if limitOrder.AssetIDCollateral != general.CollateralAssetInfo.AssetID {
		return perperr.InvalidCollateralAssetID
	}

	// 0 < amount_collateral < AmountUpperBound and
	// 0 <= amount_fee < AmountUpperBound. amount_synthetic is bounded by
	// the fulfillment update below.
	if limitOrder.AmountCollateral.Cmp(positiveAmountLowerBound) < 0 ||
		limitOrder.AmountCollateral.Cmp(fpmath.AmountUpperBound) >= 0 {
		return perperr.OutOfRangePositiveAmount
	}
	if limitOrder.AmountFee.Sign() < 0 ||
		limitOrder.AmountFee.Cmp(fpmath.AmountUpperBound) >= 0 {
		return perperr.OutOfRangePositiveAmount
	}

	// actual_synthetic > 0, the anti-replay floor: a zero fill would leave
	// the fulfillment ledger unchanged and could be submitted forever.
	if actualSynthetic.Cmp(positiveAmountLowerBound) < 0 {
		return perperr.OutOfRangePositiveAmount
	}

	if err := order.ValidateFairness(limitOrder, actualCollateral, actualSynthetic, actualFee); err != nil {
		return err
	}

	messageHash := e.hasher.HashLimitOrder(limitOrder)
	if err := e.verifier.VerifyOrder(limitOrder, messageHash, batch.MinExpirationTimestamp); err != nil {
		return err
	}
	if err := order.UpdateFulfillment(carried.Orders, messageHash, actualSynthetic, limitOrder.AmountSynthetic); err != nil {
		return err
	}

	var collateralDelta, syntheticDelta *big.Int
	if limitOrder.IsBuyingSynthetic {
		collateralDelta = new(big.Int).Neg(actualCollateral)
		collateralDelta.Sub(collateralDelta, actualFee)
		syntheticDelta = fpmath.Clone(actualSynthetic)
	} else {
		collateralDelta = new(big.Int).Sub(actualCollateral, actualFee)
		syntheticDelta = new(big.Int).Neg(actualSynthetic)
	}

	// Fee leg: pure collateral movement into the fee position.
	if _, _, err := updatePositionInStore(
		carried.Positions,
		general.FeePositionInfo.PositionID,
		general.FeePositionInfo.PublicKey,
		actualFee,
		NoSyntheticDeltaAssetID,
		new(big.Int),
		carried.GlobalFundingIndices,
		carried.OraclePrices,
		general,
	); err != nil {
		return err
	}

	// The order's own leg.
	if _, _, err := updatePositionInStore(
		carried.Positions,
		limitOrder.PositionID,
		limitOrder.Base.PublicKey,
		collateralDelta,
		limitOrder.AssetIDSynthetic,
		syntheticDelta,
		carried.GlobalFundingIndices,
		carried.OraclePrices,
		general,
	); err != nil {
		return err
	}

	return nil
}

// ExecuteTrade settles a matched two-party trade: the buyer leg first, then
// the seller leg against the same carried state, so the seller's validation
// sees the buyer's already-applied effects.
//
// Both legs must succeed or the trade fails. The buyer leg's store mutation
// is not rolled back if the seller leg fails; the batch executor is expected
// to pre-validate or drop the batch on error.
func (e *TradeExecutor) ExecuteTrade(carried *CarriedState, batch *state.BatchConfig, trade *order.Trade) error {
	if trade.ActualCollateral.Cmp(fpmath.AmountUpperBound) >= 0 {
		return perperr.Internal
	}
	if trade.ActualAFee.Cmp(fpmath.AmountUpperBound) >= 0 {
		return perperr.Internal
	}
	if trade.ActualBFee.Cmp(fpmath.AmountUpperBound) >= 0 {
		return perperr.Internal
	}

	buyer := &trade.PartyAOrder
	seller := &trade.PartyBOrder
	if !buyer.IsBuyingSynthetic || seller.IsBuyingSynthetic {
		return perperr.Internal
	}
	if buyer.AssetIDSynthetic != seller.AssetIDSynthetic {
		return perperr.Internal
	}

	if err := e.ExecuteLimitOrder(carried, batch, buyer, trade.ActualCollateral, trade.ActualSynthetic, trade.ActualAFee); err != nil {
		return err
	}
	return e.ExecuteLimitOrder(carried, batch, seller, trade.ActualCollateral, trade.ActualSynthetic, trade.ActualBFee)
}
