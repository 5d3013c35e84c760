package executor

import (
	"math/big"

	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

// NoSyntheticDeltaAssetID marks a position update that moves collateral
// only, such as the fee leg. It must be paired with a zero synthetic delta.
const NoSyntheticDeltaAssetID state.AssetID = -1

// checkAssetTradable validates that the target synthetic asset can be traded
// under the current snapshots: either it is the no-movement sentinel with a
// zero delta, or both an oracle price and a global funding index exist.
func checkAssetTradable(syntheticAssetID state.AssetID, syntheticDelta *big.Int, indices *state.FundingIndicesInfo, prices *state.OraclePrices) error {
	if syntheticAssetID == NoSyntheticDeltaAssetID {
		if syntheticDelta.Sign() == 0 {
			return nil
		}
		return perperr.Internal
	}
	if _, ok := prices.Price(syntheticAssetID); !ok {
		return perperr.MissingOraclePrice
	}
	if _, ok := indices.Index(syntheticAssetID); !ok {
		return perperr.MissingGlobalFundingIndex
	}
	return nil
}

// UpdatePosition applies collateral and synthetic deltas to a position and
// validates the transition. Funding is settled first, so the transition is
// judged against the funded position.
//
// If requestPublicKey is zero the stored position's key acts instead; when
// the stored position is empty too, only a true no-op (both deltas zero) is
// permitted. Otherwise the request key must match the stored key or the
// stored position must be empty.
//
// On failure the funded (but not yet updated) position is still returned so
// callers can audit the point of failure; on success it is returned beside
// the updated position for the same reason.
func UpdatePosition(
	initial *state.Position,
	requestPublicKey state.PublicKey,
	collateralDelta *big.Int,
	syntheticAssetID state.AssetID,
	syntheticDelta *big.Int,
	indices *state.FundingIndicesInfo,
	prices *state.OraclePrices,
	general *state.GeneralConfig,
) (updated, funded *state.Position, err error) {
	funded, err = state.ApplyFunding(initial, indices)
	if err != nil {
		return nil, initial.Clone(), err
	}

	if err = checkAssetTradable(syntheticAssetID, syntheticDelta, indices, prices); err != nil {
		return nil, funded, err
	}

	publicKey := requestPublicKey
	if requestPublicKey.IsZero() {
		if initial.PublicKey.IsZero() {
			// No key on either side: the position cannot be mutated,
			// only left alone.
			if collateralDelta.Sign() != 0 || syntheticDelta.Sign() != 0 {
				return nil, funded, perperr.InvalidPublicKey
			}
			return funded.Clone(), funded, nil
		}
		publicKey = initial.PublicKey
	} else {
		if err = state.CheckRequestPublicKey(initial.PublicKey, requestPublicKey); err != nil {
			return nil, funded, err
		}
	}

	withCollateral, err := state.AddCollateral(funded, collateralDelta, publicKey)
	if err != nil {
		return nil, funded, err
	}

	updated, err = state.AddAsset(withCollateral, indices, syntheticAssetID, syntheticDelta, publicKey)
	if err != nil {
		return nil, funded, err
	}

	if err = state.CheckValidTransition(updated, funded, prices, general); err != nil {
		return nil, funded, err
	}

	return updated, funded, nil
}

// updatePositionInStore runs UpdatePosition against the stored position and
// writes the result back on success. The stored entry is untouched on
// failure.
func updatePositionInStore(
	positions *state.PositionStore,
	positionID state.PositionID,
	requestPublicKey state.PublicKey,
	collateralDelta *big.Int,
	syntheticAssetID state.AssetID,
	syntheticDelta *big.Int,
	indices *state.FundingIndicesInfo,
	prices *state.OraclePrices,
	general *state.GeneralConfig,
) (updated, funded *state.Position, err error) {
	initial := positions.Get(positionID)
	updated, funded, err = UpdatePosition(
		initial, requestPublicKey,
		collateralDelta, syntheticAssetID, syntheticDelta,
		indices, prices, general,
	)
	if err != nil {
		return nil, funded, err
	}
	positions.Update(positionID, updated)
	return updated, funded, nil
}
