package state

import (
	"math/big"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/perperr"
)

// applyFundingToAssets folds every held asset's funding delta into the
// collateral accumulator and rewrites its cached index to the global one.
// The funding per asset is (global_index - cached_index) * balance, a 32.32
// fixed-point quantity subtracted from collateralFxp (also 32.32).
func applyFundingToAssets(assets []PositionAsset, global *FundingIndicesInfo, collateralFxp *big.Int) (*big.Int, []PositionAsset, error) {
	out := make([]PositionAsset, 0, len(assets))
	for _, asset := range assets {
		globalIndex, ok := global.Index(asset.AssetID)
		if !ok {
			return nil, nil, perperr.MissingGlobalFundingIndex
		}

		deltaIndex := new(big.Int).Sub(big.NewInt(globalIndex), big.NewInt(asset.CachedFundingIndex))
		deltaFunding := deltaIndex.Mul(deltaIndex, asset.Balance)
		collateralFxp.Sub(collateralFxp, deltaFunding)

		out = append(out, PositionAsset{
			AssetID:            asset.AssetID,
			Balance:            fpmath.Clone(asset.Balance),
			CachedFundingIndex: globalIndex,
		})
	}
	return collateralFxp, out, nil
}

// ApplyFunding rolls the position's cached funding indices forward to the
// global snapshot and settles the accumulated funding against collateral.
//
// Collateral changes due to funding sum to zero across all positions before
// rounding; the result is floor-divided so rounding only ever destroys
// collateral. Example: computed funding a=-0.5, b=-0.5, c=1 settles as
// a=-1, b=-1, c=1 and the system loses one unit instead of minting one.
func ApplyFunding(position *Position, global *FundingIndicesInfo) (*Position, error) {
	collateralFxp, newAssets, err := applyFundingToAssets(
		position.Assets,
		global,
		fpmath.ToFxp32(position.CollateralBalance),
	)
	if err != nil {
		return nil, err
	}

	newCollateral := fpmath.FloorDivFxp32(collateralFxp)
	if !fpmath.InRange(newCollateral, fpmath.BalanceLowerBound, fpmath.BalanceUpperBound) {
		return nil, perperr.InvalidCollateralBalance
	}

	return NewPosition(position.PublicKey, newCollateral, newAssets, global.FundingTimestamp), nil
}
