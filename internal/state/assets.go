package state

import (
	"math/big"
	"sort"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/perperr"
)

// addAssetToList upserts delta at assetID inside a sorted sparse asset list
// and returns the resulting list. A new asset starts from zero balance with
// its cached index looked up fresh from the global table; an asset whose
// balance nets to zero is removed entirely.
func addAssetToList(assets []PositionAsset, global *FundingIndicesInfo, assetID AssetID, delta *big.Int) ([]PositionAsset, error) {
	found := -1
	for i := range assets {
		if assets[i].AssetID == assetID {
			found = i
			break
		}
	}

	oldBalance := new(big.Int)
	var fundingIndex int64
	if found >= 0 {
		oldBalance = assets[found].Balance
		fundingIndex = assets[found].CachedFundingIndex
	} else {
		idx, ok := global.Index(assetID)
		if !ok {
			return nil, perperr.Internal
		}
		fundingIndex = idx
	}

	newBalance := new(big.Int).Add(oldBalance, delta)
	if err := CheckValidBalance(newBalance); err != nil {
		return nil, err
	}

	if newBalance.Sign() == 0 {
		out := make([]PositionAsset, 0, len(assets)-1)
		out = append(out, assets[:found]...)
		out = append(out, assets[found+1:]...)
		return out, nil
	}

	if found >= 0 {
		assets[found].Balance = newBalance
		return assets, nil
	}

	out := append(assets, PositionAsset{
		AssetID:            assetID,
		Balance:            newBalance,
		CachedFundingIndex: fundingIndex,
	})
	// Keep the ascending asset id invariant the transition validator
	// depends on.
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

// AddAsset changes one asset balance of a position by delta (possibly
// negative). A zero delta is a no-op returning a clone, which permits the
// "no synthetic movement" fee leg. If the position is empty the result takes
// the given public key.
func AddAsset(position *Position, global *FundingIndicesInfo, assetID AssetID, delta *big.Int, publicKey PublicKey) (*Position, error) {
	if delta.Sign() == 0 {
		return position.Clone(), nil
	}

	assets, err := addAssetToList(cloneAssets(position.Assets), global, assetID, delta)
	if err != nil {
		return nil, err
	}

	// Each call adds at most one asset, so comparing against max+1 with
	// equality is the same as checking len <= max.
	if len(assets) == fpmath.PositionMaxSupportedNAssets+1 {
		return nil, perperr.TooManySyntheticAssetsInPosition
	}

	return NewMaybeEmptyPosition(publicKey, position.CollateralBalance, assets, position.FundingTimestamp), nil
}
