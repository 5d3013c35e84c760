package state

import (
	"math/big"
	"time"
)

// CollateralAssetInfo describes the unique collateral asset of the system.
type CollateralAssetInfo struct {
	AssetID AssetID
}

// FeePositionInfo identifies the position all fees are paid to.
type FeePositionInfo struct {
	PositionID PositionID
	PublicKey  PublicKey
}

// SyntheticAssetInfo describes one tradable synthetic asset.
type SyntheticAssetInfo struct {
	AssetID AssetID
	// 32.32 fixed point risk factor, used to decide whether a position is
	// well leveraged.
	RiskFactor *big.Int
	// Asset ids the oracle price providers sign on.
	OraclePriceSignedAssetIDs []AssetID
	// Minimum number of signatures required on a price.
	OraclePriceQuorum uint64
	// Accepted oracle signer keys.
	OraclePriceSigners []PublicKey
}

// TimestampValidationConfig bounds the age of price and funding inputs.
type TimestampValidationConfig struct {
	PriceValidityPeriod   time.Duration
	FundingValidityPeriod time.Duration
}

// GeneralConfig is the static system configuration. Immutable for the
// lifetime of a batch; passed explicitly through every call.
type GeneralConfig struct {
	CollateralAssetInfo CollateralAssetInfo
	FeePositionInfo     FeePositionInfo
	SyntheticAssetsInfo []SyntheticAssetInfo
	// Heights of the Merkle trees the external committer maintains.
	PositionsTreeHeight uint64
	OrdersTreeHeight    uint64
	Timestamps          TimestampValidationConfig
}

// SyntheticAssetInfoFor returns the configured info for assetID.
func (g *GeneralConfig) SyntheticAssetInfoFor(assetID AssetID) (*SyntheticAssetInfo, bool) {
	for i := range g.SyntheticAssetsInfo {
		if g.SyntheticAssetsInfo[i].AssetID == assetID {
			return &g.SyntheticAssetsInfo[i], true
		}
	}
	return nil, false
}

// BatchConfig is the per-batch execution configuration.
type BatchConfig struct {
	General GeneralConfig
	// Orders expiring before this instant are rejected by the order
	// verification collaborator.
	MinExpirationTimestamp int64
}
