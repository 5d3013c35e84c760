package state

import (
	"math/big"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/perperr"
)

// GetStatus computes a position's total value and total risk.
//
// Total value starts at the collateral balance scaled to 32.32 and
// accumulates balance * price for every held asset with an oracle price
// (a signed 96.32 quantity per asset). Total risk accumulates
// abs(asset_value) * risk_factor for every held asset that is a configured
// synthetic (unsigned 128.64). Either exceeding its bound after the fold is
// a range failure.
func GetStatus(position *Position, oraclePrices *OraclePrices, general *GeneralConfig) (totalValue, totalRisk *big.Int, err error) {
	totalValue = fpmath.ToFxp32(position.CollateralBalance)
	totalRisk = new(big.Int)

	for i := range position.Assets {
		asset := &position.Assets[i]

		valueRep := new(big.Int)
		if price, ok := oraclePrices.Price(asset.AssetID); ok {
			valueRep.Mul(asset.Balance, price)
			totalValue.Add(totalValue, valueRep)
		}

		if info, ok := general.SyntheticAssetInfoFor(asset.AssetID); ok {
			riskRep := new(big.Int).Abs(valueRep)
			riskRep.Mul(riskRep, info.RiskFactor)
			totalRisk.Add(totalRisk, riskRep)
		}
	}

	if !fpmath.InRange(totalValue, fpmath.TotalValueLowerBoundFxp, fpmath.TotalValueUpperBoundFxp) {
		return nil, nil, perperr.OutOfRangeTotalValue
	}
	if totalRisk.Cmp(fpmath.TotalRiskUpperBound) >= 0 {
		return nil, nil, perperr.OutOfRangeTotalRisk
	}

	return totalValue, totalRisk, nil
}
