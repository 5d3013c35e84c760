package state

import (
	"math/big"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/perperr"
)

// checkSmallerInSyntheticHoldings checks that updated is as safe as initial:
// no asset balance changed sign and no absolute value grew. Both asset lists
// are sorted by asset id, so a single merge pass suffices. An asset present
// only in initial shrank to zero, which is fine; an asset present only in
// updated grew from zero, which is not.
func checkSmallerInSyntheticHoldings(updated, initial *Position) error {
	i, j := 0, 0
	for i < len(initial.Assets) || j < len(updated.Assets) {
		if j == len(updated.Assets) {
			// Remaining initial assets were closed out.
			return nil
		}
		if i == len(initial.Assets) {
			return perperr.IllegalPositionTransitionEnlargingSyntheticHoldings
		}

		ini := &initial.Assets[i]
		upd := &updated.Assets[j]

		if upd.AssetID > ini.AssetID {
			// Initial asset absent from updated: balance went to zero.
			i++
			continue
		}
		if upd.AssetID < ini.AssetID {
			// Updated holds an asset the initial position did not.
			return perperr.IllegalPositionTransitionEnlargingSyntheticHoldings
		}

		// Stored assets never carry zero balances, so signs are meaningful.
		if upd.Balance.Sign() != ini.Balance.Sign() {
			return perperr.IllegalPositionTransitionEnlargingSyntheticHoldings
		}
		if upd.Balance.CmpAbs(ini.Balance) > 0 {
			return perperr.IllegalPositionTransitionEnlargingSyntheticHoldings
		}

		i++
		j++
	}
	return nil
}

// CheckValidTransition decides whether a position update is admissible.
// It is legal if either
//  1. the updated position is well leveraged (risk does not exceed value in
//     matching fixed-point scale), or
//  2. the holdings only shrank toward zero, the total_value/total_risk ratio
//     did not decrease, and — when the initial risk is zero, where the ratio
//     is undefined — the total value did not decrease.
func CheckValidTransition(updated, initial *Position, oraclePrices *OraclePrices, general *GeneralConfig) error {
	updatedTV, updatedTR, err := GetStatus(updated, oraclePrices, general)
	if err != nil {
		return err
	}

	// tv is 96.32 and tr is 128.64; scale tv by 2^32 to compare.
	if updatedTR.Cmp(fpmath.ToFxp32(updatedTV)) <= 0 {
		return nil
	}

	initialTV, initialTR, err := GetStatus(initial, oraclePrices, general)
	if err != nil {
		return err
	}

	if err := checkSmallerInSyntheticHoldings(updated, initial); err != nil {
		return err
	}

	// tv0/tr0 <= tv1/tr1 iff tv0*tr1 <= tv1*tr0; cross-multiplied to avoid
	// division.
	lhs := new(big.Int).Mul(initialTV, updatedTR)
	rhs := new(big.Int).Mul(updatedTV, initialTR)
	if lhs.Cmp(rhs) > 0 {
		return perperr.IllegalPositionTransitionReducingTotalValueRiskRatio
	}

	if initialTR.Sign() == 0 {
		// Having passed the holdings check with zero initial risk, the
		// updated risk is zero too; require value not to decrease.
		if initialTV.Cmp(updatedTV) > 0 {
			return perperr.IllegalPositionTransitionNoRiskReducedValue
		}
	}

	return nil
}
