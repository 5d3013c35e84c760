package perperr

import "fmt"

// Code is the closed set of settlement failure codes. Every rejection path in
// the core surfaces exactly one of these; shell code may wrap but never
// invents new ones.
type Code int32

const (
	IllegalPositionTransitionEnlargingSyntheticHoldings Code = iota + 1
	IllegalPositionTransitionNoRiskReducedValue
	IllegalPositionTransitionReducingTotalValueRiskRatio
	InvalidAssetOraclePrice
	InvalidCollateralAssetID
	InvalidFulfillmentAssetsRatio
	InvalidFulfillmentFeeRatio
	InvalidFulfillmentInfo
	InvalidFundingTickTimestamp
	InvalidPublicKey
	InvalidSignature
	MissingGlobalFundingIndex
	MissingOraclePrice
	MissingSyntheticAssetID
	OutOfRangeAmount
	OutOfRangeBalance
	OutOfRangeFundingIndex
	OutOfRangePositiveAmount
	OutOfRangeTotalRisk
	OutOfRangeTotalValue
	SamePositionID
	TooManySyntheticAssetsInPosition
	TooManySyntheticAssetsInSystem
	UndeleveragablePosition
	UnfairDeleverage
	UnliquidatablePosition
	UnsortedOraclePrices
	Internal
	InvalidCollateralBalance
	ValidateFundingIndicesFailed
	ValidateAssetsConfigFailed
	UnknownTxType
	OutOfRangeOraclePrice
	OutOfRangeExternalOraclePrice
	InvalidOraclePriceTickTimestamp
	OutOfRangeOraclePriceTickTimestamp
	InvalidOracleMedianPrice
	InvalidTimestamp
	InvalidPositionID
)

func (c Code) String() string {
	switch c {
	case IllegalPositionTransitionEnlargingSyntheticHoldings:
		return "IllegalPositionTransitionEnlargingSyntheticHoldings"
	case IllegalPositionTransitionNoRiskReducedValue:
		return "IllegalPositionTransitionNoRiskReducedValue"
	case IllegalPositionTransitionReducingTotalValueRiskRatio:
		return "IllegalPositionTransitionReducingTotalValueRiskRatio"
	case InvalidAssetOraclePrice:
		return "InvalidAssetOraclePrice"
	case InvalidCollateralAssetID:
		return "InvalidCollateralAssetID"
	case InvalidFulfillmentAssetsRatio:
		return "InvalidFulfillmentAssetsRatio"
	case InvalidFulfillmentFeeRatio:
		return "InvalidFulfillmentFeeRatio"
	case InvalidFulfillmentInfo:
		return "InvalidFulfillmentInfo"
	case InvalidFundingTickTimestamp:
		return "InvalidFundingTickTimestamp"
	case InvalidPublicKey:
		return "InvalidPublicKey"
	case InvalidSignature:
		return "InvalidSignature"
	case MissingGlobalFundingIndex:
		return "MissingGlobalFundingIndex"
	case MissingOraclePrice:
		return "MissingOraclePrice"
	case MissingSyntheticAssetID:
		return "MissingSyntheticAssetID"
	case OutOfRangeAmount:
		return "OutOfRangeAmount"
	case OutOfRangeBalance:
		return "OutOfRangeBalance"
	case OutOfRangeFundingIndex:
		return "OutOfRangeFundingIndex"
	case OutOfRangePositiveAmount:
		return "OutOfRangePositiveAmount"
	case OutOfRangeTotalRisk:
		return "OutOfRangeTotalRisk"
	case OutOfRangeTotalValue:
		return "OutOfRangeTotalValue"
	case SamePositionID:
		return "SamePositionID"
	case TooManySyntheticAssetsInPosition:
		return "TooManySyntheticAssetsInPosition"
	case TooManySyntheticAssetsInSystem:
		return "TooManySyntheticAssetsInSystem"
	case UndeleveragablePosition:
		return "UndeleveragablePosition"
	case UnfairDeleverage:
		return "UnfairDeleverage"
	case UnliquidatablePosition:
		return "UnliquidatablePosition"
	case UnsortedOraclePrices:
		return "UnsortedOraclePrices"
	case Internal:
		return "Internal"
	case InvalidCollateralBalance:
		return "InvalidCollateralBalance"
	case ValidateFundingIndicesFailed:
		return "ValidateFundingIndicesFailed"
	case ValidateAssetsConfigFailed:
		return "ValidateAssetsConfigFailed"
	case UnknownTxType:
		return "UnknownTxType"
	case OutOfRangeOraclePrice:
		return "OutOfRangeOraclePrice"
	case OutOfRangeExternalOraclePrice:
		return "OutOfRangeExternalOraclePrice"
	case InvalidOraclePriceTickTimestamp:
		return "InvalidOraclePriceTickTimestamp"
	case OutOfRangeOraclePriceTickTimestamp:
		return "OutOfRangeOraclePriceTickTimestamp"
	case InvalidOracleMedianPrice:
		return "InvalidOracleMedianPrice"
	case InvalidTimestamp:
		return "InvalidTimestamp"
	case InvalidPositionID:
		return "InvalidPositionID"
	default:
		return fmt.Sprintf("Code(%d)", int32(c))
	}
}

// Error makes Code usable directly as an error value; callers compare with
// errors.Is or a plain == against the constants above.
func (c Code) Error() string {
	return "perperr: " + c.String()
}
