package testutil

import (
	"encoding/hex"
	"math/big"
	"time"

	"PerpCore/internal/executor"
	"PerpCore/internal/order"
	"PerpCore/internal/state"
)

// Reference scenario shared across test suites: two flat positions holding
// 10,000,000,000 collateral each trade 100,000,000 units of synthetic
// asset 0 for 25,000,000,000 collateral. After settlement the buyer holds
// -15,025,000,000 collateral and the seller 34,987,500,000.

const (
	PartyAPositionID state.PositionID = 10000
	PartyBPositionID state.PositionID = 10001
	FeePositionID    state.PositionID = 11111

	CollateralAssetID state.AssetID = 7
	BTCAssetID        state.AssetID = 0
	ETHAssetID        state.AssetID = 1
)

const (
	partyAPublicKeyHex = "df84035a8f7be2bc8d8a7f2d4a0be6c1e774f0a4c16aa0b112e64eb62c09698a"
	partyBPublicKeyHex = "f5705bf1a2e8688ba804744fecc915371896aa7c39521966a9a61945dcda5219"

	partyASignatureHex = "2ff1c4706c8eec9957357f188ca3b3cc4cac43eaccb4f1c17400ed0be3151706d97db8f7b52c9bb1bbcf0a5c8f40151748778f23af27e4afbe1e0234b8fdb201"
	partyBSignatureHex = "b04e7cc7980a8ff3e1d4768103f89543c0dc1690c39b058146f8a36c03dc19adee7d810bc3d619a80b59437d93b49205c0f08d4ccfe1ca1a156053815caaeb05"
)

// PartyAPublicKey returns the buyer's public key.
func PartyAPublicKey() state.PublicKey {
	return mustPublicKey(partyAPublicKeyHex)
}

// PartyBPublicKey returns the seller's public key.
func PartyBPublicKey() state.PublicKey {
	return mustPublicKey(partyBPublicKeyHex)
}

// TestGeneralConfig builds the reference system configuration: collateral
// asset 7, fee position 11111, three synthetics with ascending risk
// factors.
func TestGeneralConfig() state.GeneralConfig {
	return state.GeneralConfig{
		CollateralAssetInfo: state.CollateralAssetInfo{
			AssetID: CollateralAssetID,
		},
		FeePositionInfo: state.FeePositionInfo{
			PositionID: FeePositionID,
			PublicKey:  mustPublicKey(partyAPublicKeyHex),
		},
		SyntheticAssetsInfo: []state.SyntheticAssetInfo{
			{
				AssetID:           BTCAssetID,
				RiskFactor:        big.NewInt(214748365),
				OraclePriceQuorum: 1,
			},
			{
				AssetID:           ETHAssetID,
				RiskFactor:        big.NewInt(322122548),
				OraclePriceQuorum: 1,
			},
			{
				AssetID:           2,
				RiskFactor:        big.NewInt(429496730),
				OraclePriceQuorum: 1,
			},
		},
		PositionsTreeHeight: 64,
		OrdersTreeHeight:    64,
		Timestamps: state.TimestampValidationConfig{
			PriceValidityPeriod:   365 * 24 * time.Hour,
			FundingValidityPeriod: 7 * 24 * time.Hour,
		},
	}
}

// TestBatchConfig wraps TestGeneralConfig with an epoch-zero expiration
// floor so the fixture orders never expire.
func TestBatchConfig() *state.BatchConfig {
	return &state.BatchConfig{
		General:                TestGeneralConfig(),
		MinExpirationTimestamp: 0,
	}
}

// MakeState builds the reference carried state: positions 10000 and 10001
// with flat synthetic holdings, funding indices {0:1, 1:100} and oracle
// prices for both synthetics.
func MakeState() *executor.CarriedState {
	indices := &state.FundingIndicesInfo{
		FundingIndices: []state.FundingIndex{
			{AssetID: BTCAssetID, FundingIndex: 1},
			{AssetID: ETHAssetID, FundingIndex: 100},
		},
		FundingTimestamp: 0,
	}

	prices := &state.OraclePrices{
		Data: []state.OraclePrice{
			{AssetID: BTCAssetID, Price: big.NewInt(1073741824000)},
			{AssetID: ETHAssetID, Price: big.NewInt(1009900000000000)},
		},
	}

	carried := executor.NewCarriedState(indices, prices, 0)

	carried.Positions.Update(PartyAPositionID, state.NewPosition(
		mustPublicKey(partyAPublicKeyHex), big.NewInt(10000000000), nil, 0,
	))
	carried.Positions.Update(PartyBPositionID, state.NewPosition(
		mustPublicKey(partyBPublicKeyHex), big.NewInt(10000000000), nil, 0,
	))

	return carried
}

// ReferenceTrade builds the matched order pair for the reference scenario.
func ReferenceTrade() *order.Trade {
	return &order.Trade{
		PartyAOrder: order.LimitOrder{
			Base: order.OrderBase{
				Nonce:               1,
				PublicKey:           mustPublicKey(partyAPublicKeyHex),
				ExpirationTimestamp: 3608164305,
				Signature:           mustSignature(partyASignatureHex),
			},
			AmountSynthetic:   big.NewInt(100000000),
			AmountCollateral:  big.NewInt(25000000000),
			AmountFee:         big.NewInt(25000000),
			AssetIDSynthetic:  BTCAssetID,
			AssetIDCollateral: CollateralAssetID,
			PositionID:        PartyAPositionID,
			IsBuyingSynthetic: true,
			Type:              order.TypeLimitOrderWithFees,
		},
		PartyBOrder: order.LimitOrder{
			Base: order.OrderBase{
				Nonce:               1,
				PublicKey:           mustPublicKey(partyBPublicKeyHex),
				ExpirationTimestamp: 3407305306,
				Signature:           mustSignature(partyBSignatureHex),
			},
			AmountSynthetic:   big.NewInt(200000000),
			AmountCollateral:  big.NewInt(25000000000),
			AmountFee:         big.NewInt(25000000),
			AssetIDSynthetic:  BTCAssetID,
			AssetIDCollateral: CollateralAssetID,
			PositionID:        PartyBPositionID,
			IsBuyingSynthetic: false,
			Type:              order.TypeLimitOrderWithFees,
		},
		ActualCollateral: big.NewInt(25000000000),
		ActualSynthetic:  big.NewInt(100000000),
		ActualAFee:       big.NewInt(25000000),
		ActualBFee:       big.NewInt(12500000),
	}
}

func mustPublicKey(s string) state.PublicKey {
	var pk state.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(pk) {
		panic("bad fixture public key: " + s)
	}
	copy(pk[:], b)
	return pk
}

func mustSignature(s string) [64]byte {
	var sig [64]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(sig) {
		panic("bad fixture signature: " + s)
	}
	copy(sig[:], b)
	return sig
}
