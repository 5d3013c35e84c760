package order

import (
	"math/big"

	"PerpCore/internal/state"
)

// OrderID addresses a slot in the fulfillment store. Derived from the high
// bits of the order's message hash.
type OrderID uint64

// OrderBase carries the signing envelope common to all order kinds. The
// signature itself is verified by an external collaborator; the core treats
// it as opaque bytes.
type OrderBase struct {
	Nonce               uint64
	PublicKey           state.PublicKey
	ExpirationTimestamp int64
	Signature           [64]byte
}

// Type discriminates order kinds.
type Type int32

const (
	TypeLimitOrderWithFees Type = iota
)

func (t Type) String() string {
	switch t {
	case TypeLimitOrderWithFees:
		return "LimitOrderWithFees"
	default:
		return "Unknown"
	}
}

// LimitOrder is a signer's standing willingness to trade. The declared
// amounts are upper bounds for cumulative fills, not exact fill sizes.
type LimitOrder struct {
	Base              OrderBase
	AmountSynthetic   *big.Int
	AmountCollateral  *big.Int
	AmountFee         *big.Int
	AssetIDSynthetic  state.AssetID
	AssetIDCollateral state.AssetID
	PositionID        state.PositionID
	IsBuyingSynthetic bool
	Type              Type
}

// Trade is a matched pair of opposing limit orders plus the negotiated
// actual amounts for this fill. Party A buys the synthetic, party B sells.
type Trade struct {
	PartyAOrder      LimitOrder
	PartyBOrder      LimitOrder
	ActualCollateral *big.Int
	ActualSynthetic  *big.Int
	ActualAFee       *big.Int
	ActualBFee       *big.Int
}
