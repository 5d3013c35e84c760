// internal/math/fixedpoint.go
package math

import "math/big"

// Settlement quantities are arbitrary-precision integers with an explicit
// binary scale tracked by convention: 32.32 for collateral/prices/funding
// indices, 96.32 for per-asset values, 128.64 for risk. Never floats —
// results must be bit-identical across runs and platforms.

const (
	// Shift32 is the fractional width of the 32.32 representation.
	Shift32 = 32

	// PositiveAmountLowerBound is the smallest accepted order/fill amount.
	// Amounts below it would permit order replay and arbitrary actual fees.
	PositiveAmountLowerBound = 1

	// PositionMaxSupportedNAssets caps the distinct synthetic assets a
	// single position may hold.
	PositionMaxSupportedNAssets = 1 << 6
)

// Shared bound constants. Treated as read-only; never mutate.
var (
	// FXP32One is the 32.32 representation of 1.
	FXP32One = new(big.Int).Lsh(big.NewInt(1), Shift32)

	// A valid balance satisfies BalanceLowerBound <= b < BalanceUpperBound.
	BalanceUpperBound = new(big.Int).Lsh(big.NewInt(1), 63)
	BalanceLowerBound = new(big.Int).Neg(BalanceUpperBound)

	// AmountUpperBound bounds order amounts and actual fills (exclusive).
	AmountUpperBound = new(big.Int).Lsh(big.NewInt(1), 64)

	// Total value bounds in the shifted (96.32) representation:
	// [-(2^63 << 32), 2^63 << 32).
	TotalValueUpperBoundFxp = new(big.Int).Lsh(big.NewInt(1), 63+Shift32)
	TotalValueLowerBoundFxp = new(big.Int).Neg(TotalValueUpperBoundFxp)

	// TotalRiskUpperBound bounds the (128.64) risk accumulator (exclusive).
	TotalRiskUpperBound = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	// SignedMessageBound is the packing domain of order message hashes.
	SignedMessageBound = new(big.Int).Lsh(big.NewInt(1), 251)

	// OrderIDUpperBound bounds extracted order ids (exclusive).
	OrderIDUpperBound = new(big.Int).Lsh(big.NewInt(1), 64)

	// RangeCheckBound is the width of the packed right field (2^128).
	RangeCheckBound = new(big.Int).Lsh(big.NewInt(1), 128)
)

// ToFxp32 scales an integer quantity into the 32.32 representation.
func ToFxp32(x *big.Int) *big.Int {
	return new(big.Int).Lsh(x, Shift32)
}

// FloorDivFxp32 converts a 32.32 quantity back to an integer, rounding
// toward negative infinity. Funding relies on this: systematically rounding
// down means rounding can only destroy collateral, never mint it.
func FloorDivFxp32(x *big.Int) *big.Int {
	// big.Int.Div is Euclidean division; for a positive divisor that is
	// exactly floor division.
	return new(big.Int).Div(x, FXP32One)
}

// InRange reports lower <= x < upper.
func InRange(x, lower, upper *big.Int) bool {
	return x.Cmp(lower) >= 0 && x.Cmp(upper) < 0
}

// Clone returns an independent copy of x. A nil input maps to zero.
func Clone(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
