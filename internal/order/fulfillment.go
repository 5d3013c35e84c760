package order

import (
	"fmt"
	"math/big"
	"sort"

	fpmath "PerpCore/internal/math"
	"PerpCore/internal/perperr"
	"PerpCore/internal/state"
)

// FulfillmentStore tracks the cumulative filled synthetic amount per order
// id. Get never fails: unknown ids read as zero. Update replaces a slot and
// returns the previous amount. This store is the sole anti-replay mechanism:
// each order's cumulative fill is monotonic and capped at its own declared
// maximum across arbitrarily many trades in a batch.
type FulfillmentStore struct {
	filled map[OrderID]*big.Int
}

func NewFulfillmentStore() *FulfillmentStore {
	return &FulfillmentStore{filled: make(map[OrderID]*big.Int)}
}

// GetFilledAmount returns the cumulative filled amount for id.
func (s *FulfillmentStore) GetFilledAmount(id OrderID) *big.Int {
	if v, ok := s.filled[id]; ok {
		return fpmath.Clone(v)
	}
	return new(big.Int)
}

// Update stores amount at id and returns the previous value.
func (s *FulfillmentStore) Update(id OrderID, amount *big.Int) *big.Int {
	prev := s.GetFilledAmount(id)
	s.filled[id] = fpmath.Clone(amount)
	return prev
}

// Len returns the number of orders with a recorded fill.
func (s *FulfillmentStore) Len() int {
	return len(s.filled)
}

// IDs returns the recorded order ids in ascending order.
func (s *FulfillmentStore) IDs() []OrderID {
	ids := make([]OrderID, 0, len(s.filled))
	for id := range s.filled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ExtractOrderID unpacks the order id from an order message hash.
//
// Reduced into the 251-bit signed-message domain, the hash is a packing of
// three fields:
//
//	+----------------+--------------------+----------------LSB-+
//	| order_id (64b) | middle_field (59b) | right_field (128b) |
//	+----------------+--------------------+--------------------+
//
// The decomposition is re-packed and compared against the input; a mismatch
// means the hash value itself is malformed, which is an upstream invariant
// break rather than user input, so it panics instead of returning an error.
func ExtractOrderID(messageHash state.Hash) OrderID {
	// Big-endian bytes to integer, then into the pedersen-sized domain.
	packed := new(big.Int).SetBytes(messageHash[:])
	packed.Mod(packed, fpmath.SignedMessageBound)

	orderIDShift := new(big.Int).Div(fpmath.SignedMessageBound, fpmath.OrderIDUpperBound)
	middleFieldBound := new(big.Int).Div(orderIDShift, fpmath.RangeCheckBound)

	orderID := new(big.Int).Div(packed, orderIDShift)
	rightField := new(big.Int).And(packed, new(big.Int).Sub(fpmath.RangeCheckBound, big.NewInt(1)))
	middleField := new(big.Int).Div(packed, fpmath.RangeCheckBound)
	middleField.And(middleField, new(big.Int).Sub(middleFieldBound, big.NewInt(1)))

	check := new(big.Int).Mul(orderID, orderIDShift)
	check.Add(check, new(big.Int).Mul(middleField, fpmath.RangeCheckBound))
	check.Add(check, rightField)
	if packed.Cmp(check) != 0 {
		panic(fmt.Sprintf("order message hash packing mismatch: %x", messageHash))
	}
	if middleField.Sign() < 0 || middleField.Cmp(middleFieldBound) >= 0 {
		panic(fmt.Sprintf("order message hash middle field out of bounds: %x", messageHash))
	}

	return OrderID(orderID.Uint64())
}

// UpdateFulfillment commits updateAmount against the order addressed by
// messageHash, enforcing that cumulative fills never exceed fullAmount.
// Rejections leave the store untouched.
func UpdateFulfillment(store *FulfillmentStore, messageHash state.Hash, updateAmount, fullAmount *big.Int) error {
	orderID := ExtractOrderID(messageHash)

	fulfilled := store.GetFilledAmount(orderID)
	remaining := new(big.Int).Sub(fullAmount, fulfilled)
	if updateAmount.Sign() < 0 || updateAmount.Cmp(remaining) > 0 {
		return perperr.OutOfRangeAmount
	}
	if fullAmount.Cmp(fpmath.AmountUpperBound) >= 0 {
		return perperr.OutOfRangeAmount
	}

	store.Update(orderID, fulfilled.Add(fulfilled, updateAmount))
	return nil
}
