package core

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"math/big"

	"PerpCore/internal/executor"
	"PerpCore/internal/order"
	"PerpCore/internal/state"
)

const GenesisHashSeed = "PerpCore:genesis:v1"

// StateHasher maintains the deterministic state-hash chain:
// state_hash[N] = SHA-256(prev_hash || sequence || state_digest).
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(GenesisHashSeed))}
}

// ComputeHash folds the next state digest into the chain and advances it.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(stateDigest)

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	h.prevHash = out
	return out
}

// PrevHash returns the current chain tip.
func (h *StateHasher) PrevHash() [32]byte {
	return h.prevHash
}

// SetPrevHash rewires the chain tip during snapshot restore.
func (h *StateHasher) SetPrevHash(hash [32]byte) {
	h.prevHash = hash
}

// CarriedStateDigest computes a deterministic digest of the carried state.
// Stores are folded in ascending key order; nothing here may depend on map
// iteration order.
func CarriedStateDigest(carried *executor.CarriedState) []byte {
	hasher := sha256.New()
	writePositions(hasher, carried.Positions)
	writeOrders(hasher, carried.Orders)
	return hasher.Sum(nil)
}

// DigestCommitter derives shared-state roots as flat SHA-256 folds over the
// stores. It satisfies the committer contract; a production deployment
// replaces it with the real Merkle committer.
type DigestCommitter struct{}

func (DigestCommitter) PositionsRoot(positions *state.PositionStore) state.Hash {
	hasher := sha256.New()
	writePositions(hasher, positions)
	var root state.Hash
	copy(root[:], hasher.Sum(nil))
	return root
}

func (DigestCommitter) OrdersRoot(orders *order.FulfillmentStore) state.Hash {
	hasher := sha256.New()
	writeOrders(hasher, orders)
	var root state.Hash
	copy(root[:], hasher.Sum(nil))
	return root
}

func writePositions(h hash.Hash, positions *state.PositionStore) {
	for _, id := range positions.IDs() {
		p := positions.Get(id)
		writeUint64(h, uint64(id))
		h.Write(p.PublicKey[:])
		writeBigInt(h, p.CollateralBalance)
		writeUint64(h, uint64(len(p.Assets)))
		for _, a := range p.Assets {
			writeUint64(h, uint64(a.AssetID))
			writeBigInt(h, a.Balance)
			writeUint64(h, uint64(a.CachedFundingIndex))
		}
		writeUint64(h, p.FundingTimestamp)
	}
}

func writeOrders(h hash.Hash, orders *order.FulfillmentStore) {
	for _, id := range orders.IDs() {
		writeUint64(h, uint64(id))
		writeBigInt(h, orders.GetFilledAmount(id))
	}
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// writeBigInt encodes sign, length and magnitude so distinct values can
// never collide under concatenation.
func writeBigInt(h hash.Hash, v *big.Int) {
	sign := byte(1)
	if v.Sign() < 0 {
		sign = 2
	} else if v.Sign() == 0 {
		sign = 0
	}
	h.Write([]byte{sign})
	abs := v.Bytes()
	writeUint64(h, uint64(len(abs)))
	h.Write(abs)
}
