package order

import (
	"encoding/hex"

	"PerpCore/internal/state"
)

// Hasher produces the domain-specific message hash of a limit order (order
// contents, expiration, nonce). The high bits of the result encode the order
// id per the packing scheme in ExtractOrderID. Supplied by a cryptographic
// collaborator; the core never hashes orders itself.
type Hasher interface {
	HashLimitOrder(limitOrder *LimitOrder) state.Hash
}

// Verifier checks an order's signature, expiration and nonce against its
// message hash. Called before any fulfillment update.
type Verifier interface {
	VerifyOrder(limitOrder *LimitOrder, messageHash state.Hash, minExpirationTimestamp int64) error
}

// FixtureHasher returns the reference digests keyed by order direction.
// It stands in for the real hashing collaborator in tests and local runs.
type FixtureHasher struct{}

func (FixtureHasher) HashLimitOrder(limitOrder *LimitOrder) state.Hash {
	if limitOrder.IsBuyingSynthetic {
		return mustHash("15311d0f75e0f3d33022a87bd83f29f20b983605c3369e242c1a833d74e45794")
	}
	return mustHash("26bce0eb499758b86ceba719a1c059fa7d7b693a7e651f4dfb4e177b3f0b6158")
}

// NoopVerifier accepts every order. Placeholder until the signature
// verification collaborator is supplied.
type NoopVerifier struct{}

func (NoopVerifier) VerifyOrder(*LimitOrder, state.Hash, int64) error {
	return nil
}

func mustHash(s string) state.Hash {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		panic("bad fixture hash: " + s)
	}
	var h state.Hash
	copy(h[:], b)
	return h
}
