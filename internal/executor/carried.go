package executor

import (
	"PerpCore/internal/order"
	"PerpCore/internal/state"
)

// CarriedState is the mutable working state of one batch: the position and
// order-fulfillment ledgers plus the funding/oracle snapshots the batch
// executes under. Owned exclusively by the batch executor, mutated in place,
// never shared concurrently.
type CarriedState struct {
	Positions            *state.PositionStore
	Orders               *order.FulfillmentStore
	GlobalFundingIndices *state.FundingIndicesInfo
	OraclePrices         *state.OraclePrices
	SystemTime           int64
}

// NewCarriedState builds an empty carried state under the given snapshots.
func NewCarriedState(indices *state.FundingIndicesInfo, prices *state.OraclePrices, systemTime int64) *CarriedState {
	return &CarriedState{
		Positions:            state.NewPositionStore(),
		Orders:               order.NewFulfillmentStore(),
		GlobalFundingIndices: indices,
		OraclePrices:         prices,
		SystemTime:           systemTime,
	}
}

// SharedState is the committed representation of a finalized batch: Merkle
// roots over the two stores plus the snapshots they were produced under.
type SharedState struct {
	PositionsRoot        state.Hash
	PositionsTreeHeight  uint64
	OrdersRoot           state.Hash
	OrdersTreeHeight     uint64
	GlobalFundingIndices *state.FundingIndicesInfo
	OraclePrices         *state.OraclePrices
	SystemTime           int64
}

// Committer derives store roots for the shared state. The Merkle-tree
// hashing itself is an external collaborator; the core only hands over the
// pre-commit stores.
type Committer interface {
	PositionsRoot(positions *state.PositionStore) state.Hash
	OrdersRoot(orders *order.FulfillmentStore) state.Hash
}

// NoopCommitter produces default roots. Stand-in until the Merkle committer
// collaborator is wired.
type NoopCommitter struct{}

func (NoopCommitter) PositionsRoot(*state.PositionStore) state.Hash { return state.Hash{} }
func (NoopCommitter) OrdersRoot(*order.FulfillmentStore) state.Hash { return state.Hash{} }

// ApplyStateUpdates folds a batch's final carried state into the shared
// state. Tree heights pass through from configuration unchanged.
func ApplyStateUpdates(carried *CarriedState, general *state.GeneralConfig, committer Committer) *SharedState {
	return &SharedState{
		PositionsRoot:        committer.PositionsRoot(carried.Positions),
		PositionsTreeHeight:  general.PositionsTreeHeight,
		OrdersRoot:           committer.OrdersRoot(carried.Orders),
		OrdersTreeHeight:     general.OrdersTreeHeight,
		GlobalFundingIndices: carried.GlobalFundingIndices,
		OraclePrices:         carried.OraclePrices,
		SystemTime:           carried.SystemTime,
	}
}
