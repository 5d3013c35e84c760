package event

import (
	"time"

	"github.com/google/uuid"
)

// TxType discriminates transaction payloads in the log.
type TxType int32

const (
	TxTypeUnknown TxType = iota
	TxTypeTrade
)

func (t TxType) String() string {
	switch t {
	case TxTypeTrade:
		return "Trade"
	default:
		return "Unknown"
	}
}

// Envelope wraps every executed transaction in the settlement log.
type Envelope struct {
	// Global monotonic sequence assigned by the batch executor.
	Sequence int64

	// Batch this transaction settled in.
	BatchID uuid.UUID

	// Stable dedup key from upstream.
	IdempotencyKey string

	// Transaction type discriminator.
	TxType TxType

	// Versioned input timestamp, never wall clock.
	Timestamp time.Time

	// Upstream source identifier and its sequence, for ordering
	// validation across restarts.
	Source         string
	SourceSequence int64

	// JSON wire form of the transaction as received.
	Payload []byte

	// Digest of the carried state AFTER applying this transaction.
	StateHash [32]byte

	// Previous transaction's state hash (chain integrity).
	PrevHash [32]byte
}
