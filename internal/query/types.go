package query

import "time"

// TransactionResponse is one settled transaction as served by the read API.
// Hashes are hex; the payload is the original wire JSON.
type TransactionResponse struct {
	Sequence       int64     `json:"sequence"`
	BatchID        string    `json:"batch_id"`
	TxType         string    `json:"tx_type"`
	IdempotencyKey string    `json:"idempotency_key"`
	Payload        any       `json:"payload"`
	StateHash      string    `json:"state_hash"`
	PrevHash       string    `json:"prev_hash"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	SourceSequence int64     `json:"source_sequence"`
}

// PositionResponse is one position from the latest snapshot.
type PositionResponse struct {
	PositionID        uint64          `json:"position_id"`
	PublicKey         string          `json:"public_key"`
	CollateralBalance string          `json:"collateral_balance"`
	Assets            []AssetResponse `json:"assets"`
	FundingTimestamp  uint64          `json:"funding_timestamp"`
	AsOfSequence      int64           `json:"as_of_sequence"`
}

// AssetResponse is one synthetic holding inside a position.
type AssetResponse struct {
	AssetID            int64  `json:"asset_id"`
	Balance            string `json:"balance"`
	CachedFundingIndex int64  `json:"cached_funding_index"`
}

// HeadResponse describes the tip of the transaction log.
type HeadResponse struct {
	Sequence  int64  `json:"sequence"`
	StateHash string `json:"state_hash"`
}

// IntegrityReport is the result of a hash-chain verification pass.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	CheckedFrom     int64   `json:"checked_from"`
	CheckedTo       int64   `json:"checked_to"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
