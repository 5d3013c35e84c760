package persistence

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"time"

	"PerpCore/internal/executor"
	"PerpCore/internal/order"
	"PerpCore/internal/state"

	"github.com/google/uuid"
)

// SnapshotManager persists and restores point-in-time captures of the
// carried state plus the executor's recovery bookkeeping. On warm restart
// the host loads the latest verified snapshot and replays the transaction
// log from snapshot.Sequence+1.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized form of a snapshot. Balances are decimal
// strings; they routinely exceed int64.
type SnapshotData struct {
	Sequence        int64              `json:"sequence"`
	StateHash       []byte             `json:"state_hash"`
	Positions       []PositionSnapshot `json:"positions"`
	Fulfillments    []FulfillmentSnap  `json:"fulfillments"`
	FundingIndices  []FundingIndexSnap `json:"funding_indices"`
	FundingTime     uint64             `json:"funding_timestamp"`
	OraclePrices    []OraclePriceSnap  `json:"oracle_prices"`
	SystemTime      int64              `json:"system_time"`
	SequenceState   map[string]int64   `json:"sequence_state"`
	IdempotencyKeys []string           `json:"idempotency_keys"`
	CreatedAt       time.Time          `json:"created_at"`
}

type PositionSnapshot struct {
	PositionID        uint64          `json:"position_id"`
	PublicKey         string          `json:"public_key"`
	CollateralBalance string          `json:"collateral_balance"`
	Assets            []AssetSnapshot `json:"assets"`
	FundingTimestamp  uint64          `json:"funding_timestamp"`
}

type AssetSnapshot struct {
	AssetID            int64  `json:"asset_id"`
	Balance            string `json:"balance"`
	CachedFundingIndex int64  `json:"cached_funding_index"`
}

type FulfillmentSnap struct {
	OrderID      uint64 `json:"order_id"`
	FilledAmount string `json:"filled_amount"`
}

type FundingIndexSnap struct {
	AssetID      int64 `json:"asset_id"`
	FundingIndex int64 `json:"funding_index"`
}

type OraclePriceSnap struct {
	AssetID int64  `json:"asset_id"`
	Price   string `json:"price"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// BuildSnapshot serializes the carried state. Stores iterate in ascending
// key order so two snapshots of the same state are byte-identical.
func BuildSnapshot(
	carried *executor.CarriedState,
	sequence int64,
	stateHash [32]byte,
	sequenceState map[string]int64,
	idempotencyKeys []string,
) *SnapshotData {
	snap := &SnapshotData{
		Sequence:        sequence,
		StateHash:       stateHash[:],
		SystemTime:      carried.SystemTime,
		SequenceState:   sequenceState,
		IdempotencyKeys: idempotencyKeys,
		CreatedAt:       time.Now().UTC(),
	}

	for _, id := range carried.Positions.IDs() {
		p := carried.Positions.Get(id)
		ps := PositionSnapshot{
			PositionID:        uint64(id),
			PublicKey:         hex.EncodeToString(p.PublicKey[:]),
			CollateralBalance: p.CollateralBalance.String(),
			FundingTimestamp:  p.FundingTimestamp,
		}
		for _, a := range p.Assets {
			ps.Assets = append(ps.Assets, AssetSnapshot{
				AssetID:            int64(a.AssetID),
				Balance:            a.Balance.String(),
				CachedFundingIndex: a.CachedFundingIndex,
			})
		}
		snap.Positions = append(snap.Positions, ps)
	}

	for _, id := range carried.Orders.IDs() {
		snap.Fulfillments = append(snap.Fulfillments, FulfillmentSnap{
			OrderID:      uint64(id),
			FilledAmount: carried.Orders.GetFilledAmount(id).String(),
		})
	}

	if carried.GlobalFundingIndices != nil {
		snap.FundingTime = carried.GlobalFundingIndices.FundingTimestamp
		for _, fi := range carried.GlobalFundingIndices.FundingIndices {
			snap.FundingIndices = append(snap.FundingIndices, FundingIndexSnap{
				AssetID:      int64(fi.AssetID),
				FundingIndex: fi.FundingIndex,
			})
		}
	}

	if carried.OraclePrices != nil {
		for _, op := range carried.OraclePrices.Data {
			snap.OraclePrices = append(snap.OraclePrices, OraclePriceSnap{
				AssetID: int64(op.AssetID),
				Price:   op.Price.String(),
			})
		}
		sort.Slice(snap.OraclePrices, func(i, j int) bool {
			return snap.OraclePrices[i].AssetID < snap.OraclePrices[j].AssetID
		})
	}

	return snap
}

// RestoreCarried rebuilds a carried state from a snapshot.
func (s *SnapshotData) RestoreCarried() (*executor.CarriedState, error) {
	indices := &state.FundingIndicesInfo{FundingTimestamp: s.FundingTime}
	for _, fi := range s.FundingIndices {
		indices.FundingIndices = append(indices.FundingIndices, state.FundingIndex{
			AssetID:      state.AssetID(fi.AssetID),
			FundingIndex: fi.FundingIndex,
		})
	}

	prices := &state.OraclePrices{}
	for _, op := range s.OraclePrices {
		price, ok := new(big.Int).SetString(op.Price, 10)
		if !ok {
			return nil, fmt.Errorf("restore oracle price for asset %d: bad decimal %q", op.AssetID, op.Price)
		}
		prices.Data = append(prices.Data, state.OraclePrice{
			AssetID: state.AssetID(op.AssetID),
			Price:   price,
		})
	}

	carried := executor.NewCarriedState(indices, prices, s.SystemTime)

	for _, ps := range s.Positions {
		var pk state.PublicKey
		b, err := hex.DecodeString(ps.PublicKey)
		if err != nil || len(b) != len(pk) {
			return nil, fmt.Errorf("restore position %d: bad public key %q", ps.PositionID, ps.PublicKey)
		}
		copy(pk[:], b)

		collateral, ok := new(big.Int).SetString(ps.CollateralBalance, 10)
		if !ok {
			return nil, fmt.Errorf("restore position %d: bad collateral %q", ps.PositionID, ps.CollateralBalance)
		}

		assets := make([]state.PositionAsset, 0, len(ps.Assets))
		for _, a := range ps.Assets {
			balance, ok := new(big.Int).SetString(a.Balance, 10)
			if !ok {
				return nil, fmt.Errorf("restore position %d: bad asset balance %q", ps.PositionID, a.Balance)
			}
			assets = append(assets, state.PositionAsset{
				AssetID:            state.AssetID(a.AssetID),
				Balance:            balance,
				CachedFundingIndex: a.CachedFundingIndex,
			})
		}

		pos := state.NewPosition(pk, collateral, assets, ps.FundingTimestamp)
		carried.Positions.Update(state.PositionID(ps.PositionID), pos)
	}

	for _, f := range s.Fulfillments {
		filled, ok := new(big.Int).SetString(f.FilledAmount, 10)
		if !ok {
			return nil, fmt.Errorf("restore order %d: bad filled amount %q", f.OrderID, f.FilledAmount)
		}
		carried.Orders.Update(order.OrderID(f.OrderID), filled)
	}

	return carried, nil
}

// SaveSnapshot persists a snapshot. Re-snapshotting the same sequence
// overwrites in place.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO settlement.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, uuid.New(), snap.Sequence, data, snap.StateHash, int32(1), len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil on a
// cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM settlement.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified flips the verified flag after a replay check confirms the
// snapshot's state hash.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE settlement.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadTxsFrom loads transaction rows from a given sequence for replay.
func (sm *SnapshotManager) LoadTxsFrom(ctx context.Context, fromSequence int64, limit int) ([]TxRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, batch_id, tx_type, idempotency_key, payload,
		       state_hash, prev_hash, timestamp, source, source_sequence
		FROM settlement.transactions
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []TxRow
	for rows.Next() {
		var r TxRow
		if err := rows.Scan(
			&r.Sequence, &r.BatchID, &r.TxType, &r.IdempotencyKey, &r.Payload,
			&r.StateHash, &r.PrevHash, &r.Timestamp, &r.Source, &r.SourceSequence,
		); err != nil {
			return nil, err
		}
		txs = append(txs, r)
	}

	return txs, rows.Err()
}

// LatestSequence returns the highest sequence in the transaction log, or 0
// when the log is empty.
func (sm *SnapshotManager) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM settlement.transactions
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
