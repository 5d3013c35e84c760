package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Service provides read-only access to the settlement log and the latest
// snapshot. Responses carry as-of sequences so callers can reason about
// freshness; the service never touches the live carried state.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetTransaction returns one settled transaction by sequence.
func (s *Service) GetTransaction(ctx context.Context, sequence int64) (*TransactionResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sequence, batch_id, tx_type, idempotency_key, payload,
		       state_hash, prev_hash, timestamp, source, source_sequence
		FROM settlement.transactions
		WHERE sequence = $1
	`, sequence)

	resp, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return resp, err
}

// ListTransactions returns up to limit transactions starting at fromSequence.
func (s *Service) ListTransactions(ctx context.Context, fromSequence int64, limit int) ([]TransactionResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
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

	var out []TransactionResponse
	for rows.Next() {
		resp, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, rows.Err()
}

// GetPosition returns a position from the latest verified snapshot, or nil
// if the position does not exist or no snapshot has been taken yet.
func (s *Service) GetPosition(ctx context.Context, positionID uint64) (*PositionResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sequence, data FROM settlement.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var sequence int64
	var data []byte
	if err := row.Scan(&sequence, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap struct {
		Positions []struct {
			PositionID        uint64 `json:"position_id"`
			PublicKey         string `json:"public_key"`
			CollateralBalance string `json:"collateral_balance"`
			Assets            []struct {
				AssetID            int64  `json:"asset_id"`
				Balance            string `json:"balance"`
				CachedFundingIndex int64  `json:"cached_funding_index"`
			} `json:"assets"`
			FundingTimestamp uint64 `json:"funding_timestamp"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	for _, p := range snap.Positions {
		if p.PositionID != positionID {
			continue
		}
		resp := &PositionResponse{
			PositionID:        p.PositionID,
			PublicKey:         p.PublicKey,
			CollateralBalance: p.CollateralBalance,
			FundingTimestamp:  p.FundingTimestamp,
			AsOfSequence:      sequence,
		}
		for _, a := range p.Assets {
			resp.Assets = append(resp.Assets, AssetResponse{
				AssetID:            a.AssetID,
				Balance:            a.Balance,
				CachedFundingIndex: a.CachedFundingIndex,
			})
		}
		return resp, nil
	}
	return nil, nil
}

// GetHead returns the tip of the transaction log.
func (s *Service) GetHead(ctx context.Context) (*HeadResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sequence, state_hash FROM settlement.transactions
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var sequence int64
	var stateHash []byte
	if err := row.Scan(&sequence, &stateHash); err != nil {
		if err == sql.ErrNoRows {
			return &HeadResponse{Sequence: -1}, nil
		}
		return nil, err
	}

	return &HeadResponse{
		Sequence:  sequence,
		StateHash: hex.EncodeToString(stateHash),
	}, nil
}

// VerifyChain walks the log between fromSequence and toSequence and checks
// that every row's prev_hash equals its predecessor's state_hash.
func (s *Service) VerifyChain(ctx context.Context, fromSequence, toSequence int64) (*IntegrityReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, state_hash, prev_hash
		FROM settlement.transactions
		WHERE sequence >= $1 AND sequence <= $2
		ORDER BY sequence ASC
	`, fromSequence, toSequence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &IntegrityReport{
		IsHealthy:   true,
		CheckedFrom: fromSequence,
		CheckedTo:   toSequence,
	}

	var prevStateHash []byte
	havePrev := false
	for rows.Next() {
		var sequence int64
		var stateHash, prevHash []byte
		if err := rows.Scan(&sequence, &stateHash, &prevHash); err != nil {
			return nil, err
		}

		if havePrev && !bytesEqual(prevHash, prevStateHash) {
			report.IsHealthy = false
			report.HashChainBreaks = append(report.HashChainBreaks, sequence)
		}

		prevStateHash = stateHash
		havePrev = true
	}
	return report, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*TransactionResponse, error) {
	var resp TransactionResponse
	var payload, stateHash, prevHash []byte
	var ts time.Time

	if err := row.Scan(
		&resp.Sequence, &resp.BatchID, &resp.TxType, &resp.IdempotencyKey, &payload,
		&stateHash, &prevHash, &ts, &resp.Source, &resp.SourceSequence,
	); err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		decoded = string(payload)
	}
	resp.Payload = decoded
	resp.StateHash = hex.EncodeToString(stateHash)
	resp.PrevHash = hex.EncodeToString(prevHash)
	resp.Timestamp = ts
	return &resp, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
