package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TxRow is one row in settlement.transactions: a settled transaction's
// envelope plus its raw wire payload.
type TxRow struct {
	Sequence       int64
	BatchID        string
	TxType         string
	IdempotencyKey string
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	Source         string
	SourceSequence int64
}

// TxLogWriter batch-writes settled transactions to Postgres using multi-row
// INSERT. ON CONFLICT (sequence) DO NOTHING makes re-flushing after a retry
// idempotent.
type TxLogWriter struct {
	db *sql.DB
}

func NewTxLogWriter(db *sql.DB) *TxLogWriter {
	return &TxLogWriter{db: db}
}

// WriteTxBatch writes a batch of transaction rows inside the given tx.
func (w *TxLogWriter) WriteTxBatch(ctx context.Context, tx *sql.Tx, rows []TxRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO settlement.transactions
		(sequence, batch_id, tx_type, idempotency_key, payload, state_hash, prev_hash, timestamp, source, source_sequence)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*10)

	for i, r := range rows {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			r.Sequence, r.BatchID, r.TxType, r.IdempotencyKey,
			r.Payload, r.StateHash, r.PrevHash, r.Timestamp,
			r.Source, r.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
