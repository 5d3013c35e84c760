package query_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"PerpCore/internal/executor"
	"PerpCore/internal/order"
	"PerpCore/internal/persistence"
	"PerpCore/internal/query"
	"PerpCore/internal/testutil"

	"github.com/google/uuid"
)

func TestService_TransactionsAndChain(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Three rows with an intact hash chain.
	hashes := [][]byte{{0xa0}, {0xa1}, {0xa2}, {0xa3}}
	batchID := uuid.NewString()
	var rows []persistence.TxRow
	for seq := int64(0); seq < 3; seq++ {
		rows = append(rows, persistence.TxRow{
			Sequence:       seq,
			BatchID:        batchID,
			TxType:         "Trade",
			IdempotencyKey: uuid.NewString(),
			Payload:        []byte(`{"tx_type":"Trade"}`),
			StateHash:      hashes[seq+1],
			PrevHash:       hashes[seq],
			Timestamp:      time.Now().UTC(),
			Source:         "matcher",
			SourceSequence: seq,
		})
	}

	writer := persistence.NewTxLogWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.WriteTxBatch(ctx, tx, rows); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	svc := query.NewService(db)

	got, err := svc.GetTransaction(ctx, 1)
	if err != nil {
		t.Fatalf("get tx: %v", err)
	}
	if got == nil || got.Sequence != 1 {
		t.Fatalf("got %+v, want sequence 1", got)
	}
	if got.StateHash != hex.EncodeToString(hashes[2]) {
		t.Errorf("state hash: got %q", got.StateHash)
	}

	missing, err := svc.GetTransaction(ctx, 99)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("unknown sequence should return nil")
	}

	list, err := svc.ListTransactions(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("got %d transactions, want 2", len(list))
	}

	head, err := svc.GetHead(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head.Sequence != 2 {
		t.Errorf("head sequence: got %d, want 2", head.Sequence)
	}

	report, err := svc.VerifyChain(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !report.IsHealthy || len(report.HashChainBreaks) != 0 {
		t.Errorf("intact chain reported unhealthy: %+v", report)
	}
}

func TestService_VerifyChainDetectsBreak(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rows := []persistence.TxRow{
		{
			Sequence: 0, BatchID: uuid.NewString(), TxType: "Trade",
			IdempotencyKey: uuid.NewString(), Payload: []byte(`{}`),
			StateHash: []byte{0x01}, PrevHash: []byte{0x00},
			Timestamp: time.Now().UTC(), Source: "matcher",
		},
		{
			// PrevHash does not match the predecessor's StateHash.
			Sequence: 1, BatchID: uuid.NewString(), TxType: "Trade",
			IdempotencyKey: uuid.NewString(), Payload: []byte(`{}`),
			StateHash: []byte{0x02}, PrevHash: []byte{0xff},
			Timestamp: time.Now().UTC(), Source: "matcher",
		},
	}

	writer := persistence.NewTxLogWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.WriteTxBatch(ctx, tx, rows); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	report, err := query.NewService(db).VerifyChain(ctx, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if report.IsHealthy {
		t.Error("broken chain reported healthy")
	}
	if len(report.HashChainBreaks) != 1 || report.HashChainBreaks[0] != 1 {
		t.Errorf("breaks: got %v, want [1]", report.HashChainBreaks)
	}
}

func TestService_GetPositionFromSnapshot(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	carried := testutil.MakeState()
	trades := executor.NewTradeExecutor(order.FixtureHasher{}, order.NoopVerifier{})
	if err := trades.ExecuteTrade(carried, testutil.TestBatchConfig(), testutil.ReferenceTrade()); err != nil {
		t.Fatalf("settle: %v", err)
	}

	snapMgr := persistence.NewSnapshotManager(db)
	snap := persistence.BuildSnapshot(carried, 0, [32]byte{1}, nil, nil)
	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if err := snapMgr.MarkVerified(ctx, snap.Sequence); err != nil {
		t.Fatal(err)
	}

	svc := query.NewService(db)
	pos, err := svc.GetPosition(ctx, uint64(testutil.PartyAPositionID))
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos == nil {
		t.Fatal("buyer position should exist in the snapshot")
	}
	if pos.CollateralBalance != "-15025000000" {
		t.Errorf("collateral: got %q, want -15025000000", pos.CollateralBalance)
	}
	if len(pos.Assets) != 1 || pos.Assets[0].Balance != "100000000" {
		t.Errorf("assets: got %+v", pos.Assets)
	}
	if pos.AsOfSequence != 0 {
		t.Errorf("as-of sequence: got %d", pos.AsOfSequence)
	}

	unknown, err := svc.GetPosition(ctx, 424242)
	if err != nil {
		t.Fatal(err)
	}
	if unknown != nil {
		t.Error("unknown position should return nil")
	}
}
