package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PerpCore/internal/config"
	"PerpCore/internal/core"
	"PerpCore/internal/executor"
	"PerpCore/internal/ingestion"
	"PerpCore/internal/observability"
	"PerpCore/internal/order"
	"PerpCore/internal/persistence"
	"PerpCore/internal/query"
	"PerpCore/internal/server"
	"PerpCore/internal/state"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	log := observability.NewLogger("main")
	log.Info().Msg("PerpCore starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	batchCfg, err := config.LoadSystemConfig(cfg.System.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.System.ConfigPath).Msg("load system config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("Postgres connected")

	migrator := persistence.NewMigrator(db, cfg.Migrations.Dir)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	snapMgr := persistence.NewSnapshotManager(db)

	// --- Recovery: load snapshot ---
	startSequence := int64(0)
	var carried *executor.CarriedState

	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load snapshot failed")
	}
	if snap != nil {
		carried, err = snap.RestoreCarried()
		if err != nil {
			log.Fatal().Err(err).Msg("restore carried state from snapshot")
		}
		startSequence = snap.Sequence + 1
		log.Info().Int64("sequence", snap.Sequence).Msg("loaded snapshot")
	} else {
		carried = executor.NewCarriedState(
			&state.FundingIndicesInfo{},
			&state.OraclePrices{},
			0,
		)
		log.Info().Msg("no snapshot found, cold start from sequence 0")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Channels ---
	rawTxChan := make(chan ingestion.RawTx, cfg.Channels.TxChanSize)
	persistCoreChan := make(chan core.CoreOutput, cfg.Channels.PersistChanSize)
	persistWorkerChan := make(chan persistence.TxRow, cfg.Channels.PersistChanSize)

	// --- Batch executor ---
	// FixtureHasher and NoopVerifier stand in until the hashing and
	// signature collaborators are wired.
	trades := executor.NewTradeExecutor(order.FixtureHasher{}, order.NoopVerifier{})
	batchExecutor := core.NewBatchExecutor(
		startSequence, carried, batchCfg, trades, persistCoreChan, metrics,
	)

	if snap != nil {
		var prevHash [32]byte
		copy(prevHash[:], snap.StateHash)
		batchExecutor.RestoreChain(startSequence, prevHash)

		if len(snap.IdempotencyKeys) > 0 {
			batchExecutor.WarmIdempotency(snap.IdempotencyKeys)
		}
		for source, next := range snap.SequenceState {
			batchExecutor.RestoreSourceSequence(source, next)
		}
	}

	errChan := make(chan error, 8)

	// --- Persistence worker (started before replay so replayed
	// transactions can drain through the channel) ---
	persistWorker := persistence.NewWorker(db, persistWorkerChan, cfg.Persist.BatchSize, cfg.Persist.FlushTimeout, metrics)
	go func() {
		errChan <- persistWorker.Run(ctx)
	}()

	go bridgeOutputs(ctx, persistCoreChan, persistWorkerChan)

	// --- Replay transaction log from snapshot forward ---
	replayed, err := replayTxLog(ctx, snapMgr, batchExecutor, startSequence, log)
	if err != nil {
		log.Fatal().Err(err).Msg("transaction replay failed")
	}
	if replayed > 0 {
		log.Info().Int64("replayed", replayed).Int64("sequence", batchExecutor.Sequence()).Msg("replayed transaction log")
	}

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Msg("NATS connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure NATS streams")
	}

	natsSubscriber := ingestion.NewNATSSubscriber(js, rawTxChan, metrics)
	if err := natsSubscriber.Subscribe(ctx); err != nil {
		log.Fatal().Err(err).Msg("nats subscribe")
	}

	// --- Goroutines ---
	go runIngestionLoop(ctx, rawTxChan, batchExecutor, metrics, log)

	go runPeriodicSnapshots(ctx, batchExecutor, snapMgr, cfg.Snapshot.Interval, metrics, log)

	// --- Read-side HTTP API ---
	queries := query.NewService(db)
	apiServer := server.NewHTTPServer(cfg.HTTP.APIAddr, queries, healthChecker)
	go func() {
		if err := apiServer.Start(); err != nil {
			errChan <- fmt.Errorf("http api: %w", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", healthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
		server := &http.Server{Addr: cfg.HTTP.MetricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			server.Shutdown(shutCtx)
		}()
		log.Info().Str("addr", cfg.HTTP.MetricsAddr).Msg("metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	log.Info().Int64("sequence", batchExecutor.Sequence()).Msg("PerpCore ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	healthChecker.SetReady(false)
	natsSubscriber.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http api shutdown")
	}

	if err := takeSnapshot(shutdownCtx, batchExecutor, snapMgr, metrics); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("PerpCore shutdown complete")
}

// bridgeOutputs converts core outputs to persistence rows. Separate types
// keep core free of database concerns.
func bridgeOutputs(ctx context.Context, in <-chan core.CoreOutput, out chan<- persistence.TxRow) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case output, ok := <-in:
			if !ok {
				return
			}
			env := output.Envelope
			row := persistence.TxRow{
				Sequence:       env.Sequence,
				BatchID:        env.BatchID.String(),
				TxType:         env.TxType.String(),
				IdempotencyKey: env.IdempotencyKey,
				Payload:        env.Payload,
				StateHash:      env.StateHash[:],
				PrevHash:       env.PrevHash[:],
				Timestamp:      env.Timestamp,
				Source:         env.Source,
				SourceSequence: env.SourceSequence,
			}
			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runIngestionLoop parses wire messages and drives the batch executor.
// Messages are acked after settlement succeeds or fails deterministically;
// unparseable messages are acked to avoid redelivery loops.
func runIngestionLoop(
	ctx context.Context,
	rawChan <-chan ingestion.RawTx,
	batchExecutor *core.BatchExecutor,
	metrics *observability.Metrics,
	log zerolog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawChan:
			if !ok {
				return
			}

			parsed, err := ingestion.ParseTx(raw.Data)
			if err != nil {
				if metrics != nil {
					metrics.IngestErrors.WithLabelValues(raw.Subject).Inc()
				}
				log.Warn().Err(err).Str("subject", raw.Subject).Msg("parse tx failed")
				raw.AckFunc()
				continue
			}

			source := parsed.Source
			if source == "" {
				source = raw.Subject
			}

			err = batchExecutor.ProcessTrade(&core.TradeSubmission{
				IdempotencyKey: parsed.IdempotencyKey,
				Source:         source,
				SourceSequence: parsed.SourceSequence,
				Trade:          parsed.Trade,
				Payload:        parsed.Payload,
				Timestamp:      parsed.Timestamp,
			})
			if err != nil {
				// Deterministic rejection: the trade can never succeed on
				// redelivery, so ack it anyway.
				log.Warn().Err(err).Str("idempotency_key", parsed.IdempotencyKey).Msg("trade not settled")
			}
			raw.AckFunc()
		}
	}
}

// replayTxLog feeds persisted transactions back through the executor to
// rebuild the carried state from the last snapshot forward.
func replayTxLog(
	ctx context.Context,
	snapMgr *persistence.SnapshotManager,
	batchExecutor *core.BatchExecutor,
	fromSequence int64,
	log zerolog.Logger,
) (int64, error) {
	const batchSize = 1000
	var total int64

	for {
		rows, err := snapMgr.LoadTxsFrom(ctx, fromSequence, batchSize)
		if err != nil {
			return total, fmt.Errorf("load txs from seq %d: %w", fromSequence, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			parsed, err := ingestion.ParseTx(row.Payload)
			if err != nil {
				log.Warn().Err(err).Int64("sequence", row.Sequence).Msg("skip unparseable tx during replay")
				continue
			}

			err = batchExecutor.ProcessTrade(&core.TradeSubmission{
				IdempotencyKey: row.IdempotencyKey,
				Source:         row.Source,
				SourceSequence: row.SourceSequence,
				Trade:          parsed.Trade,
				Payload:        row.Payload,
				Timestamp:      row.Timestamp,
			})
			if err != nil {
				log.Debug().Err(err).Int64("sequence", row.Sequence).Msg("replay skip")
			}
			total++
		}

		fromSequence = rows[len(rows)-1].Sequence + 1
	}

	return total, nil
}

// runPeriodicSnapshots takes a snapshot every interval settled
// transactions, checked on a coarse ticker.
func runPeriodicSnapshots(
	ctx context.Context,
	batchExecutor *core.BatchExecutor,
	snapMgr *persistence.SnapshotManager,
	interval int64,
	metrics *observability.Metrics,
	log zerolog.Logger,
) {
	lastSnapshotSeq := batchExecutor.Sequence()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			currentSeq := batchExecutor.Sequence()
			if currentSeq-lastSnapshotSeq >= interval {
				if err := takeSnapshot(ctx, batchExecutor, snapMgr, metrics); err != nil {
					log.Warn().Err(err).Msg("periodic snapshot failed")
				} else {
					lastSnapshotSeq = currentSeq
					log.Info().Int64("sequence", currentSeq).Msg("periodic snapshot")
				}
			}
		}
	}
}

func takeSnapshot(
	ctx context.Context,
	batchExecutor *core.BatchExecutor,
	snapMgr *persistence.SnapshotManager,
	metrics *observability.Metrics,
) error {
	start := time.Now()

	snap := persistence.BuildSnapshot(
		batchExecutor.CarriedState(),
		batchExecutor.Sequence()-1,
		batchExecutor.StateHash(),
		batchExecutor.SourceSequences(),
		batchExecutor.IdempotencyKeys(),
	)

	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := snapMgr.MarkVerified(ctx, snap.Sequence); err != nil {
		return fmt.Errorf("mark snapshot verified: %w", err)
	}

	if metrics != nil {
		metrics.SnapshotTaken.Inc()
		metrics.SnapshotDur.Observe(time.Since(start).Seconds())
	}

	return nil
}
