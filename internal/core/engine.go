package core

import (
	"errors"
	"fmt"
	"time"

	"PerpCore/internal/event"
	"PerpCore/internal/executor"
	"PerpCore/internal/observability"
	"PerpCore/internal/order"
	"PerpCore/internal/perperr"
	"PerpCore/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchExecutor is the single-threaded settlement pipeline. Exactly one
// goroutine drives it; the carried state is mutated in place and never
// shared while a batch is open.
type BatchExecutor struct {
	sequence          int64
	batchID           uuid.UUID
	carried           *executor.CarriedState
	batch             *state.BatchConfig
	trades            *executor.TradeExecutor
	hasher            *StateHasher
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	log               zerolog.Logger

	persistChan chan<- CoreOutput
}

// TradeSubmission is one ingested trade plus its transport metadata.
type TradeSubmission struct {
	IdempotencyKey string
	Source         string
	SourceSequence int64
	Trade          *order.Trade
	Payload        []byte
	Timestamp      time.Time
}

// CoreOutput is what the executor hands to the persistence worker for each
// settled trade.
type CoreOutput struct {
	Envelope    *event.Envelope
	StateDigest []byte
}

func NewBatchExecutor(
	startSequence int64,
	carried *executor.CarriedState,
	batch *state.BatchConfig,
	trades *executor.TradeExecutor,
	persistChan chan<- CoreOutput,
	metrics *observability.Metrics,
) *BatchExecutor {
	return &BatchExecutor{
		sequence:          startSequence,
		batchID:           uuid.New(),
		carried:           carried,
		batch:             batch,
		trades:            trades,
		hasher:            NewStateHasher(),
		idempotency:       NewIdempotencyChecker(1_000_000),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		log:               observability.NewLogger("core"),
		persistChan:       persistChan,
	}
}

// ProcessTrade runs the full pipeline for one submission: dedup, source
// ordering, settlement, state hash, envelope emission. A settlement error
// leaves the carried stores untouched for everything except a partially
// settled trade's first leg (see ExecuteTrade) and is returned to the
// caller; the submission is still marked processed so a redelivery does
// not retry a deterministically failing trade.
func (b *BatchExecutor) ProcessTrade(sub *TradeSubmission) error {
	start := time.Now()

	isDuplicate := b.idempotency.IsDuplicate(sub.IdempotencyKey)

	if err := b.sequenceValidator.ValidateSequence(sub.Source, sub.SourceSequence, isDuplicate); err != nil {
		if b.metrics != nil {
			b.metrics.SequenceFailures.WithLabelValues(sub.Source).Inc()
		}
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	if isDuplicate {
		if b.metrics != nil {
			b.metrics.DuplicatesTotal.Inc()
		}
		b.log.Debug().Str("idempotency_key", sub.IdempotencyKey).Msg("duplicate submission skipped")
		return nil
	}

	if err := b.trades.ExecuteTrade(b.carried, b.batch, sub.Trade); err != nil {
		if b.metrics != nil {
			b.metrics.TradesRejected.WithLabelValues(rejectReason(err)).Inc()
		}
		b.idempotency.MarkProcessed(sub.IdempotencyKey)
		b.log.Warn().
			Err(err).
			Str("idempotency_key", sub.IdempotencyKey).
			Int64("source_sequence", sub.SourceSequence).
			Msg("trade rejected")
		return err
	}

	hashStart := time.Now()
	stateDigest := CarriedStateDigest(b.carried)
	prevHash := b.hasher.PrevHash()
	stateHash := b.hasher.ComputeHash(b.sequence, stateDigest)
	if b.metrics != nil {
		b.metrics.StateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	envelope := &event.Envelope{
		Sequence:       b.sequence,
		BatchID:        b.batchID,
		IdempotencyKey: sub.IdempotencyKey,
		TxType:         event.TxTypeTrade,
		Timestamp:      sub.Timestamp,
		Source:         sub.Source,
		SourceSequence: sub.SourceSequence,
		Payload:        sub.Payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}
	b.sequence++

	b.idempotency.MarkProcessed(sub.IdempotencyKey)

	// Blocking send: the executor stalls until the persistence worker
	// drains, so no settled trade is ever lost.
	b.persistChan <- CoreOutput{Envelope: envelope, StateDigest: stateDigest}

	if b.metrics != nil {
		b.metrics.TradesApplied.Inc()
		b.metrics.TradeDuration.Observe(time.Since(start).Seconds())
		b.metrics.CoreSequence.Set(float64(b.sequence))
	}

	return nil
}

// Finalize closes the open batch: commits store roots into a shared state
// and rotates the batch id for the next one.
func (b *BatchExecutor) Finalize(committer executor.Committer) *executor.SharedState {
	shared := executor.ApplyStateUpdates(b.carried, &b.batch.General, committer)
	b.log.Info().
		Str("batch_id", b.batchID.String()).
		Int64("sequence", b.sequence).
		Hex("positions_root", shared.PositionsRoot[:]).
		Hex("orders_root", shared.OrdersRoot[:]).
		Msg("batch finalized")
	b.batchID = uuid.New()
	return shared
}

func (b *BatchExecutor) Sequence() int64 { return b.sequence }

func (b *BatchExecutor) StateHash() [32]byte { return b.hasher.PrevHash() }

func (b *BatchExecutor) CarriedState() *executor.CarriedState { return b.carried }

// RestoreChain rewires the executor onto a recovered hash chain: the next
// sequence to assign and the hash of the last persisted transaction.
func (b *BatchExecutor) RestoreChain(nextSequence int64, prevHash [32]byte) {
	b.sequence = nextSequence
	b.hasher.SetPrevHash(prevHash)
}

// WarmIdempotency preloads recently persisted keys so a warm restart does
// not re-settle redelivered trades.
func (b *BatchExecutor) WarmIdempotency(keys []string) {
	b.idempotency.Warm(keys)
}

// RestoreSourceSequence rewires one upstream source's expected sequence
// after recovery.
func (b *BatchExecutor) RestoreSourceSequence(source string, next int64) {
	b.sequenceValidator.SetExpectedSequence(source, next)
}

// SourceSequences copies the per-source ordering state for snapshots.
func (b *BatchExecutor) SourceSequences() map[string]int64 {
	return b.sequenceValidator.Snapshot()
}

// IdempotencyKeys returns the tracked dedup keys for snapshots.
func (b *BatchExecutor) IdempotencyKeys() []string {
	return b.idempotency.Keys()
}

// rejectReason maps a settlement error onto a bounded metric label.
func rejectReason(err error) string {
	var code perperr.Code
	if errors.As(err, &code) {
		return code.String()
	}
	return "internal"
}
