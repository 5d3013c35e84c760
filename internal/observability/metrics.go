package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PerpCore.
type Metrics struct {
	// Trade processing
	TradesApplied    prometheus.Counter
	TradesRejected   *prometheus.CounterVec
	TradeDuration    prometheus.Histogram
	StateHashDur     prometheus.Histogram
	CoreSequence     prometheus.Gauge
	DuplicatesTotal  prometheus.Counter
	SequenceFailures *prometheus.CounterVec

	// Ingestion
	IngestMessages *prometheus.CounterVec
	IngestErrors   *prometheus.CounterVec

	// Channels & backpressure
	ChannelSize     *prometheus.GaugeVec
	ChannelCapacity *prometheus.GaugeVec

	// Persistence
	PersistWritten  prometheus.Counter
	PersistErrors   *prometheus.CounterVec
	PersistBatchDur prometheus.Histogram
	SnapshotTaken   prometheus.Counter
	SnapshotDur     prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		TradesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perpcore_trades_applied_total",
			Help: "Trades successfully settled by the batch executor",
		}),

		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perpcore_trades_rejected_total",
			Help: "Trades rejected, by failure code",
		}, []string{"reason"}),

		TradeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "perpcore_trade_execute_duration_seconds",
			Help:    "Time to execute a single trade against carried state",
			Buckets: latencyBuckets,
		}),

		StateHashDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "perpcore_state_hash_duration_seconds",
			Help:    "Time to digest carried state and advance the hash chain",
			Buckets: latencyBuckets,
		}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "perpcore_sequence",
			Help: "Current global transaction sequence",
		}),

		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perpcore_duplicates_total",
			Help: "Submissions dropped by the idempotency checker",
		}),

		SequenceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perpcore_sequence_failures_total",
			Help: "Submissions rejected by source-sequence validation",
		}, []string{"source"}),

		IngestMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perpcore_ingest_messages_total",
			Help: "Messages received from NATS, by subject",
		}, []string{"subject"}),

		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perpcore_ingest_errors_total",
			Help: "Messages that failed to parse or validate",
		}, []string{"subject"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perpcore_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "perpcore_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		PersistWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perpcore_persist_written_total",
			Help: "Transaction envelopes written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "perpcore_persist_errors_total",
			Help: "Postgres write failures, by operation",
		}, []string{"op"}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "perpcore_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perpcore_snapshot_taken_total",
			Help: "Carried-state snapshots persisted",
		}),

		SnapshotDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "perpcore_snapshot_duration_seconds",
			Help:    "Snapshot serialization and write duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
	}
}
