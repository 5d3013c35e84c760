package ingestion

import (
	"context"
	"fmt"
	"time"

	"PerpCore/internal/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// TradeStreamName is the JetStream stream holding inbound trades.
const TradeStreamName = "PERP_TRADES"

// TradeSubject is the subject filter for inbound trades. Producers publish
// to perp.trades.<source>.
const TradeSubject = "perp.trades.>"

// RawTx is one undecoded wire message from NATS, ready for ParseTx. Ack
// after the trade is settled and queued for persistence; Nak to force
// redelivery.
type RawTx struct {
	Subject  string
	Data     []byte
	Received time.Time
	AckFunc  func()
	NakFunc  func()
}

// NATSSubscriber feeds wire messages from JetStream into the txChan drained
// by the batch executor's pump. Consumers use explicit ACK so a crash
// between delivery and settlement redelivers instead of losing the trade.
type NATSSubscriber struct {
	js        jetstream.JetStream
	txChan    chan<- RawTx
	metrics   *observability.Metrics
	consumers []jetstream.ConsumeContext
}

func NewNATSSubscriber(js jetstream.JetStream, txChan chan<- RawTx, metrics *observability.Metrics) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		txChan:  txChan,
		metrics: metrics,
	}
}

// Subscribe creates the durable trade consumer and starts delivery.
func (ns *NATSSubscriber) Subscribe(ctx context.Context) error {
	log := observability.NewLogger("ingestion")

	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, TradeStreamName, jetstream.ConsumerConfig{
		Durable:       "perpcore-trades",
		FilterSubject: TradeSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		if ns.metrics != nil {
			ns.metrics.IngestMessages.WithLabelValues(msg.Subject()).Inc()
		}

		raw := RawTx{
			Subject:  msg.Subject(),
			Data:     msg.Data(),
			Received: time.Now(),
			AckFunc:  func() { msg.Ack() },
			NakFunc:  func() { msg.Nak() },
		}

		select {
		case ns.txChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	ns.consumers = append(ns.consumers, consumerContext)
	log.Info().Str("subject", TradeSubject).Str("consumer", "perpcore-trades").Msg("subscribed")
	return nil
}

// EnsureStreams creates the trade stream if absent. FileStorage with a
// retention window long enough to replay after a weekend outage.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      TradeStreamName,
		Subjects:  []string{"perp.trades.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", TradeStreamName, err)
	}
	return nil
}

// Stop halts delivery. In-flight messages time out their ack and redeliver.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	log := observability.NewLogger("ingestion")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
