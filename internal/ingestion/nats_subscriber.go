package ingestion

import (
	"context"
	"fmt"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/errs"
	"NavLedger/internal/event"
	"NavLedger/internal/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// InboundStream holds every fund.> command.
const InboundStream = "NAV_INBOUND"

// EventProcessor is the engine surface ingestion feeds.
type EventProcessor interface {
	ProcessEvent(evt event.Event) (*core.Outcome, error)
}

// NATSSubscriber consumes JetStream subjects and feeds parsed events to the
// engine from a single goroutine, so the log order follows the stream order.
type NATSSubscriber struct {
	js        jetstream.JetStream
	rawChan   chan RawEvent
	consumers []jetstream.ConsumeContext
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// RawEvent is an undecoded message with its acknowledgement callbacks.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // processed or deterministically rejected
	NakFunc   func() // redeliver
	TermFunc  func() // never redeliver; the payload cannot be parsed
}

// SubjectConfig binds a durable consumer to a filter on a stream.
type SubjectConfig struct {
	Subject      string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects is one durable consumer over every inbound command. Fund
// events depend on program and fund setup, so they share a consumer rather
// than being split by type.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: InboundPrefix + ">", ConsumerName: "navledger-inbound", StreamName: InboundStream},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, bufferSize int, metrics *observability.Metrics, logger zerolog.Logger) *NATSSubscriber {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &NATSSubscriber{
		js:      js,
		rawChan: make(chan RawEvent, bufferSize),
		metrics: metrics,
		logger:  logger,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			MaxAckPending: 1024,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
				TermFunc:  func() { msg.Term() },
			}

			select {
			case ns.rawChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumeCtx)
		ns.logger.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// Run parses queued messages and applies them until ctx is cancelled.
// Ledger rejections are acked: replaying them would fail the same way.
func (ns *NATSSubscriber) Run(ctx context.Context, proc EventProcessor) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-ns.rawChan:
			ns.handle(raw, proc)
		}
	}
}

func (ns *NATSSubscriber) handle(raw RawEvent, proc EventProcessor) {
	evt, err := ParseRawEvent(raw)
	if err != nil {
		if ns.metrics != nil {
			ns.metrics.IngestInvalid.WithLabelValues("nats").Inc()
		}
		ns.logger.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping unparseable message")
		raw.TermFunc()
		return
	}
	if ns.metrics != nil {
		ns.metrics.IngestReceived.WithLabelValues("nats", evt.EventType().String()).Inc()
	}

	out, err := proc.ProcessEvent(evt)
	switch {
	case err != nil:
		l := ns.logger.Warn().Err(err).
			Str("event_type", evt.EventType().String()).
			Str("idempotency_key", evt.IdempotencyKey())
		if code, ok := errs.CodeOf(err); ok {
			l = l.Str("code", code.String())
		}
		l.Msg("event rejected")
	case out.Duplicate:
		ns.logger.Debug().Str("idempotency_key", evt.IdempotencyKey()).Msg("duplicate delivery")
	}
	raw.AckFunc()
}

// EnsureStreams creates the inbound stream if it does not exist.
// File storage, limits retention, 72h max age.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	cfg := jetstream.StreamConfig{
		Name:      InboundStream,
		Subjects:  []string{InboundPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	}
	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}
	logger.Info().Str("stream", cfg.Name).Msg("ensured stream")
	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.logger.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("navledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
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
