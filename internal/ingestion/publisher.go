package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundStream holds applied events for downstream consumers.
const (
	OutboundStream = "NAVLEDGER_EVENTS"
	OutboundPrefix = "navledger.events."
)

// Publisher is the JetStream publish call; jetstream.JetStream satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes committed events to NATS. It is fed from the
// persistence worker's commit hook, so nothing is published before it is durable.
type OutboundPublisher struct {
	js        Publisher
	inputChan chan PublishableEvent
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// PublishableEvent is the outbound wire form of an applied event.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	FundID         *uuid.UUID      `json:"fund_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Journals       int             `json:"journals"`
	StateHash      string          `json:"state_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Subject is navledger.events.<event_type>[.<fund_id>].
func (p PublishableEvent) Subject() string {
	subject := OutboundPrefix + p.EventType
	if p.FundID != nil {
		subject += "." + p.FundID.String()
	}
	return subject
}

// PublishableFromOutput converts an engine output to its outbound form.
func PublishableFromOutput(o core.CoreOutput) PublishableEvent {
	env := o.Envelope
	p := PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		FundID:         env.FundID,
		Payload:        json.RawMessage(env.Payload),
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		Timestamp:      env.Timestamp,
	}
	if o.Batch != nil {
		p.Journals = len(o.Batch.Journals)
	}
	return p
}

func NewOutboundPublisher(js Publisher, bufferSize int, metrics *observability.Metrics, logger zerolog.Logger) *OutboundPublisher {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &OutboundPublisher{
		js:        js,
		inputChan: make(chan PublishableEvent, bufferSize),
		metrics:   metrics,
		logger:    logger,
	}
}

// Enqueue queues committed outputs without blocking. It is the persistence
// worker's commit hook; a full queue drops and counts.
func (op *OutboundPublisher) Enqueue(outputs []core.CoreOutput) {
	for _, o := range outputs {
		if o.Envelope == nil {
			continue
		}
		select {
		case op.inputChan <- PublishableFromOutput(o):
		default:
			if op.metrics != nil {
				op.metrics.PublishDrops.Inc()
			}
		}
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-op.inputChan:
			if err := op.publish(ctx, evt); err != nil {
				// Non-fatal: downstream consumers can read the event log directly.
				op.logger.Warn().Err(err).Int64("sequence", evt.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// The sequence as message id lets JetStream drop republished events.
	_, err = op.js.Publish(ctx, evt.Subject(), data, jetstream.WithMsgID(strconv.FormatInt(evt.Sequence, 10)))
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       OutboundStream,
		Subjects:   []string{OutboundPrefix + ">"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	logger.Info().Str("stream", OutboundStream).Msg("ensured outbound stream")
	return nil
}
