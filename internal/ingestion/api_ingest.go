package ingestion

import (
	"context"
	"errors"
	"fmt"

	"NavLedger/internal/core"
	"NavLedger/internal/event"
	"NavLedger/internal/observability"

	"github.com/rs/zerolog"
)

// ErrInvalidPayload wraps every decode or envelope failure from Submit.
var ErrInvalidPayload = errors.New("invalid event payload")

// APIIngestService injects events from the HTTP API and returns the engine
// outcome synchronously. NATS remains the high-throughput path.
type APIIngestService struct {
	proc    EventProcessor
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewAPIIngestService(proc EventProcessor, metrics *observability.Metrics, logger zerolog.Logger) *APIIngestService {
	return &APIIngestService{proc: proc, metrics: metrics, logger: logger}
}

// Submit decodes body as the named event type and applies it.
func (s *APIIngestService) Submit(ctx context.Context, eventType string, body []byte) (*core.Outcome, error) {
	et, ok := event.ParseEventType(eventType)
	if !ok {
		s.countInvalid()
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidPayload, eventType)
	}
	evt, err := ParseEvent(et, body)
	if err != nil {
		s.countInvalid()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s.Inject(ctx, evt)
}

// Inject applies an already typed event.
func (s *APIIngestService) Inject(ctx context.Context, evt event.Event) (*core.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IngestReceived.WithLabelValues("api", evt.EventType().String()).Inc()
	}

	out, err := s.proc.ProcessEvent(evt)
	if err != nil {
		s.logger.Info().Err(err).
			Str("event_type", evt.EventType().String()).
			Str("idempotency_key", evt.IdempotencyKey()).
			Msg("api event rejected")
		return nil, err
	}
	return out, nil
}

func (s *APIIngestService) countInvalid() {
	if s.metrics != nil {
		s.metrics.IngestInvalid.WithLabelValues("api").Inc()
	}
}
