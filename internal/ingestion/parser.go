package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"NavLedger/internal/event"

	"github.com/google/uuid"
)

// InboundPrefix is the subject root producers publish commands under:
// fund.<event_type>[.<anything>], e.g. fund.deposit.<fund_id>.
const InboundPrefix = "fund."

// InboundSubject returns the canonical subject for an event type.
func InboundSubject(et event.EventType) string {
	return InboundPrefix + et.String()
}

// SubjectEventType resolves the event type from the second subject token.
func SubjectEventType(subject string) (event.EventType, error) {
	rest, ok := strings.CutPrefix(subject, InboundPrefix)
	if !ok {
		return event.EventTypeUnknown, fmt.Errorf("subject %q outside %s>", subject, InboundPrefix)
	}
	name, _, _ := strings.Cut(rest, ".")
	et, ok := event.ParseEventType(name)
	if !ok {
		return event.EventTypeUnknown, fmt.Errorf("subject %q: unknown event type %q", subject, name)
	}
	return et, nil
}

// ParseRawEvent resolves the event type from the subject and decodes the payload.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	et, err := SubjectEventType(raw.Subject)
	if err != nil {
		return nil, err
	}
	return ParseEvent(et, raw.Data)
}

// ParseEvent decodes the JSON wire form of an event and checks the fields
// every event needs before it reaches the engine. Unknown fields are rejected
// so a misspelled amount does not silently decode as zero.
func ParseEvent(et event.EventType, data []byte) (event.Event, error) {
	evt, ok := event.New(et)
	if !ok {
		return nil, fmt.Errorf("unknown event type %d", et)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(evt); err != nil {
		return nil, fmt.Errorf("parse %s: %w", et, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse %s: trailing data after payload", et)
	}

	if err := validateEnvelope(evt); err != nil {
		return nil, fmt.Errorf("parse %s: %w", et, err)
	}
	return evt, nil
}

func validateEnvelope(evt event.Event) error {
	if evt.IdempotencyKey() == "" {
		return errors.New("event_id is required")
	}
	if evt.SignedBy() == uuid.Nil {
		return errors.New("signer is required")
	}
	if evt.EventTimestamp() <= 0 {
		return errors.New("timestamp must be positive")
	}
	if evt.SourceSequence() < 0 {
		return errors.New("sequence must not be negative")
	}
	if ref := evt.FundRef(); ref != nil && *ref == uuid.Nil {
		return errors.New("fund_id is required")
	}
	return nil
}
