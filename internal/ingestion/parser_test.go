package ingestion_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"NavLedger/internal/errs"
	"NavLedger/internal/event"
	"NavLedger/internal/ingestion"
	"NavLedger/internal/testutil"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestSubjectEventType(t *testing.T) {
	tests := []struct {
		subject string
		want    event.EventType
		wantErr bool
	}{
		{"fund.deposit", event.EventTypeDeposit, false},
		{"fund.deposit.00000000-0000-0000-0000-0000000000f1", event.EventTypeDeposit, false},
		{"fund.shortfall_coverage", event.EventTypeShortfallCoverage, false},
		{"fund.margin_call", event.EventTypeUnknown, true},
		{"orders.created", event.EventTypeUnknown, true},
		{"fund", event.EventTypeUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			got, err := ingestion.SubjectEventType(tt.subject)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}

	for _, et := range event.AllEventTypes() {
		got, err := ingestion.SubjectEventType(ingestion.InboundSubject(et))
		if err != nil || got != et {
			t.Errorf("%s: round trip = %s, %v", et, got, err)
		}
	}
}

func TestParseDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":  "dep-1",
		"signer":    testutil.Investor1.String(),
		"timestamp": int64(testutil.T0),
		"sequence":  int64(7),
		"fund_id":   testutil.FundID.String(),
		"amount_e6": int64(1_000_000),
	}

	evt, err := ingestion.ParseRawEvent(ingestion.RawEvent{
		Subject: "fund.deposit." + testutil.FundID.String(),
		Data:    mustJSON(t, payload),
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	d, ok := evt.(*event.Deposit)
	if !ok {
		t.Fatalf("expected *event.Deposit, got %T", evt)
	}
	if d.AmountE6 != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", d.AmountE6)
	}
	if d.FundID != testutil.FundID || d.SignedBy() != testutil.Investor1 {
		t.Errorf("ids: fund %s signer %s", d.FundID, d.SignedBy())
	}
	if d.IdempotencyKey() != "dep-1" || d.SourceSequence() != 7 || d.EventTimestamp() != testutil.T0 {
		t.Errorf("meta = %+v", d.Meta)
	}
}

func TestParseFundCreatedFees(t *testing.T) {
	data := []byte(`{
		"event_id": "fc-1",
		"signer": "00000000-0000-0000-0000-0000000000c1",
		"timestamp": 1700000000,
		"fund_id": "00000000-0000-0000-0000-0000000000f1",
		"name": "Alpha",
		"fees": {"management_fee_bps": 200, "performance_fee_bps": 2000, "use_high_water_mark": false}
	}`)
	evt, err := ingestion.ParseEvent(event.EventTypeFundCreated, data)
	if err != nil {
		t.Fatal(err)
	}
	fc := evt.(*event.FundCreated)
	if fc.Fees.ManagementFeeBps != 200 || fc.Fees.PerformanceFeeBps != 2000 {
		t.Errorf("fees = %+v", fc.Fees)
	}
	if fc.Fees.UseHighWaterMark == nil || *fc.Fees.UseHighWaterMark {
		t.Errorf("use_high_water_mark = %v, want explicit false", fc.Fees.UseHighWaterMark)
	}
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	valid := `"event_id":"k","signer":"00000000-0000-0000-0000-0000000000d1","timestamp":1700000000`
	tests := []struct {
		name string
		et   event.EventType
		data string
		want string
	}{
		{"truncated", event.EventTypeDeposit, `{` + valid, "parse deposit"},
		{"unknown field", event.EventTypeDeposit, `{` + valid + `,"fund_id":"00000000-0000-0000-0000-0000000000f1","amount":5}`, "unknown field"},
		{"missing event id", event.EventTypePnLRecorded, `{"signer":"00000000-0000-0000-0000-0000000000b1","timestamp":1,"fund_id":"00000000-0000-0000-0000-0000000000f1","delta_e6":1}`, "event_id"},
		{"missing signer", event.EventTypeLiquidationIncome, `{"event_id":"k","timestamp":1,"amount_e6":1}`, "signer"},
		{"missing timestamp", event.EventTypeLiquidationIncome, `{"event_id":"k","signer":"00000000-0000-0000-0000-0000000000e1","amount_e6":1}`, "timestamp"},
		{"missing fund", event.EventTypeRedemption, `{` + valid + `,"shares":5}`, "fund_id"},
		{"bad uuid", event.EventTypeRedemption, `{` + valid + `,"fund_id":"f1","shares":5}`, "parse redemption"},
		{"trailing data", event.EventTypeInsuranceSnapshot, `{` + valid + `}{}`, "trailing"},
		{"unknown type", event.EventTypeUnknown, `{}`, "unknown event type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingestion.ParseEvent(tt.et, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestAPIIngestServiceSubmit(t *testing.T) {
	e, _, _ := testutil.NewEngine()
	svc := ingestion.NewAPIIngestService(e, nil, zerolog.Nop())
	ctx := context.Background()

	body := mustJSON(t, testutil.Scenario()[0])
	out, err := svc.Submit(ctx, "program_initialized", body)
	if err != nil {
		t.Fatal(err)
	}
	if out.Sequence != 1 || out.Duplicate {
		t.Errorf("outcome = %+v", out)
	}

	// The same body again is a duplicate, not an error.
	out, err = svc.Submit(ctx, "program_initialized", body)
	if err != nil || !out.Duplicate {
		t.Errorf("resubmit = %+v, %v", out, err)
	}

	if _, err := svc.Submit(ctx, "margin_call", body); !errors.Is(err, ingestion.ErrInvalidPayload) {
		t.Errorf("unknown type err = %v", err)
	}
	if _, err := svc.Submit(ctx, "deposit", []byte(`{"amount_e6":1}`)); !errors.Is(err, ingestion.ErrInvalidPayload) {
		t.Errorf("invalid payload err = %v", err)
	}

	// A well-formed deposit into a fund that does not exist is a ledger rejection.
	dep := mustJSON(t, &event.Deposit{Meta: testutil.Meta(testutil.Investor1, testutil.T0), FundID: testutil.FundID, AmountE6: 1_000_000})
	_, err = svc.Submit(ctx, "deposit", dep)
	if !errors.Is(err, errs.ErrFundNotInitialized) {
		t.Errorf("deposit into missing fund err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := svc.Submit(cancelled, "deposit", dep); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}

type publishCall struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	calls chan publishCall
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.calls <- publishCall{subject: subject, data: data}
	return &jetstream.PubAck{}, nil
}

func TestOutboundPublisher(t *testing.T) {
	e, persistChan, _ := testutil.NewEngine()
	testutil.ApplyScenario(t, e)
	outputs := testutil.Drain(persistChan)

	fake := &fakePublisher{calls: make(chan publishCall, len(outputs))}
	pub := ingestion.NewOutboundPublisher(fake, len(outputs), nil, zerolog.Nop())
	pub.Enqueue(outputs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	for i, want := range outputs {
		select {
		case call := <-fake.calls:
			p := ingestion.PublishableFromOutput(want)
			if call.subject != p.Subject() {
				t.Errorf("publish %d subject = %s, want %s", i, call.subject, p.Subject())
			}
			var got ingestion.PublishableEvent
			if err := json.Unmarshal(call.data, &got); err != nil {
				t.Fatal(err)
			}
			if got.Sequence != want.Envelope.Sequence {
				t.Errorf("publish %d sequence = %d, want %d", i, got.Sequence, want.Envelope.Sequence)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for publish %d", i)
		}
	}

	dep := ingestion.PublishableFromOutput(outputs[2])
	if want := "navledger.events.deposit." + testutil.FundID.String(); dep.Subject() != want {
		t.Errorf("deposit subject = %s, want %s", dep.Subject(), want)
	}
	if prog := ingestion.PublishableFromOutput(outputs[0]); prog.Subject() != "navledger.events.program_initialized" {
		t.Errorf("program subject = %s", prog.Subject())
	}
}

func TestOutboundPublisherDropsWhenFull(t *testing.T) {
	e, persistChan, _ := testutil.NewEngine()
	testutil.ApplyScenario(t, e)
	outputs := testutil.Drain(persistChan)

	fake := &fakePublisher{calls: make(chan publishCall, len(outputs))}
	pub := ingestion.NewOutboundPublisher(fake, 2, nil, zerolog.Nop())
	pub.Enqueue(outputs) // must not block with a queue of two

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-fake.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out")
		}
	}
	select {
	case call := <-fake.calls:
		t.Errorf("published beyond queue capacity: %s", call.subject)
	case <-time.After(50 * time.Millisecond):
	}
}
