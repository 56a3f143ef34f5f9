package query_test

import (
	"context"
	"errors"
	"testing"

	"NavLedger/internal/cache"
	"NavLedger/internal/errs"
	"NavLedger/internal/query"
	"NavLedger/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestParseE6(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1_000_000, false},
		{"1000.50", 1_000_500_000, false},
		{"0.000001", 1, false},
		{"-2.5", -2_500_000, false},
		{"0.0000001", 0, true},
		{"9223372036854.775808", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := query.ParseE6(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseE6(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseE6(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
			}
		})
	}

	if _, err := query.ParseSharesE6("-1"); err == nil {
		t.Error("negative shares accepted")
	}
}

func TestE6Rendering(t *testing.T) {
	if got := query.E6(1_000_500_000).String(); got != "1000.5" {
		t.Errorf("E6 = %s", got)
	}
	if got := query.E6(-1).String(); got != "-0.000001" {
		t.Errorf("E6(-1) = %s", got)
	}
	if got := query.SharesE6(^uint64(0)).String(); got != "18446744073709.551615" {
		t.Errorf("SharesE6(max) = %s", got)
	}
}

func TestViewsFromEngineState(t *testing.T) {
	e, _, _ := testutil.NewEngine()
	testutil.ApplyScenario(t, e)

	f, err := e.Fund(testutil.FundID)
	if err != nil {
		t.Fatal(err)
	}
	fr := query.FundFromState(&f, 42)
	if fr.Kind != "standard" || fr.AsOfSequence != 42 || fr.Name != "Alpha" {
		t.Errorf("fund view = %+v", fr)
	}
	tv, _ := f.TotalValue()
	if !fr.TotalValue.Equal(query.E6(tv)) || !fr.NAV.Equal(query.E6(f.Stats.CurrentNAVE6)) {
		t.Errorf("fund amounts = %s @ %s", fr.TotalValue, fr.NAV)
	}

	p, err := e.Position(testutil.FundID, testutil.Investor1)
	if err != nil {
		t.Fatal(err)
	}
	pr := query.PositionFromState(&p, f.Stats.CurrentNAVE6, 42)
	value, _ := p.CurrentValue(f.Stats.CurrentNAVE6)
	if !pr.CurrentValue.Equal(query.E6(value)) {
		t.Errorf("position value = %s, want %s", pr.CurrentValue, query.E6(value))
	}
	if !pr.UnrealizedPnL.IsPositive() {
		t.Errorf("investor 1 pnl = %s after a profitable period", pr.UnrealizedPnL)
	}

	b, err := e.Insurance()
	if err != nil {
		t.Fatal(err)
	}
	ir := query.InsuranceFromState(&b, e.VaultBalance(testutil.InsFundID), 42)
	if !ir.TotalLiquidationIncome.Equal(query.E6(10_000_000)) {
		t.Errorf("liquidation income = %s", ir.TotalLiquidationIncome)
	}
	if ir.AuthorizedCaller != testutil.InsCaller {
		t.Errorf("caller = %s", ir.AuthorizedCaller)
	}
}

// fakeReader counts calls and serves canned responses.
type fakeReader struct {
	calls map[string]int
	fund  *query.FundResponse
	err   error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		calls: make(map[string]int),
		fund:  &query.FundResponse{FundID: testutil.FundID, Name: "Alpha", NAV: query.E6(1_100_000)},
	}
}

func (f *fakeReader) GetFund(context.Context, uuid.UUID) (*query.FundResponse, error) {
	f.calls["fund"]++
	if f.err != nil {
		return nil, f.err
	}
	return f.fund, nil
}

func (f *fakeReader) GetPosition(context.Context, uuid.UUID, uuid.UUID) (*query.PositionResponse, error) {
	f.calls["position"]++
	return &query.PositionResponse{Shares: query.SharesE6(5)}, nil
}

func (f *fakeReader) GetInvestorPositions(context.Context, uuid.UUID) ([]query.PositionResponse, error) {
	f.calls["investor"]++
	return []query.PositionResponse{{FundID: testutil.FundID}}, nil
}

func (f *fakeReader) GetInsurance(context.Context) (*query.InsuranceResponse, error) {
	f.calls["insurance"]++
	return &query.InsuranceResponse{FundID: testutil.InsFundID}, nil
}

func (f *fakeReader) GetNAVHistory(context.Context, uuid.UUID, int, *int64) (*query.NAVHistoryResponse, error) {
	f.calls["nav_history"]++
	return &query.NAVHistoryResponse{}, nil
}

func (f *fakeReader) GetJournalHistory(context.Context, string, int, *int64) ([]query.JournalEntry, error) {
	f.calls["journal"]++
	return nil, nil
}

func (f *fakeReader) VerifyIntegrity(context.Context) (*query.IntegrityReport, error) {
	f.calls["integrity"]++
	return &query.IntegrityReport{IsHealthy: true}, nil
}

func TestCachedQueryServiceReadThrough(t *testing.T) {
	ctx := context.Background()
	next := newFakeReader()
	store := cache.NewMemoryStore()
	svc := query.NewCachedQueryService(next, store, 0, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		got, err := svc.GetFund(ctx, testutil.FundID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Alpha" || !got.NAV.Equal(query.E6(1_100_000)) {
			t.Errorf("cached fund = %+v", got)
		}
	}
	if next.calls["fund"] != 1 {
		t.Errorf("backing reads = %d, want 1", next.calls["fund"])
	}

	// Invalidation by the projection worker forces a reload.
	if err := store.Del(ctx, cache.FundKey(testutil.FundID)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetFund(ctx, testutil.FundID); err != nil {
		t.Fatal(err)
	}
	if next.calls["fund"] != 2 {
		t.Errorf("backing reads after invalidation = %d, want 2", next.calls["fund"])
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.GetInvestorPositions(ctx, testutil.Investor1); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.GetNAVHistory(ctx, testutil.FundID, 10, nil); err != nil {
			t.Fatal(err)
		}
	}
	if next.calls["investor"] != 1 {
		t.Errorf("investor reads = %d, want 1", next.calls["investor"])
	}
	if next.calls["nav_history"] != 2 {
		t.Errorf("history reads = %d, want 2 (uncached)", next.calls["nav_history"])
	}
}

func TestCachedQueryServiceDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	next := newFakeReader()
	next.err = errs.ErrFundNotInitialized
	store := cache.NewMemoryStore()
	svc := query.NewCachedQueryService(next, store, 0, nil, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := svc.GetFund(ctx, testutil.FundID); !errors.Is(err, errs.ErrFundNotInitialized) {
			t.Fatalf("err = %v", err)
		}
	}
	if next.calls["fund"] != 2 || store.Len() != 0 {
		t.Errorf("calls = %d, cached = %d", next.calls["fund"], store.Len())
	}
}

func TestCachedQueryServiceIgnoresCorruptEntries(t *testing.T) {
	ctx := context.Background()
	next := newFakeReader()
	store := cache.NewMemoryStore()
	if err := store.Set(ctx, cache.FundKey(testutil.FundID), []byte("{not json"), 0); err != nil {
		t.Fatal(err)
	}
	svc := query.NewCachedQueryService(next, store, 0, nil, zerolog.Nop())

	got, err := svc.GetFund(ctx, testutil.FundID)
	if err != nil || got.Name != "Alpha" {
		t.Fatalf("fund = %+v, %v", got, err)
	}
	if next.calls["fund"] != 1 {
		t.Errorf("backing reads = %d", next.calls["fund"])
	}
}
