package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/query"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/shopspring/decimal"
)

const maxEventBody = 1 << 20

type route struct {
	method   string
	pattern  string
	endpoint string
	fn       handlerFunc
}

// handlerFunc returns the response body, or an error mapped by statusFor.
type handlerFunc func(r *http.Request, params map[string]string) (any, error)

type api struct {
	deps *ServerDeps
}

// NewMux registers every JSON route on a grpc-gateway ServeMux.
func NewMux(deps *ServerDeps) (*runtime.ServeMux, error) {
	a := &api{deps: deps}
	mux := runtime.NewServeMux()

	routes := []route{
		{"GET", "/v1/funds/{fund_id}", "get_fund", a.getFund},
		{"GET", "/v1/funds/{fund_id}/positions/{investor}", "get_position", a.getPosition},
		{"GET", "/v1/investors/{investor}/positions", "investor_positions", a.investorPositions},
		{"GET", "/v1/insurance", "get_insurance", a.getInsurance},
		{"GET", "/v1/funds/{fund_id}/nav-history", "nav_history", a.navHistory},
		{"GET", "/v1/journal", "journal", a.journal},
		{"POST", "/v1/events/{type}", "submit_event", a.submitEvent},
		{"GET", "/v1/funds/{fund_id}/quote/deposit", "quote_deposit", a.quoteDeposit},
		{"GET", "/v1/funds/{fund_id}/quote/redeem", "quote_redeem", a.quoteRedeem},
		{"GET", "/v1/insurance/adl-check", "adl_check", a.adlCheck},
		{"GET", "/v1/admin/integrity", "verify_integrity", a.verifyIntegrity},
		{"GET", "/v1/admin/event-log", "event_log_info", a.eventLogInfo},
		{"POST", "/v1/admin/snapshots", "take_snapshot", a.takeSnapshot},
		{"POST", "/v1/admin/projections/rebuild", "rebuild_projections", a.rebuildProjections},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, a.handle(rt.endpoint, rt.fn)); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}

	if hc := deps.HealthChecker; hc != nil {
		if err := mux.HandlePath("GET", "/healthz", plain(hc.LivenessHandler)); err != nil {
			return nil, err
		}
		if err := mux.HandlePath("GET", "/readyz", plain(hc.ReadinessHandler)); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func plain(h http.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) { h(w, r) }
}

func (a *api) handle(endpoint string, fn handlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()

		status := http.StatusOK
		body, err := fn(r, params)
		if err != nil {
			var e errorBody
			status, e = statusFor(err)
			if status >= http.StatusInternalServerError {
				a.deps.Logger.Error().Err(err).Str("endpoint", endpoint).Msg("request failed")
			}
			if m := a.deps.Metrics; m != nil {
				m.QueryErrors.WithLabelValues(endpoint, e.Code).Inc()
			}
			body = e
		}
		writeJSON(w, status, body)

		if m := a.deps.Metrics; m != nil {
			m.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			m.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// --- reads ---

func (a *api) getFund(r *http.Request, p map[string]string) (any, error) {
	fundID, err := uuidParam(p, "fund_id")
	if err != nil {
		return nil, err
	}
	return a.deps.Query.GetFund(r.Context(), fundID)
}

func (a *api) getPosition(r *http.Request, p map[string]string) (any, error) {
	fundID, err := uuidParam(p, "fund_id")
	if err != nil {
		return nil, err
	}
	investor, err := uuidParam(p, "investor")
	if err != nil {
		return nil, err
	}
	return a.deps.Query.GetPosition(r.Context(), fundID, investor)
}

func (a *api) investorPositions(r *http.Request, p map[string]string) (any, error) {
	investor, err := uuidParam(p, "investor")
	if err != nil {
		return nil, err
	}
	return a.deps.Query.GetInvestorPositions(r.Context(), investor)
}

func (a *api) getInsurance(r *http.Request, _ map[string]string) (any, error) {
	return a.deps.Query.GetInsurance(r.Context())
}

func (a *api) navHistory(r *http.Request, p map[string]string) (any, error) {
	fundID, err := uuidParam(p, "fund_id")
	if err != nil {
		return nil, err
	}
	limit, before, err := pageParams(r)
	if err != nil {
		return nil, err
	}
	return a.deps.Query.GetNAVHistory(r.Context(), fundID, limit, before)
}

func (a *api) journal(r *http.Request, _ map[string]string) (any, error) {
	account := r.URL.Query().Get("account")
	if account == "" {
		return nil, badRequest("account is required")
	}
	limit, before, err := pageParams(r)
	if err != nil {
		return nil, err
	}
	return a.deps.Query.GetJournalHistory(r.Context(), account, limit, before)
}

// --- live engine ---

func (a *api) quoteDeposit(r *http.Request, p map[string]string) (any, error) {
	fundID, err := uuidParam(p, "fund_id")
	if err != nil {
		return nil, err
	}
	amount, err := query.ParseE6(r.URL.Query().Get("amount"))
	if err != nil {
		return nil, badRequest(err.Error())
	}
	shares, nav, err := a.deps.Live.QuoteDeposit(fundID, amount)
	if err != nil {
		return nil, err
	}
	return &query.DepositQuote{FundID: fundID, Amount: query.E6(amount), Shares: query.SharesE6(shares), NAV: query.E6(nav)}, nil
}

func (a *api) quoteRedeem(r *http.Request, p map[string]string) (any, error) {
	fundID, err := uuidParam(p, "fund_id")
	if err != nil {
		return nil, err
	}
	shares, err := query.ParseSharesE6(r.URL.Query().Get("shares"))
	if err != nil {
		return nil, badRequest(err.Error())
	}
	value, nav, err := a.deps.Live.QuoteRedeem(fundID, shares)
	if err != nil {
		return nil, err
	}
	return &query.RedeemQuote{FundID: fundID, Shares: query.SharesE6(shares), Value: query.E6(value), NAV: query.E6(nav)}, nil
}

func (a *api) adlCheck(r *http.Request, _ map[string]string) (any, error) {
	shortfall, err := query.ParseE6(r.URL.Query().Get("shortfall"))
	if err != nil {
		return nil, badRequest(err.Error())
	}
	reason, balance, err := a.deps.Live.CheckADL(shortfall)
	if err != nil {
		return nil, err
	}
	return &query.ADLCheckResponse{
		Shortfall: query.E6(shortfall),
		Balance:   query.E6(balance),
		Reason:    reason.String(),
		ShouldADL: reason.ShouldADL(),
	}, nil
}

// eventResult is the synchronous response to an injected event.
type eventResult struct {
	Sequence        int64           `json:"sequence"`
	StateHash       string          `json:"state_hash,omitempty"`
	Duplicate       bool            `json:"duplicate"`
	Shares          decimal.Decimal `json:"shares"`
	Value           decimal.Decimal `json:"value"`
	NAV             decimal.Decimal `json:"nav"`
	NewPosition     bool            `json:"new_position,omitempty"`
	PositionEmptied bool            `json:"position_emptied,omitempty"`
	ManagementFee   decimal.Decimal `json:"management_fee"`
	PerformanceFee  decimal.Decimal `json:"performance_fee"`
	Covered         decimal.Decimal `json:"covered"`
	Remaining       decimal.Decimal `json:"remaining"`
	TriggerReason   string          `json:"trigger_reason,omitempty"`
}

func resultFromOutcome(out *core.Outcome) *eventResult {
	res := &eventResult{
		Sequence:        out.Sequence,
		Duplicate:       out.Duplicate,
		Shares:          query.SharesE6(out.Shares),
		Value:           query.E6(out.ValueE6),
		NAV:             query.E6(out.NAVE6),
		NewPosition:     out.NewPosition,
		PositionEmptied: out.PositionEmptied,
		ManagementFee:   query.E6(out.ManagementFeeE6),
		PerformanceFee:  query.E6(out.PerformanceFeeE6),
		Covered:         query.E6(out.CoveredE6),
		Remaining:       query.E6(out.RemainingE6),
	}
	if !out.Duplicate {
		res.StateHash = hex.EncodeToString(out.StateHash[:])
	}
	if out.TriggerReason.ShouldADL() {
		res.TriggerReason = out.TriggerReason.String()
	}
	return res
}

func (a *api) submitEvent(r *http.Request, p map[string]string) (any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxEventBody))
	if err != nil {
		return nil, badRequest("read body: " + err.Error())
	}
	out, err := a.deps.Ingest.Submit(r.Context(), p["type"], body)
	if err != nil {
		return nil, err
	}
	return resultFromOutcome(out), nil
}

// --- admin ---

func (a *api) verifyIntegrity(r *http.Request, _ map[string]string) (any, error) {
	return a.deps.Query.VerifyIntegrity(r.Context())
}

func (a *api) eventLogInfo(r *http.Request, _ map[string]string) (any, error) {
	seq, err := a.deps.Admin.LatestSequence(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]int64{"last_sequence": seq}, nil
}

func (a *api) takeSnapshot(r *http.Request, _ map[string]string) (any, error) {
	seq, size, err := a.deps.Admin.TakeSnapshot(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]int64{"sequence": seq, "size_bytes": int64(size)}, nil
}

func (a *api) rebuildProjections(r *http.Request, _ map[string]string) (any, error) {
	n, err := a.deps.Admin.RebuildProjections(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]int64{"events_replayed": n}, nil
}

// --- params ---

func uuidParam(p map[string]string, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(p[name])
	if err != nil {
		return uuid.Nil, badRequest(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return id, nil
}

func pageParams(r *http.Request) (int, *int64, error) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, nil, badRequest("invalid limit")
		}
		limit = v
	}
	var before *int64
	if s := q.Get("before"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, nil, badRequest("invalid before cursor")
		}
		before = &v
	}
	return limit, before, nil
}
