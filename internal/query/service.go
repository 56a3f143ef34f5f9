package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"NavLedger/internal/custody"
	"NavLedger/internal/errs"
	"NavLedger/internal/state"

	"github.com/google/uuid"
)

// DefaultHistoryLimit and MaxHistoryLimit bound NAV history and journal pages.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Reader is the read surface served over HTTP. QueryService reads the
// projections; CachedQueryService decorates it with Redis.
type Reader interface {
	GetFund(ctx context.Context, fundID uuid.UUID) (*FundResponse, error)
	GetPosition(ctx context.Context, fundID, investor uuid.UUID) (*PositionResponse, error)
	GetInvestorPositions(ctx context.Context, investor uuid.UUID) ([]PositionResponse, error)
	GetInsurance(ctx context.Context) (*InsuranceResponse, error)
	GetNAVHistory(ctx context.Context, fundID uuid.UUID, limit int, before *int64) (*NAVHistoryResponse, error)
	GetJournalHistory(ctx context.Context, accountPrefix string, limit int, before *int64) ([]JournalEntry, error)
	VerifyIntegrity(ctx context.Context) (*IntegrityReport, error)
}

// QueryService provides read-only access to projection tables. Every
// response carries as_of_sequence, the projection watermark at read time.
type QueryService struct {
	db *sql.DB
}

var _ Reader = (*QueryService)(nil)

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

const fundColumns = `
	f.fund_id, f.manager, f.name, f.fund_index, f.kind,
	f.management_fee_bps, f.performance_fee_bps, f.use_high_water_mark, f.fee_interval_secs,
	f.total_deposits_e6, f.total_withdrawals_e6, f.total_realized_pnl_e6,
	f.total_management_fee_e6, f.total_performance_fee_e6,
	f.total_shares, f.current_nav_e6, f.high_water_mark_e6, f.last_fee_collection_ts, f.lp_count,
	f.is_open, f.is_paused, f.is_closed, f.created_at, f.last_update_ts, f.version`

func scanFund(row interface{ Scan(...any) error }) (*state.Fund, error) {
	var f state.Fund
	var kind string
	s := &f.Stats
	if err := row.Scan(
		&f.ID, &f.Manager, &f.Name, &f.Index, &kind,
		&f.FeeConfig.ManagementFeeBps, &f.FeeConfig.PerformanceFeeBps,
		&f.FeeConfig.UseHighWaterMark, &f.FeeConfig.FeeCollectionIntervalSecs,
		&s.TotalDepositsE6, &s.TotalWithdrawalsE6, &s.TotalRealizedPnLE6,
		&s.TotalManagementFeeE6, &s.TotalPerformanceFeeE6,
		&s.TotalShares, &s.CurrentNAVE6, &s.HighWaterMarkE6, &s.LastFeeCollectionTs, &s.LPCount,
		&f.IsOpen, &f.IsPaused, &f.IsClosed, &f.CreatedAt, &f.LastUpdateTs, &f.Version,
	); err != nil {
		return nil, err
	}
	if kind == state.FundKindInsurance.String() {
		f.Kind = state.FundKindInsurance
	}
	return &f, nil
}

// GetFund returns the fund view.
func (qs *QueryService) GetFund(ctx context.Context, fundID uuid.UUID) (*FundResponse, error) {
	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	f, err := scanFund(qs.db.QueryRowContext(ctx,
		`SELECT `+fundColumns+` FROM projections.funds f WHERE f.fund_id = $1`, fundID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Newf(errs.CodeFundNotInitialized, "fund %s", fundID)
	}
	if err != nil {
		return nil, err
	}
	return FundFromState(f, asOf), nil
}

const positionColumns = `
	p.fund_id, p.investor, p.shares, p.deposit_nav_e6, p.total_deposited_e6, p.total_withdrawn_e6,
	p.deposited_at, p.last_update_ts, p.version, f.current_nav_e6`

func scanPosition(row interface{ Scan(...any) error }) (*state.LPPosition, int64, error) {
	var p state.LPPosition
	var nav int64
	if err := row.Scan(
		&p.FundID, &p.Investor, &p.Shares, &p.DepositNAVE6, &p.TotalDepositedE6, &p.TotalWithdrawnE6,
		&p.DepositedAt, &p.LastUpdateTs, &p.Version, &nav,
	); err != nil {
		return nil, 0, err
	}
	return &p, nav, nil
}

// GetPosition returns one investor's position valued at the fund's projected NAV.
func (qs *QueryService) GetPosition(ctx context.Context, fundID, investor uuid.UUID) (*PositionResponse, error) {
	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	p, nav, err := scanPosition(qs.db.QueryRowContext(ctx, `
		SELECT `+positionColumns+`
		FROM projections.lp_positions p
		JOIN projections.funds f ON f.fund_id = p.fund_id
		WHERE p.fund_id = $1 AND p.investor = $2
	`, fundID, investor))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Newf(errs.CodeLPPositionNotFound, "fund %s investor %s", fundID, investor)
	}
	if err != nil {
		return nil, err
	}
	return PositionFromState(p, nav, asOf), nil
}

// GetInvestorPositions returns the investor's non-empty positions across funds.
func (qs *QueryService) GetInvestorPositions(ctx context.Context, investor uuid.UUID) ([]PositionResponse, error) {
	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT `+positionColumns+`
		FROM projections.lp_positions p
		JOIN projections.funds f ON f.fund_id = p.fund_id
		WHERE p.investor = $1 AND p.shares > 0
		ORDER BY f.fund_index
	`, investor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]PositionResponse, 0)
	for rows.Next() {
		p, nav, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *PositionFromState(p, nav, asOf))
	}
	return positions, rows.Err()
}

// GetInsurance returns the insurance buffer view.
func (qs *QueryService) GetInsurance(ctx context.Context) (*InsuranceResponse, error) {
	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var b state.InsuranceBuffer
	var balance int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT i.fund_id, i.total_liquidation_income_e6, i.total_adl_profit_e6, i.total_shortfall_payout_e6,
		       i.adl_trigger_threshold_e6, i.adl_trigger_count, i.is_adl_in_progress, i.balance_1h_ago_e6,
		       i.last_snapshot_ts, i.withdrawal_delay_secs, i.authorized_caller, i.last_update_ts, i.version,
		       COALESCE(f.total_value_e6, 0)
		FROM projections.insurance i
		LEFT JOIN projections.funds f ON f.fund_id = i.fund_id
		WHERE i.id = 1
	`).Scan(
		&b.FundID, &b.TotalLiquidationIncomeE6, &b.TotalADLProfitE6, &b.TotalShortfallPayoutE6,
		&b.ADLTriggerThresholdE6, &b.ADLTriggerCount, &b.IsADLInProgress, &b.Balance1hAgoE6,
		&b.LastSnapshotTs, &b.WithdrawalDelaySecs, &b.AuthorizedCaller, &b.LastUpdateTs, &b.Version,
		&balance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrInsuranceFundNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return InsuranceFromState(&b, balance, asOf), nil
}

// GetNAVHistory returns NAV points newest first, strictly before the cursor when given.
func (qs *QueryService) GetNAVHistory(ctx context.Context, fundID uuid.UUID, limit int, before *int64) (*NAVHistoryResponse, error) {
	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	limit = clampLimit(limit)

	query := `
		SELECT sequence, event_type, nav_e6, total_value_e6, total_shares, timestamp
		FROM projections.nav_history
		WHERE fund_id = $1
	`
	args := []any{fundID}
	if before != nil {
		query += " AND sequence < $2"
		args = append(args, *before)
	}
	query += fmt.Sprintf(" ORDER BY sequence DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &NAVHistoryResponse{FundID: fundID, Points: make([]NAVPoint, 0), AsOfSequence: asOf}
	for rows.Next() {
		var (
			p       NAVPoint
			nav, tv int64
			shares  uint64
		)
		if err := rows.Scan(&p.Sequence, &p.EventType, &nav, &tv, &shares, &p.Timestamp); err != nil {
			return nil, err
		}
		p.NAV, p.TotalValue, p.TotalShares = E6(nav), E6(tv), SharesE6(shares)
		resp.Points = append(resp.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(resp.Points) == limit {
		cursor := resp.Points[len(resp.Points)-1].Sequence
		resp.NextCursor = &cursor
	}
	return resp, nil
}

// GetJournalHistory returns journal lines whose debit or credit account path
// starts with accountPrefix, newest first.
func (qs *QueryService) GetJournalHistory(ctx context.Context, accountPrefix string, limit int, before *int64) ([]JournalEntry, error) {
	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []any{likePrefix(accountPrefix)}
	if before != nil {
		query += " AND sequence < $2"
		args = append(args, *before)
	}
	query += fmt.Sprintf(" ORDER BY sequence DESC LIMIT $%d", len(args)+1)
	args = append(args, clampLimit(limit))

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]JournalEntry, 0)
	for rows.Next() {
		var e JournalEntry
		var amount int64
		var jt int32
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &amount,
			&jt, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		e.Amount = E6(amount)
		e.JournalType = custody.JournalType(jt).String()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VerifyIntegrity checks hash chain continuity in the event log and that
// every projected fund vault matches the journal.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	asOf, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	report := &IntegrityReport{AsOfSequence: asOf}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash <> e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			rows.Close()
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Journals up to the watermark must reproduce each projected vault.
	vaultRows, err := qs.db.QueryContext(ctx, `
		WITH legs AS (
			SELECT debit_account AS account, amount FROM event_log.journal WHERE sequence <= $1
			UNION ALL
			SELECT credit_account, -amount FROM event_log.journal WHERE sequence <= $1
		), vaults AS (
			SELECT split_part(account, ':', 2)::UUID AS fund_id, SUM(amount)::BIGINT AS balance
			FROM legs
			WHERE account LIKE 'fund:%:vault'
			GROUP BY 1
		)
		SELECT f.fund_id, COALESCE(v.balance, 0), f.total_value_e6
		FROM projections.funds f
		LEFT JOIN vaults v ON v.fund_id = f.fund_id
		WHERE COALESCE(v.balance, 0) <> f.total_value_e6
		ORDER BY f.fund_index
	`, asOf)
	if err != nil {
		return nil, err
	}
	defer vaultRows.Close()

	for vaultRows.Next() {
		var m VaultMismatch
		if err := vaultRows.Scan(&m.FundID, &m.Journaled, &m.Projected); err != nil {
			return nil, err
		}
		report.VaultMismatches = append(report.VaultMismatches, m)
	}
	if err := vaultRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.VaultMismatches) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE projection_name = 'main'
	`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// likePrefix escapes LIKE metacharacters in p and appends the wildcard.
func likePrefix(p string) string {
	out := make([]byte, 0, len(p)+1)
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, p[i])
	}
	return string(append(out, '%'))
}
