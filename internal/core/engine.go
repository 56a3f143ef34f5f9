package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"NavLedger/internal/custody"
	"NavLedger/internal/errs"
	"NavLedger/internal/event"
	"NavLedger/internal/observability"
	"NavLedger/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// globalCheckInterval is how often (in sequences) the zero-sum check over
// every custody account runs. Per-fund checks run on every event.
const globalCheckInterval = 1000

// Engine is the deterministic event processor. It owns all ledger state.
// Every mutation goes through ProcessEvent; reads take the same lock.
type Engine struct {
	mu sync.Mutex

	sequence          int64
	hasher            *StateHasher
	balanceTracker    *custody.BalanceTracker
	journalGen        *custody.JournalGenerator
	validator         *custody.InvariantValidator
	authorizer        Authorizer
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	logger            zerolog.Logger

	replaying bool

	clock int64 // latest applied event time; event times never go backwards

	// wallClock bounds how far ahead of real time an event may be stamped.
	// Nil disables the bound; replay always skips it.
	wallClock func() time.Time
	maxSkew   time.Duration

	program *state.ProgramConfig // nil until ProgramInitialized
	book    *state.FundBook
	buffer  *state.InsuranceBuffer // nil until InsuranceInitialized

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is what the engine emits per applied event.
type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *custody.Batch
	StateDelta []byte
	Views      *StateViews
}

// StateViews are post-event copies of the entities an event touched,
// consumed by projections without reaching back into the engine.
type StateViews struct {
	Program  *state.ProgramConfig
	Fund     *state.Fund
	Position *state.LPPosition
	Buffer   *state.InsuranceBuffer
}

// Outcome reports the values an event derived. Fields not relevant to the
// event type are zero.
type Outcome struct {
	Sequence  int64
	StateHash [32]byte
	Duplicate bool

	FundID           uuid.UUID
	Shares           uint64
	ValueE6          int64
	NAVE6            int64
	NewPosition      bool
	PositionEmptied  bool
	ManagementFeeE6  int64
	PerformanceFeeE6 int64
	CoveredE6        int64
	RemainingE6      int64
	TriggerReason    state.ADLTriggerReason
}

// NewEngine builds an empty engine. persistChan and projectionChan may be nil
// when the caller consumes Outcomes directly.
func NewEngine(
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Engine {
	balanceTracker := custody.NewBalanceTracker()

	return &Engine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		balanceTracker:    balanceTracker,
		journalGen:        custody.NewJournalGenerator(startSequence, balanceTracker),
		validator:         custody.NewInvariantValidator(balanceTracker),
		idempotency:       NewIdempotencyChecker(DefaultDedupCapacity, dbChecker, metrics, logger),
		sequenceValidator: NewSequenceValidator(metrics),
		metrics:           metrics,
		logger:            logger,
		book:              state.NewFundBook(),
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// SetWallClock rejects live events stamped more than maxSkew after now().
func (e *Engine) SetWallClock(now func() time.Time, maxSkew time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wallClock = now
	e.maxSkew = maxSkew
}

// Clock returns the latest applied event time.
func (e *Engine) Clock() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// checkTimestamp keeps event time monotonic and close to the wall clock.
func (e *Engine) checkTimestamp(ts int64) error {
	if ts < e.clock {
		return errs.Newf(errs.CodeStaleTimestamp, "ts=%d clock=%d", ts, e.clock)
	}
	if e.replaying || e.wallClock == nil {
		return nil
	}
	limit := e.wallClock().Add(e.maxSkew).Unix()
	if ts > limit {
		return errs.Newf(errs.CodeFutureTimestamp, "ts=%d limit=%d", ts, limit)
	}
	return nil
}

// applyCtx collects what one event touched while it is being applied.
type applyCtx struct {
	ref    string
	ts     int64
	signer uuid.UUID
	out    *Outcome

	fund     *state.Fund
	position *state.LPPosition
	buffer   bool
}

// ProcessEvent runs one event through dedup, ordering, authorization, the
// ledger core, custody and the hash chain. Ledger errors are returned and
// leave state untouched. A broken invariant after a successful mutation panics.
func (e *Engine) ProcessEvent(evt event.Event) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processLocked(evt)
}

func (e *Engine) processLocked(evt event.Event) (*Outcome, error) {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	if idempotencyKey == "" {
		e.recordRejection(eventType, "missing_key")
		return nil, fmt.Errorf("%s: missing idempotency key", eventType)
	}

	// Step 1: two-tier dedup
	var isDuplicate bool
	if e.replaying {
		isDuplicate = e.idempotency.IsCached(eventType, idempotencyKey)
	} else {
		isDuplicate = e.idempotency.IsDuplicate(eventType, idempotencyKey)
	}

	// Step 2: upstream ordering
	if err := e.sequenceValidator.ValidateSequence(partitionOf(evt), evt.SourceSequence(), isDuplicate); err != nil {
		e.recordRejection(eventType, "sequence")
		return nil, fmt.Errorf("sequence validation failed: %w", err)
	}

	if isDuplicate {
		e.recordRejection(eventType, "duplicate")
		return &Outcome{Duplicate: true}, nil
	}

	if err := e.checkTimestamp(evt.EventTimestamp()); err != nil {
		e.recordRejection(eventType, reasonOf(err))
		return nil, err
	}

	// Step 3: authorization
	if err := e.authorizer.Authorize(evt, e.program, e.book, e.buffer); err != nil {
		e.recordRejection(eventType, reasonOf(err))
		return nil, err
	}

	// Step 4: ledger core + custody batch
	ac := &applyCtx{
		ref:    CompositeKey(eventType, idempotencyKey),
		ts:     evt.EventTimestamp(),
		signer: evt.SignedBy(),
		out:    &Outcome{},
	}
	e.journalGen.SetSequence(e.sequence)

	batch, err := e.dispatchEvent(ac, evt)
	if err != nil {
		e.recordRejection(eventType, reasonOf(err))
		return nil, err
	}

	// Step 5: apply custody movements
	if len(batch.Journals) > 0 {
		if err := e.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := e.balanceTracker.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: apply batch after committed state change: %v", err))
		}
	}

	// Step 6: post-checks
	if err := e.postCheckInvariants(ac); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 7: hash chain
	stateDigest := e.computeStateDigest(batch, ac)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: encode %s payload: %v", eventType, err))
	}

	envelope := &event.EventEnvelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		FundID:         evt.FundRef(),
		Timestamp:      time.Unix(ac.ts, 0).UTC(),
		SourceSequence: evt.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	// Step 8: emit. Persist blocks (backpressure); projection drops when full
	// and is rebuilt from the event log.
	e.emit(CoreOutput{
		Envelope:   envelope,
		Batch:      batch,
		StateDelta: stateDigest,
		Views:      e.viewsOf(ac),
	})

	e.idempotency.MarkProcessed(eventType, idempotencyKey)

	out := ac.out
	out.Sequence = e.sequence
	out.StateHash = stateHash
	e.sequence++
	e.clock = ac.ts

	e.recordApplied(eventType, batch, ac, start)

	e.logger.Debug().
		Int64("sequence", out.Sequence).
		Str("event_type", eventType).
		Str("idempotency_key", idempotencyKey).
		Int("journals", len(batch.Journals)).
		Msg("event applied")

	return out, nil
}

func (e *Engine) emit(output CoreOutput) {
	if e.replaying {
		return
	}
	if e.persistChan != nil {
		select {
		case e.persistChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- output
		}
	}

	if e.projectionChan != nil {
		select {
		case e.projectionChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.WithLabelValues("all").Inc()
			}
		}
	}
}

func (e *Engine) dispatchEvent(ac *applyCtx, evt event.Event) (*custody.Batch, error) {
	switch ev := evt.(type) {
	case *event.ProgramInitialized:
		return e.handleProgramInitialized(ac, ev)
	case *event.ProgramPaused:
		return e.handleProgramPaused(ac, ev)
	case *event.AuthorityUpdated:
		return e.handleAuthorityUpdated(ac, ev)
	case *event.FundCreated:
		return e.handleFundCreated(ac, ev)
	case *event.FundFeeConfigUpdated:
		return e.handleFundFeeConfigUpdated(ac, ev)
	case *event.FundOpenSet:
		return e.handleFundOpenSet(ac, ev)
	case *event.FundPausedSet:
		return e.handleFundPausedSet(ac, ev)
	case *event.FundClosed:
		return e.handleFundClosed(ac, ev)
	case *event.Deposit:
		return e.handleDeposit(ac, ev)
	case *event.Redemption:
		return e.handleRedemption(ac, ev)
	case *event.PnLRecorded:
		return e.handlePnLRecorded(ac, ev)
	case *event.FeesCollected:
		return e.handleFeesCollected(ac, ev)
	case *event.InsuranceInitialized:
		return e.handleInsuranceInitialized(ac, ev)
	case *event.InsuranceConfigUpdated:
		return e.handleInsuranceConfigUpdated(ac, ev)
	case *event.LiquidationIncome:
		return e.handleInsuranceIncome(ac, ev.AmountE6, custody.JournalTypeLiquidationIncome)
	case *event.ADLProfit:
		return e.handleInsuranceIncome(ac, ev.AmountE6, custody.JournalTypeADLProfit)
	case *event.TradingFee:
		return e.handleInsuranceIncome(ac, ev.AmountE6, custody.JournalTypeTradingFee)
	case *event.ShortfallCoverage:
		return e.handleShortfallCoverage(ac, ev)
	case *event.InsuranceSnapshot:
		return e.handleInsuranceSnapshot(ac, ev)
	case *event.ADLStatusSet:
		return e.handleADLStatusSet(ac, ev)
	case *event.ADLTriggerCheck:
		return e.handleADLTriggerCheck(ac, ev)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// partitionOf determines the ordering partition: per fund, or global.
func partitionOf(evt event.Event) string {
	if fundID := evt.FundRef(); fundID != nil {
		return "fund:" + fundID.String()
	}
	return "global"
}

// reasonOf labels a rejection by error code, or "internal" for uncoded errors.
func reasonOf(err error) string {
	if code, ok := errs.CodeOf(err); ok {
		return code.String()
	}
	return "internal"
}

// postCheckInvariants verifies the touched fund against custody after every
// event, and the global zero-sum periodically.
func (e *Engine) postCheckInvariants(ac *applyCtx) error {
	if f := ac.fund; f != nil {
		if err := e.book.CheckConservation(f.ID); err != nil {
			return err
		}
		if err := e.validator.ValidateShareSupply(f.ID, f.Stats.TotalShares); err != nil {
			return err
		}
		// A closed fund's vault has been swept; its stats keep the history.
		if !f.IsClosed {
			total, err := f.TotalValue()
			if err != nil {
				return err
			}
			if err := e.validator.ValidateVault(f.ID, total); err != nil {
				return err
			}
		}
	}

	if p := ac.position; p != nil {
		if err := e.validator.ValidateInvestorShares(p.Investor, p.FundID, p.Shares); err != nil {
			return err
		}
	}

	if e.sequence > 0 && e.sequence%globalCheckInterval == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("at seq %d: %w", e.sequence, err)
		}
	}
	return nil
}

// computeStateDigest serializes every account the batch moved plus the
// canonical bytes of each entity the event touched.
func (e *Engine) computeStateDigest(batch *custody.Batch, ac *applyCtx) []byte {
	affected := make(map[custody.AccountKey]bool)
	for _, j := range batch.Journals {
		affected[j.DebitAccount] = true
		affected[j.CreditAccount] = true
	}

	accounts := make([]custody.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64+256)
	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, path...)
		digest = appendInt64LE(digest, e.balanceTracker.GetBalance(key))
	}

	if e.program != nil {
		digest = append(digest, e.program.CanonicalBytes()...)
	}
	if ac.fund != nil {
		digest = append(digest, ac.fund.CanonicalBytes()...)
	}
	if ac.position != nil {
		digest = append(digest, ac.position.CanonicalBytes()...)
	}
	if ac.buffer && e.buffer != nil {
		digest = append(digest, e.buffer.CanonicalBytes()...)
	}
	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func (e *Engine) viewsOf(ac *applyCtx) *StateViews {
	v := &StateViews{}
	if e.program != nil {
		p := *e.program
		v.Program = &p
	}
	if ac.fund != nil {
		f := *ac.fund
		v.Fund = &f
	}
	if ac.position != nil {
		p := *ac.position
		v.Position = &p
	}
	if ac.buffer && e.buffer != nil {
		b := *e.buffer
		v.Buffer = &b
	}
	return v
}

func (e *Engine) recordRejection(eventType, reason string) {
	if e.metrics != nil {
		e.metrics.CoreEventsRejected.WithLabelValues(eventType, reason).Inc()
	}
	e.logger.Debug().Str("event_type", eventType).Str("reason", reason).Msg("event rejected")
}

func (e *Engine) recordApplied(eventType string, batch *custody.Batch, ac *applyCtx, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
	e.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	e.metrics.CoreSequence.Set(float64(e.sequence))
	for _, j := range batch.Journals {
		e.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
	}

	if f := ac.fund; f != nil {
		id := f.ID.String()
		e.metrics.FundNAV.WithLabelValues(id).Set(float64(f.Stats.CurrentNAVE6))
		e.metrics.FundTotalShares.WithLabelValues(id).Set(float64(f.Stats.TotalShares))
		if total, err := f.TotalValue(); err == nil {
			e.metrics.FundTotalValue.WithLabelValues(id).Set(float64(total))
		}
	}
	if e.buffer != nil {
		e.metrics.InsuranceBalance.Set(float64(e.balanceTracker.VaultBalance(e.buffer.FundID)))
	}
}

// --- Snapshot restore & startup ---

// SnapshotState is the full in-memory state at a sequence.
type SnapshotState struct {
	Sequence        int64 // last applied sequence
	StateHash       [32]byte
	Clock           int64
	Program         *state.ProgramConfig
	Funds           []*state.Fund
	Positions       []*state.LPPosition
	Buffer          *state.InsuranceBuffer
	Balances        map[custody.AccountKey]int64
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// CreateSnapshotState captures deep copies of the current state.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := &SnapshotState{
		Sequence:        e.sequence - 1,
		StateHash:       e.hasher.GetPrevHash(),
		Clock:           e.clock,
		Balances:        e.balanceTracker.Snapshot(),
		SequenceState:   e.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: e.idempotency.Keys(),
	}
	if e.program != nil {
		p := *e.program
		snap.Program = &p
	}
	for _, f := range e.book.AllFunds() {
		cp := *f
		snap.Funds = append(snap.Funds, &cp)
	}
	for _, pos := range e.book.AllPositions() {
		cp := *pos
		snap.Positions = append(snap.Positions, &cp)
	}
	if e.buffer != nil {
		b := *e.buffer
		snap.Buffer = &b
	}
	return snap
}

// RestoreFromSnapshot replaces all state with the snapshot. Call before
// replaying events after snap.Sequence.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = snap.Sequence + 1
	e.clock = snap.Clock
	e.hasher.SetPrevHash(snap.StateHash)

	e.balanceTracker = custody.NewBalanceTracker()
	for key, balance := range snap.Balances {
		e.balanceTracker.SetBalance(key, balance)
	}
	e.validator = custody.NewInvariantValidator(e.balanceTracker)
	e.journalGen = custody.NewJournalGenerator(e.sequence, e.balanceTracker)

	e.program = nil
	if snap.Program != nil {
		p := *snap.Program
		e.program = &p
	}

	e.book = state.NewFundBook()
	for _, f := range snap.Funds {
		cp := *f
		e.book.SetFund(&cp)
	}
	for _, pos := range snap.Positions {
		cp := *pos
		e.book.SetPosition(&cp)
	}

	e.buffer = nil
	if snap.Buffer != nil {
		b := *snap.Buffer
		e.buffer = &b
	}

	for partition, nextSeq := range snap.SequenceState {
		e.sequenceValidator.RestorePartition(partition, nextSeq)
	}
	e.idempotency.Warm(snap.IdempotencyKeys)
}

// Replay applies an already-logged event during recovery without emitting it
// again. A non-zero expectedHash must match the recomputed chain tip.
func (e *Engine) Replay(evt event.Event, expectedHash [32]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.replaying = true
	defer func() { e.replaying = false }()

	out, err := e.processLocked(evt)
	if err != nil {
		return fmt.Errorf("replay %s %s: %w", evt.EventType(), evt.IdempotencyKey(), err)
	}
	if out.Duplicate {
		return nil
	}
	if expectedHash != ([32]byte{}) && out.StateHash != expectedHash {
		return fmt.Errorf("replay diverged at sequence %d: state hash %x, logged %x",
			out.Sequence, out.StateHash, expectedHash)
	}
	if e.metrics != nil {
		e.metrics.ReplayEventsTotal.Inc()
	}
	return nil
}

// WarmLRU loads recent idempotency keys into the dedup cache.
func (e *Engine) WarmLRU(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.Warm(keys)
}

// GetSequence returns the next sequence to assign.
func (e *Engine) GetSequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.GetPrevHash()
}

// --- Reads ---

func (e *Engine) Program() (state.ProgramConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.program == nil {
		return state.ProgramConfig{}, false
	}
	return *e.program, true
}

func (e *Engine) Fund(id uuid.UUID) (state.Fund, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, err := e.book.GetFund(id)
	if err != nil {
		return state.Fund{}, err
	}
	return *f, nil
}

// Funds returns copies of every fund ordered by index.
func (e *Engine) Funds() []state.Fund {
	e.mu.Lock()
	defer e.mu.Unlock()
	all := e.book.AllFunds()
	out := make([]state.Fund, len(all))
	for i, f := range all {
		out[i] = *f
	}
	return out
}

func (e *Engine) Position(fundID, investor uuid.UUID) (state.LPPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.book.GetPosition(fundID, investor)
	if pos == nil {
		return state.LPPosition{}, errs.Newf(errs.CodeLPPositionNotFound, "fund %s investor %s", fundID, investor)
	}
	return *pos, nil
}

func (e *Engine) InvestorPositions(investor uuid.UUID) []state.LPPosition {
	e.mu.Lock()
	defer e.mu.Unlock()
	ps := e.book.PositionsForInvestor(investor)
	out := make([]state.LPPosition, len(ps))
	for i, p := range ps {
		out[i] = *p
	}
	return out
}

func (e *Engine) Insurance() (state.InsuranceBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer == nil {
		return state.InsuranceBuffer{}, errs.ErrInsuranceFundNotInitialized
	}
	return *e.buffer, nil
}

// VaultBalance returns the custody balance backing the fund.
func (e *Engine) VaultBalance(fundID uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceTracker.VaultBalance(fundID)
}

func (e *Engine) QuoteDeposit(fundID uuid.UUID, amountE6 int64) (shares uint64, navE6 int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.QuoteDeposit(fundID, amountE6)
}

func (e *Engine) QuoteRedeem(fundID uuid.UUID, shares uint64) (valueE6, navE6 int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.QuoteRedeem(fundID, shares)
}

// CheckADL evaluates the trigger against the live insurance vault without
// recording anything.
func (e *Engine) CheckADL(shortfallE6 int64) (state.ADLTriggerReason, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer == nil {
		return state.ADLTriggerNone, 0, errs.ErrInsuranceFundNotInitialized
	}
	if shortfallE6 < 0 {
		return state.ADLTriggerNone, 0, errs.Newf(errs.CodeInvalidAmount, "shortfall %d", shortfallE6)
	}
	balance := e.balanceTracker.VaultBalance(e.buffer.FundID)
	return e.buffer.ShouldTriggerADL(balance, shortfallE6), balance, nil
}

// CollectableFunds lists open standard funds whose collection interval has
// elapsed at now. Whether any fee is actually due is decided on apply.
func (e *Engine) CollectableFunds(now int64) []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []uuid.UUID
	for _, f := range e.book.AllFunds() {
		if f.IsClosed || f.IsInsurance() {
			continue
		}
		if f.FeeConfig.CanCollect(f.Stats.LastFeeCollectionTs, now) {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// IsLedgerError reports whether err is a coded ledger rejection as opposed
// to a pipeline failure (ordering, decoding).
func IsLedgerError(err error) bool {
	var le *errs.Error
	return errors.As(err, &le)
}
