package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"NavLedger/internal/core"
	"NavLedger/internal/errs"
	"NavLedger/internal/event"
	"NavLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job names, also used as the metric label.
const (
	JobInsuranceSnapshot = "insurance_snapshot"
	JobFeeSweep          = "fee_sweep"
	JobADLCheck          = "adl_check"
)

// Default cron specs.
const (
	DefaultSnapshotSpec = "@hourly"
	DefaultFeeSweepSpec = "@daily"
	DefaultADLCheckSpec = "@every 5m"
)

// keySpace namespaces the idempotency keys of scheduled events.
var keySpace = uuid.MustParse("5d0f6a53-3c52-4d8f-9d3b-6f0e1c2a7b41")

// Engine is the part of core.Engine the jobs drive.
type Engine interface {
	ProcessEvent(evt event.Event) (*core.Outcome, error)
	CollectableFunds(now int64) []uuid.UUID
}

// Config selects the signer and the cron specs. Empty specs disable a job.
type Config struct {
	Signer       uuid.UUID
	SnapshotSpec string
	FeeSweepSpec string
	ADLCheckSpec string
}

// Scheduler submits time-driven events on cron schedules. Every event is
// stamped with the wall clock at submission and keyed by its time slot, so a
// restart inside the same slot replays as a duplicate.
type Scheduler struct {
	cron    *cron.Cron
	engine  Engine
	cfg     Config
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func New(engine Engine, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		engine:  engine,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterAll adds every configured job to the cron table.
func (s *Scheduler) RegisterAll() error {
	jobs := []struct {
		name string
		spec string
		fn   func(time.Time)
	}{
		{JobInsuranceSnapshot, s.cfg.SnapshotSpec, s.RunInsuranceSnapshot},
		{JobFeeSweep, s.cfg.FeeSweepSpec, s.RunFeeSweep},
		{JobADLCheck, s.cfg.ADLCheckSpec, s.RunADLCheck},
	}
	for _, j := range jobs {
		if j.spec == "" {
			s.logger.Info().Str("job", j.name).Msg("job disabled")
			continue
		}
		fn := j.fn
		if _, err := s.cron.AddFunc(j.spec, func() { fn(time.Now().UTC()) }); err != nil {
			return fmt.Errorf("register %s (%q): %w", j.name, j.spec, err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop halts the cron table and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunInsuranceSnapshot rolls the buffer's one-hour balance reference.
func (s *Scheduler) RunInsuranceSnapshot(now time.Time) {
	evt := &event.InsuranceSnapshot{Meta: s.meta(JobInsuranceSnapshot, slot(now, time.Hour), now)}
	s.submit(JobInsuranceSnapshot, evt)
}

// RunFeeSweep collects fees from every fund whose interval has elapsed.
func (s *Scheduler) RunFeeSweep(now time.Time) {
	funds := s.engine.CollectableFunds(now.Unix())
	if len(funds) == 0 {
		s.record(JobFeeSweep, "idle")
		return
	}
	day := slot(now, 24*time.Hour)
	for _, id := range funds {
		evt := &event.FeesCollected{
			Meta:   s.meta(JobFeeSweep, id.String()+":"+day, now),
			FundID: id,
		}
		s.submit(JobFeeSweep, evt)
	}
}

// RunADLCheck evaluates the ADL trigger with no pending shortfall, which
// catches low-balance and rapid-decline conditions between coverage events.
func (s *Scheduler) RunADLCheck(now time.Time) {
	evt := &event.ADLTriggerCheck{Meta: s.meta(JobADLCheck, slot(now, 5*time.Minute), now)}
	s.submit(JobADLCheck, evt)
}

func (s *Scheduler) submit(job string, evt event.Event) {
	log := s.logger.With().Str("job", job).Str("event_type", evt.EventType().String()).Logger()
	if ref := evt.FundRef(); ref != nil {
		log = log.With().Str("fund_id", ref.String()).Logger()
	}

	out, err := s.engine.ProcessEvent(evt)
	switch {
	case err == nil && out.Duplicate:
		log.Debug().Str("event_id", evt.IdempotencyKey()).Msg("slot already submitted")
		s.record(job, "duplicate")
	case err == nil:
		ev := log.Info().Int64("sequence", out.Sequence)
		if out.TriggerReason.ShouldADL() {
			ev = log.Warn().Int64("sequence", out.Sequence).Str("reason", out.TriggerReason.String())
		}
		ev.Msg("scheduled event applied")
		s.record(job, "applied")
	case expectedRejection(err):
		log.Debug().Err(err).Msg("scheduled event skipped")
		s.record(job, "skipped")
	default:
		log.Error().Err(err).Msg("scheduled event failed")
		s.record(job, "error")
	}
}

func (s *Scheduler) meta(job, slotKey string, now time.Time) event.Meta {
	return event.Meta{
		EventID:   uuid.NewSHA1(keySpace, []byte(job+":"+slotKey)).String(),
		Signer:    s.cfg.Signer,
		Timestamp: now.Unix(),
	}
}

func (s *Scheduler) record(job, outcome string) {
	if s.metrics != nil {
		s.metrics.SchedulerRuns.WithLabelValues(job, outcome).Inc()
	}
}

func slot(now time.Time, d time.Duration) string {
	return strconv.FormatInt(now.Truncate(d).Unix(), 10)
}

// expectedRejection covers the refusals a timer routinely runs into.
func expectedRejection(err error) bool {
	return errors.Is(err, errs.ErrSnapshotTooRecent) ||
		errors.Is(err, errs.ErrFeeCollectionTooEarly) ||
		errors.Is(err, errs.ErrNoFeesToCollect) ||
		errors.Is(err, errs.ErrInsuranceFundNotInitialized) ||
		errors.Is(err, errs.ErrStaleTimestamp)
}
