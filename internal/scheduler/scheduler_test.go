package scheduler_test

import (
	"testing"
	"time"

	"NavLedger/internal/observability"
	"NavLedger/internal/scheduler"
	"NavLedger/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newScheduler(t *testing.T, withScenario bool) (*scheduler.Scheduler, *observability.Metrics) {
	t.Helper()
	e, _, _ := testutil.NewEngine()
	if withScenario {
		testutil.ApplyScenario(t, e)
	}
	m := observability.NewMetricsWith(prometheus.NewRegistry())
	s := scheduler.New(e, scheduler.Config{
		Signer:       testutil.Authority,
		SnapshotSpec: scheduler.DefaultSnapshotSpec,
		FeeSweepSpec: scheduler.DefaultFeeSweepSpec,
		ADLCheckSpec: scheduler.DefaultADLCheckSpec,
	}, m, zerolog.Nop())
	return s, m
}

func runs(m *observability.Metrics, job, outcome string) float64 {
	return promtest.ToFloat64(m.SchedulerRuns.WithLabelValues(job, outcome))
}

func TestInsuranceSnapshotJob(t *testing.T) {
	s, m := newScheduler(t, true)
	lastSnapshot := int64(testutil.T0 + 100_030)

	s.RunInsuranceSnapshot(time.Unix(lastSnapshot+60, 0))
	if got := runs(m, scheduler.JobInsuranceSnapshot, "skipped"); got != 1 {
		t.Errorf("snapshot within the hour: skipped = %v, want 1", got)
	}

	next := time.Unix(lastSnapshot+2*3600, 0)
	s.RunInsuranceSnapshot(next)
	if got := runs(m, scheduler.JobInsuranceSnapshot, "applied"); got != 1 {
		t.Errorf("applied = %v, want 1", got)
	}

	// Same slot again: the deterministic key makes it a duplicate.
	s.RunInsuranceSnapshot(next.Add(time.Minute))
	if got := runs(m, scheduler.JobInsuranceSnapshot, "duplicate"); got != 1 {
		t.Errorf("duplicate = %v, want 1", got)
	}
}

func TestFeeSweepJob(t *testing.T) {
	s, m := newScheduler(t, true)

	// The scenario collected at T0+1d; nothing is due an hour later.
	s.RunFeeSweep(time.Unix(testutil.T0+86_400+3600, 0))
	if got := runs(m, scheduler.JobFeeSweep, "idle"); got != 1 {
		t.Errorf("idle = %v, want 1", got)
	}

	s.RunFeeSweep(time.Unix(testutil.T0+3*86_400, 0))
	if got := runs(m, scheduler.JobFeeSweep, "applied"); got != 1 {
		t.Errorf("applied = %v, want 1", got)
	}
	if got := runs(m, scheduler.JobFeeSweep, "error"); got != 0 {
		t.Errorf("errors = %v", got)
	}
}

func TestADLCheckJob(t *testing.T) {
	s, m := newScheduler(t, true)
	s.RunADLCheck(time.Unix(testutil.T0+200_000, 0))
	if got := runs(m, scheduler.JobADLCheck, "applied"); got != 1 {
		t.Errorf("applied = %v, want 1", got)
	}

	// A tick behind the ledger clock is skipped.
	s.RunADLCheck(time.Unix(testutil.T0+100_000, 0))
	if got := runs(m, scheduler.JobADLCheck, "skipped"); got != 1 {
		t.Errorf("stale tick: skipped = %v, want 1", got)
	}

	// Without an insurance buffer the check is a routine skip, not a failure.
	bare, bm := newScheduler(t, false)
	bare.RunADLCheck(time.Unix(testutil.T0, 0))
	if got := runs(bm, scheduler.JobADLCheck, "skipped"); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
}

func TestRegisterAll(t *testing.T) {
	s, _ := newScheduler(t, false)
	if err := s.RegisterAll(); err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Stop()

	e, _, _ := testutil.NewEngine()
	bad := scheduler.New(e, scheduler.Config{SnapshotSpec: "every hour"}, nil, zerolog.Nop())
	if err := bad.RegisterAll(); err == nil {
		t.Error("invalid cron spec accepted")
	}

	none := scheduler.New(e, scheduler.Config{}, nil, zerolog.Nop())
	if err := none.RegisterAll(); err != nil {
		t.Errorf("all jobs disabled: %v", err)
	}
}
