package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NavLedger/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "navledger.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
database:
  dsn: postgres://prod/navledger
redis:
  enabled: true
  ttl: 2m
program:
  authority: 00000000-0000-0000-0000-0000000000a1
insurance:
  fund_id: 00000000-0000-0000-0000-0000000000f9
  adl_threshold: "50000.25"
  withdrawal_delay: 2h
  authorized_caller: 00000000-0000-0000-0000-0000000000e1
scheduler:
  fee_sweep_cron: "0 2 * * *"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "postgres://prod/navledger" || cfg.Database.MaxOpenConns != 20 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if !cfg.Redis.Enabled || cfg.Redis.TTL != 2*time.Minute || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Scheduler.FeeSweepCron != "0 2 * * *" || cfg.Scheduler.SnapshotCron != "@hourly" {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	ins, err := cfg.InsuranceBootstrap()
	if err != nil {
		t.Fatal(err)
	}
	if ins.ADLThresholdE6 != 50_000_250_000 || ins.WithdrawalDelaySecs != 7200 {
		t.Errorf("insurance = %+v", ins)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr = %s", cfg.HTTP.Addr)
	}

	if _, err := config.Load(writeFile(t, "database: [")); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NAV_POSTGRES_DSN", "postgres://env/navledger")
	t.Setenv("NAV_NATS_ENABLED", "false")
	t.Setenv("NAV_REDIS_TTL", "45s")
	t.Setenv("NAV_SNAPSHOT_INTERVAL", "500")
	t.Setenv("NAV_PERSIST_BATCH_SIZE", "not-a-number")
	t.Setenv("NAV_MAX_CLOCK_SKEW", "30s")

	cfg := config.Default()
	cfg.ApplyEnv()

	if cfg.Database.DSN != "postgres://env/navledger" {
		t.Errorf("dsn = %s", cfg.Database.DSN)
	}
	if cfg.NATS.Enabled {
		t.Error("nats still enabled")
	}
	if cfg.Redis.TTL != 45*time.Second || cfg.Snapshot.Interval != 500 {
		t.Errorf("ttl = %v interval = %d", cfg.Redis.TTL, cfg.Snapshot.Interval)
	}
	if cfg.Persistence.BatchSize != 50 {
		t.Errorf("unparseable override replaced the default: %d", cfg.Persistence.BatchSize)
	}
	if cfg.Ledger.MaxClockSkew != 30*time.Second {
		t.Errorf("max clock skew = %v", cfg.Ledger.MaxClockSkew)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		want   string
	}{
		{"no dsn", func(c *config.Config) { c.Database.DSN = "" }, "database.dsn"},
		{"zero batch", func(c *config.Config) { c.Persistence.BatchSize = 0 }, "batch_size"},
		{"negative skew", func(c *config.Config) { c.Ledger.MaxClockSkew = -time.Second }, "max_clock_skew"},
		{"scheduler without signer", func(c *config.Config) { c.Program.Authority = "" }, "program.authority"},
		{"bad authority", func(c *config.Config) { c.Program.Authority = "root" }, "program.authority"},
		{"bad threshold", func(c *config.Config) {
			c.Insurance.FundID = "00000000-0000-0000-0000-0000000000f9"
			c.Insurance.AuthorizedCaller = "00000000-0000-0000-0000-0000000000e1"
			c.Insurance.ADLThreshold = "1.0000001"
		}, "adl_threshold"},
		{"insurance without caller", func(c *config.Config) {
			c.Insurance.FundID = "00000000-0000-0000-0000-0000000000f9"
		}, "authorized_caller"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Program.Authority = "00000000-0000-0000-0000-0000000000a1"
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	cfg := config.Default()
	cfg.Scheduler.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults with the scheduler off: %v", err)
	}
	if ids, _ := cfg.ProgramBootstrap(); ids != nil {
		t.Errorf("bootstrap without authority = %+v", ids)
	}
}
