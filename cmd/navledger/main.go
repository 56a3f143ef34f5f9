package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"NavLedger/internal/cache"
	"NavLedger/internal/config"
	"NavLedger/internal/core"
	"NavLedger/internal/ingestion"
	"NavLedger/internal/observability"
	"NavLedger/internal/persistence"
	"NavLedger/internal/projection"
	"NavLedger/internal/query"
	"NavLedger/internal/scheduler"
	"NavLedger/internal/server"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: NavLedger starting...")

	cfgPath := "configs/navledger.yaml"
	if v := os.Getenv("NAV_CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("FATAL: load config: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: config validation: %v", err)
	}

	level := observability.ParseLogLevel(cfg.Log.Level)
	component := func(name string) zerolog.Logger {
		return observability.NewLoggerWithLevel(name, level)
	}
	logger := component("main")

	// Ingress (NATS, HTTP, gRPC, scheduler) stops first; workers drain after.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("FATAL: postgres open: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("FATAL: postgres ping: %v", err)
	}
	logger.Info().Msg("Postgres connected")

	migrator := persistence.NewMigrator(db, persistence.Migrations(), component("migrator"))
	if err := migrator.Up(ctx); err != nil {
		log.Fatalf("FATAL: run migrations: %v", err)
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	healthChecker.Register("postgres", db.PingContext)

	// --- Engine + recovery ---
	persistChan := make(chan core.CoreOutput, cfg.Persistence.PersistChanSize)
	projChan := make(chan core.CoreOutput, cfg.Persistence.ProjectionChanSize)

	engine := core.NewEngine(1, persistChan, projChan,
		persistence.NewPostgresIdempotencyChecker(db), metrics, component("engine"))
	if cfg.Ledger.MaxClockSkew > 0 {
		engine.SetWallClock(time.Now, cfg.Ledger.MaxClockSkew)
	}

	snapMgr := persistence.NewSnapshotManager(db)
	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load snapshot, replaying from the start")
		snap = nil
	}
	res, err := persistence.Recover(ctx, engine, snap, snapMgr, metrics, component("recovery"))
	if err != nil {
		log.Fatalf("FATAL: recovery failed: %v", err)
	}

	// --- Cache ---
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		defer rdb.Close()
		store = cache.NewRedisStore(rdb)
		healthChecker.Register("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")
	}

	// --- Workers ---
	var workers sync.WaitGroup
	errChan := make(chan error, 10)

	persistWorker := persistence.NewPersistenceWorker(
		persistence.NewEventLogWriter(db), persistChan,
		cfg.Persistence.BatchSize, cfg.Persistence.FlushInterval,
		metrics, component("persistence"),
	)
	projWorker := projection.NewProjectionWorker(db, projChan, store, metrics, component("projection"))
	projWorker.TrackHead(engine.GetSequence)

	// --- NATS ---
	var (
		nc         *nats.Conn
		subscriber *ingestion.NATSSubscriber
		publisher  *ingestion.OutboundPublisher
	)
	if cfg.NATS.Enabled {
		natsLog := component("ingestion")
		var js jetstream.JetStream
		nc, js, err = ingestion.ConnectNATS(cfg.NATS.URL, natsLog)
		if err != nil {
			log.Fatalf("FATAL: nats connect: %v", err)
		}
		defer nc.Close()

		if err := ingestion.EnsureStreams(ctx, js, natsLog); err != nil {
			log.Fatalf("FATAL: ensure NATS streams: %v", err)
		}
		if err := ingestion.EnsureOutboundStream(ctx, js, natsLog); err != nil {
			log.Fatalf("FATAL: ensure outbound stream: %v", err)
		}
		healthChecker.Register("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		})

		publisher = ingestion.NewOutboundPublisher(js, cfg.NATS.BufferSize, metrics, component("publisher"))
		persistWorker.OnCommit(publisher.Enqueue)

		subscriber = ingestion.NewNATSSubscriber(js, cfg.NATS.BufferSize, metrics, natsLog)
		if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
			log.Fatalf("FATAL: nats subscribe: %v", err)
		}
	}

	workers.Add(2)
	go func() {
		defer workers.Done()
		if err := persistWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("persistence worker: %w", err)
		}
	}()
	go func() {
		defer workers.Done()
		if err := projWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("projection worker: %w", err)
		}
	}()
	if publisher != nil {
		go func() {
			if err := publisher.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("outbound publisher: %w", err)
			}
		}()
	}

	// First start against an empty log.
	if err := bootstrap(engine, cfg, component("bootstrap")); err != nil {
		log.Fatalf("FATAL: bootstrap: %v", err)
	}

	// --- Ingress ---
	var ingress sync.WaitGroup
	if subscriber != nil {
		ingress.Add(1)
		go func() {
			defer ingress.Done()
			if err := subscriber.Run(ctx, engine); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("nats ingestion: %w", err)
			}
		}()
	}

	admin := &adminOps{
		engine:  engine,
		snaps:   snapMgr,
		db:      db,
		store:   store,
		metrics: metrics,
		logger:  component("admin"),
	}

	srv, err := server.NewGRPCServer(cfg.GRPC.Addr, cfg.HTTP.Addr, &server.ServerDeps{
		Query:         query.NewCachedQueryService(query.NewQueryService(db), store, cfg.Redis.TTL, metrics, component("query")),
		Live:          engine,
		Ingest:        ingestion.NewAPIIngestService(engine, metrics, component("api-ingest")),
		Admin:         admin,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        component("server"),
	})
	if err != nil {
		log.Fatalf("FATAL: build server: %v", err)
	}

	ingress.Add(2)
	go func() {
		defer ingress.Done()
		if err := srv.StartGRPC(ctx); err != nil {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		defer ingress.Done()
		if err := srv.StartHTTP(ctx); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		ids, _ := cfg.ProgramBootstrap()
		sched = scheduler.New(engine, scheduler.Config{
			Signer:       ids.Authority,
			SnapshotSpec: cfg.Scheduler.SnapshotCron,
			FeeSweepSpec: cfg.Scheduler.FeeSweepCron,
			ADLCheckSpec: cfg.Scheduler.ADLCheckCron,
		}, metrics, component("scheduler"))
		if err := sched.RegisterAll(); err != nil {
			log.Fatalf("FATAL: scheduler: %v", err)
		}
		sched.Start()
	}

	ingress.Add(1)
	go func() {
		defer ingress.Done()
		admin.runPeriodicSnapshots(ctx, cfg.Snapshot.Interval)
	}()

	// Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	srv.SetServing(true)
	healthChecker.SetReady(true)

	logger.Info().
		Int64("snapshot_sequence", res.SnapshotSequence).
		Int64("replayed", res.Replayed).
		Int64("next_sequence", engine.GetSequence()).
		Str("grpc", cfg.GRPC.Addr).
		Str("http", cfg.HTTP.Addr).
		Msg("NavLedger ready")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("component failed, shutting down")
	}

	// --- Graceful shutdown ---
	healthChecker.SetReady(false)
	srv.SetServing(false)
	cancel()
	if subscriber != nil {
		subscriber.Stop()
	}
	if sched != nil {
		sched.Stop()
	}
	ingress.Wait()

	// No more events can reach the engine; its state is final.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if seq, _, err := admin.TakeSnapshot(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	} else {
		logger.Info().Int64("sequence", seq).Msg("final snapshot saved")
	}

	close(persistChan)
	close(projChan)
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("workers did not drain before the shutdown deadline")
	}
	workerCancel()

	logger.Info().Msg("NavLedger shutdown complete")
}

// adminOps backs the operator endpoints.
type adminOps struct {
	engine  *core.Engine
	snaps   *persistence.SnapshotManager
	db      *sql.DB
	store   cache.Store
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func (a *adminOps) TakeSnapshot(ctx context.Context) (int64, int, error) {
	start := time.Now()
	snap, size, err := a.snaps.TakeSnapshot(ctx, a.engine)
	if err != nil {
		return 0, 0, err
	}
	a.metrics.SnapshotTaken.Inc()
	a.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	a.metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	a.logger.Info().Int64("sequence", snap.Sequence).Int("bytes", size).Msg("snapshot saved")
	return snap.Sequence, size, nil
}

func (a *adminOps) RebuildProjections(ctx context.Context) (int64, error) {
	return projection.Rebuild(ctx, a.db, a.snaps, a.store, a.logger)
}

func (a *adminOps) LatestSequence(ctx context.Context) (int64, error) {
	return a.snaps.GetLatestSequence(ctx)
}

// runPeriodicSnapshots snapshots whenever interval events have been applied
// since the last one.
func (a *adminOps) runPeriodicSnapshots(ctx context.Context, interval int64) {
	if interval <= 0 {
		return
	}

	last := a.engine.GetSequence()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := a.engine.GetSequence()
			if current-last < interval {
				continue
			}
			if _, _, err := a.TakeSnapshot(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			last = current
		}
	}
}
