package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for NavLedger.
type Metrics struct {
	// --- Core processing ---
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreJournals       *prometheus.CounterVec
	CoreSequence       prometheus.Gauge

	// --- Fund accounting ---
	FundNAV           *prometheus.GaugeVec
	FundTotalValue    *prometheus.GaugeVec
	FundTotalShares   *prometheus.GaugeVec
	FeesCollected     *prometheus.CounterVec
	InsuranceBalance  prometheus.Gauge
	ADLTriggers       *prometheus.CounterVec
	ShortfallCovered  prometheus.Counter
	ShortfallUncovered prometheus.Counter

	// --- Channels & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	DedupTier2Duration    prometheus.Histogram
	EventSequenceGap      *prometheus.CounterVec
	EventOutOfOrder       *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Projection ---
	ProjectionUpdateDur *prometheus.HistogramVec
	ProjectionLag       prometheus.Gauge
	CacheInvalidations  *prometheus.CounterVec

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Ingestion ---
	IngestReceived *prometheus.CounterVec
	IngestInvalid  *prometheus.CounterVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
	CacheRequests *prometheus.CounterVec

	// --- Scheduler ---
	SchedulerRuns *prometheus.CounterVec
}

// NewMetrics registers every collector with the default registry.
// Call it once per process.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers every collector with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}
	dbBuckets := []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

	return &Metrics{
		CoreEventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_core_events_applied_total",
			Help: "Events successfully applied by core",
		}, []string{"event_type"}),

		CoreEventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_core_events_rejected_total",
			Help: "Events rejected, by error code (duplicate, sequence, or ledger error)",
		}, []string{"event_type", "reason"}),

		CoreEventDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navledger_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event in core",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreJournals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_core_journals_generated_total",
			Help: "Custody journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_core_sequence",
			Help: "Next global sequence number",
		}),

		FundNAV: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navledger_fund_nav_e6",
			Help: "Current NAV per share (e6)",
		}, []string{"fund_id"}),

		FundTotalValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navledger_fund_total_value_e6",
			Help: "Fund total value (e6)",
		}, []string{"fund_id"}),

		FundTotalShares: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navledger_fund_total_shares",
			Help: "Outstanding shares",
		}, []string{"fund_id"}),

		FeesCollected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_fees_collected_e6_total",
			Help: "Fees paid to managers (e6)",
		}, []string{"fund_id", "fee_type"}),

		InsuranceBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_insurance_balance_e6",
			Help: "Insurance vault balance (e6)",
		}),

		ADLTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_adl_trigger_total",
			Help: "ADL trigger evaluations that fired, by reason",
		}, []string{"reason"}),

		ShortfallCovered: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_shortfall_covered_e6_total",
			Help: "Shortfall absorbed by the insurance vault (e6)",
		}),

		ShortfallUncovered: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_shortfall_uncovered_e6_total",
			Help: "Shortfall left for deleveraging (e6)",
		}),

		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navledger_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navledger_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navledger_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}, []string{"projection"}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"event_type", "tier"}),

		DedupLRUSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		DedupTier2Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "navledger_dedup_tier2_duration_seconds",
			Help:    "Postgres dedup lookup latency",
			Buckets: dbBuckets,
		}),

		EventSequenceGap: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_event_sequence_gap_total",
			Help: "Source sequence gaps",
		}, []string{"partition"}),

		EventOutOfOrder: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_event_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		PersistEventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "navledger_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "navledger_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: dbBuckets,
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		ProjectionUpdateDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navledger_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: dbBuckets,
		}, []string{"projection"}),

		ProjectionLag: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_projection_lag_events",
			Help: "Core sequence minus last projected sequence",
		}),

		CacheInvalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_cache_invalidations_total",
			Help: "Query cache keys invalidated by the projection worker",
		}, []string{"view"}),

		SnapshotTaken: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "navledger_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayEventsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "navledger_replay_events_total",
			Help: "Events replayed on startup",
		}),

		ReplayDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "navledger_replay_duration_seconds",
			Help: "Total replay time",
		}),

		IngestReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_ingest_received_total",
			Help: "Inbound events by source",
		}, []string{"source", "event_type"}),

		IngestInvalid: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_ingest_invalid_total",
			Help: "Inbound messages that failed to parse",
		}, []string{"source"}),

		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navledger_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_query_cache_requests_total",
			Help: "Query cache lookups (hit/miss/error)",
		}, []string{"view", "result"}),

		SchedulerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navledger_scheduler_runs_total",
			Help: "Scheduled job submissions by outcome",
		}, []string{"job", "outcome"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
