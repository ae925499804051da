package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesPosted   *prometheus.CounterVec
	EntriesReversed prometheus.Counter
	PostingDuration prometheus.Histogram
	PostingErrors   *prometheus.CounterVec

	// Categorization metrics
	EventsIngested     *prometheus.CounterVec
	Categorizations    *prometheus.CounterVec
	Reclassifications  prometheus.Counter
	Splits             prometheus.Counter
	TransfersLinked    prometheus.Counter
	TransitionRejected *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	OperationRetries   prometheus.Counter

	// Rule engine metrics
	RuleBatches       prometheus.Counter
	RuleBatchApplied  prometheus.Counter
	RuleBatchFailed   prometheus.Counter
	RuleMatches       prometheus.Counter
	RuleBatchDuration prometheus.Histogram

	// Balance and reconciliation metrics
	BalanceCacheHits    prometheus.Counter
	BalanceCacheMisses  prometheus.Counter
	BalancesRebuilt     prometheus.Counter
	BalancesChanged     prometheus.Counter
	BoundaryViolations  prometheus.Counter
	BoundaryAdjustments prometheus.Counter

	// Account metrics
	AccountsCreated prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxErrors    prometheus.Counter

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics and registers them on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		EntriesPosted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_entries_posted_total",
				Help: "Total journal entries posted by reference kind",
			},
			[]string{"kind"},
		),
		EntriesReversed: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_entries_reversed_total",
			Help: "Total journal entries reversed",
		}),
		PostingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tableledger_posting_duration_seconds",
			Help:    "Duration of posting operations",
			Buckets: prometheus.DefBuckets,
		}),
		PostingErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_posting_errors_total",
				Help: "Total rejected postings by error kind",
			},
			[]string{"kind"},
		),

		// Categorization metrics
		EventsIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_events_ingested_total",
				Help: "Total external events ingested by source",
			},
			[]string{"source"},
		),
		Categorizations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_categorizations_total",
				Help: "Total categorizations by origin",
			},
			[]string{"origin"},
		),
		Reclassifications: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_reclassifications_total",
			Help: "Total reclassifications posted",
		}),
		Splits: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_splits_total",
			Help: "Total events split",
		}),
		TransfersLinked: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_transfers_linked_total",
			Help: "Total event pairs linked as transfers",
		}),
		TransitionRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_transitions_rejected_total",
				Help: "Total rejected state transitions by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		OperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tableledger_operation_duration_seconds",
				Help:    "Duration of categorization operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_operation_retries_total",
			Help: "Total retried units of work",
		}),

		// Rule engine metrics
		RuleBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_rule_batches_total",
			Help: "Total rule batches run",
		}),
		RuleBatchApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_rule_batch_applied_total",
			Help: "Total events categorized by rule batches",
		}),
		RuleBatchFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_rule_batch_failed_total",
			Help: "Total events that failed in rule batches",
		}),
		RuleMatches: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_rule_matches_total",
			Help: "Total events matched to a rule",
		}),
		RuleBatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tableledger_rule_batch_duration_seconds",
			Help:    "Duration of rule batches",
			Buckets: prometheus.DefBuckets,
		}),

		// Balance and reconciliation metrics
		BalanceCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_balance_cache_hits_total",
			Help: "Total balance reads served from cache",
		}),
		BalanceCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_balance_cache_misses_total",
			Help: "Total balance reads replayed from the ledger",
		}),
		BalancesRebuilt: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_balances_rebuilt_total",
			Help: "Total account balances recomputed",
		}),
		BalancesChanged: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_balances_changed_total",
			Help: "Total cached balances corrected by a rebuild",
		}),
		BoundaryViolations: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_boundary_violations_total",
			Help: "Total reconciliation boundary violations detected",
		}),
		BoundaryAdjustments: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_boundary_adjustments_total",
			Help: "Total reconciliation boundary adjustments posted",
		}),

		// Account metrics
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tableledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Outbox metrics
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tableledger_outbox_errors_total",
			Help: "Total outbox publish failures",
		}),

		// Authentication metrics
		AuthFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tableledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}
