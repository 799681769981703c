// Package metrics is the process-wide counter/gauge surface for the
// failure taxonomy internal/errs classifies (§7): decode skips,
// referential misses, duplicate-key races, budget exhaustion and
// back-pressure pauses, plus the progress-formula drift check.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every counter/gauge this process exports. Consumers,
// the Reconciler and the ScoreEngine each hold a *Registry and call its
// increment methods at the point a condition occurs rather than
// inferring counts after the fact.
type Registry struct {
	DecodeSkipTotal        *prometheus.CounterVec
	UnresolvedIDTotal      *prometheus.CounterVec
	DuplicateKeyTotal      *prometheus.CounterVec
	BudgetExhaustionTotal  prometheus.Counter
	BackPressurePauseTotal *prometheus.CounterVec
	ProgressDriftTotal     *prometheus.CounterVec

	BatchQueueDepth *prometheus.GaugeVec
	CreditUsagePct  prometheus.Gauge
}

// New registers and returns the full counter/gauge set against reg.
// Pass prometheus.NewRegistry() in tests to avoid collisions with the
// global default registry across parallel test packages.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		DecodeSkipTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_decode_skip_total",
			Help: "Updates the decode layer intentionally ignored, by consumer.",
		}, []string{"consumer"}),
		UnresolvedIDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_unresolved_id_total",
			Help: "Records dropped because they referenced an unknown token or pool.",
		}, []string{"entity"}),
		DuplicateKeyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_duplicate_key_total",
			Help: "Unique-key races resolved by re-reading the winning row.",
		}, []string{"table"}),
		BudgetExhaustionTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_budget_exhaustion_total",
			Help: "Times the holder-analysis credit tracker hit its hard-stop threshold.",
		}),
		BackPressurePauseTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_back_pressure_pause_total",
			Help: "Times a consumer's batch queue filled and paused its decode loop.",
		}, []string{"consumer"}),
		ProgressDriftTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_progress_drift_total",
			Help: "Times the SOL-raised and tokens-sold progress formulas disagreed beyond epsilon.",
		}, []string{"venue"}),
		BatchQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ingest_batch_queue_depth",
			Help: "Current pending-transaction count per consumer batch queue.",
		}, []string{"consumer"}),
		CreditUsagePct: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_holder_credit_usage_pct",
			Help: "Current month's holder-enrichment credit usage, as a percentage of the monthly cap.",
		}),
	}
}

// Handler serves the /metrics scrape endpoint for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
