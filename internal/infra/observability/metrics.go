package observability

import (
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	budgetChecks     *prometheus.CounterVec
	transfersSettled prometheus.Counter
	recurringFired   prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "famledger_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famledger_store_errors_total",
				Help: "Total errors from the document store.",
			},
			[]string{"collection"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		budgetChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "famledger_budget_checks_total",
				Help: "Total budget validations by resulting status.",
			},
			[]string{"status"},
		),
		transfersSettled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "famledger_transfers_settled_total",
				Help: "Total transfer settlements (paired ledger entries).",
			},
		),
		recurringFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "famledger_recurring_fired_total",
				Help: "Total transactions materialized from recurring rules.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter for a collection.
func (m *Metrics) IncrStoreError(collection string) {
	m.storeErrors.WithLabelValues(collection).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrBudgetCheck increments the budget check counter for a status.
func (m *Metrics) IncrBudgetCheck(status string) {
	m.budgetChecks.WithLabelValues(status).Inc()
}

// IncrTransferSettled increments the settled-transfer counter.
func (m *Metrics) IncrTransferSettled() {
	m.transfersSettled.Inc()
}

// IncrRecurringFired increments the recurring materialization counter.
func (m *Metrics) IncrRecurringFired() {
	m.recurringFired.Inc()
}

// LedgerSnapshot returns a snapshot of the service counters for the
// internal GET /v1/metrics/ledger endpoint.
func (m *Metrics) LedgerSnapshot() *domain.LedgerMetrics {
	hits := getCounterValue(m.cacheHits, "profiles")
	misses := getCounterValue(m.cacheMisses, "profiles")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.LedgerMetrics{
		TransfersSettled: int64(readCounter(m.transfersSettled)),
		RecurringFired:   int64(readCounter(m.recurringFired)),
		BudgetWarnings:   int64(getCounterValue(m.budgetChecks, domain.BudgetWarning)),
		BudgetCriticals:  int64(getCounterValue(m.budgetChecks, domain.BudgetCritical)),
		StoreErrors:      int64(sumCounterVec(m.storeErrors)),
		CacheHitRate:     hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec totals every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
