package domain

// ============================================================
// Budget validation
// ============================================================

// Budget check statuses.
const (
	BudgetAllowed  = "ALLOWED"
	BudgetWarning  = "WARNING"
	BudgetCritical = "CRITICAL"
)

// BudgetCheck is the advisory result of validating a prospective
// expense against a profile's monthly limit. It never blocks by
// itself; the caller decides whether to proceed.
type BudgetCheck struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	UsagePercent float64 `json:"usage_percent"`
	Limit        int64  `json:"limit"`
	Spent        int64  `json:"spent"`
}

// ============================================================
// Dashboard aggregation
// ============================================================

// CategorySum is one slice of the expense breakdown.
type CategorySum struct {
	Name    string  `json:"name"`
	Icon    string  `json:"icon,omitempty"`
	Amount  int64   `json:"amount"`
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
}

// PeriodDiff compares the current period against the prior one.
// Percentages follow the app's convention: a prior value of zero counts
// as a 100% change when the current value is nonzero, else 0%.
type PeriodDiff struct {
	IncomePct  float64 `json:"income_pct"`
	ExpensePct float64 `json:"expense_pct"`
	NetPct     float64 `json:"net_pct"`
}

// DashboardSummary is the aggregate view of a transaction set.
// Internal transfers are excluded from income/expense and reported
// separately as Given/Received.
type DashboardSummary struct {
	Income     int64         `json:"income"`
	Expense    int64         `json:"expense"`
	Net        int64         `json:"net"`
	Given      int64         `json:"given"`
	Received   int64         `json:"received"`
	ByCategory []CategorySum `json:"by_category"`
	VsPrior    *PeriodDiff   `json:"vs_prior,omitempty"`
}

// LedgerMetrics is an ops snapshot of the service counters, served by
// the internal metrics endpoint.
type LedgerMetrics struct {
	TransfersSettled int64   `json:"transfers_settled"`
	RecurringFired   int64   `json:"recurring_fired"`
	BudgetWarnings   int64   `json:"budget_warnings"`
	BudgetCriticals  int64   `json:"budget_criticals"`
	StoreErrors      int64   `json:"store_errors"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
}
