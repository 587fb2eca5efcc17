package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var budgetTracer = otel.Tracer("service/budget")

// Budget usage thresholds.
const (
	budgetWarnRatio     = 0.7
	budgetCriticalRatio = 1.0
)

// BudgetService validates expenses against a profile's monthly limit.
// The check is advisory: any failure to compute it results in ALLOWED,
// because blocking a family's grocery run on a flaky store call is worse
// than missing one warning.
type BudgetService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBudgetService creates a new budget service.
func NewBudgetService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *BudgetService {
	return &BudgetService{store: store, metrics: metrics, logger: logger}
}

// CheckBudget evaluates what adding amount to the profile's current-month
// spending would do to its limit. Spending is re-aggregated from the
// transaction collection rather than trusting the spent counter, which
// may drift under best-effort increments.
func (s *BudgetService) CheckBudget(ctx context.Context, familyID, profileID string, amount int64) (*domain.BudgetCheck, error) {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.CheckBudget")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	allowed := func(limit, spent int64, usage float64) *domain.BudgetCheck {
		check := &domain.BudgetCheck{
			Status:       domain.BudgetAllowed,
			Message:      fmt.Sprintf("Within budget (%d%%)", roundPct(usage)),
			UsagePercent: usage * 100,
			Limit:        limit,
			Spent:        spent,
		}
		s.metrics.IncrBudgetCheck(check.Status)
		return check
	}

	profile, err := s.store.GetProfile(ctx, familyID, profileID)
	if err != nil {
		s.logger.Warn("budget: profile lookup failed, allowing",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		return allowed(0, 0, 0), nil
	}
	if profile.Limit <= 0 {
		return allowed(0, 0, 0), nil
	}

	spent, err := s.monthSpent(ctx, familyID, profileID)
	if err != nil {
		s.logger.Warn("budget: spending aggregation failed, allowing",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("transactions")
		return allowed(profile.Limit, profile.Spent, 0), nil
	}

	usage := float64(spent+amount) / float64(profile.Limit)
	check := &domain.BudgetCheck{
		UsagePercent: usage * 100,
		Limit:        profile.Limit,
		Spent:        spent,
	}

	switch {
	case usage >= budgetCriticalRatio:
		check.Status = domain.BudgetCritical
		check.Message = fmt.Sprintf("Budget exceeded: this would reach %d%% of the monthly limit", roundPct(usage))
	case usage >= budgetWarnRatio:
		check.Status = domain.BudgetWarning
		check.Message = fmt.Sprintf("Approaching budget: this would reach %d%% of the monthly limit", roundPct(usage))
	default:
		check.Status = domain.BudgetAllowed
		check.Message = fmt.Sprintf("Within budget (%d%%)", roundPct(usage))
	}

	s.metrics.IncrBudgetCheck(check.Status)
	return check, nil
}

// monthSpent sums the profile's current-month non-transfer expenses.
func (s *BudgetService) monthSpent(ctx context.Context, familyID, profileID string) (int64, error) {
	from, to := currentMonthRange(time.Now().UTC())
	txns, err := s.store.ListProfileTransactions(ctx, familyID, profileID, from, to)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := range txns {
		if countsTowardSpent(&txns[i]) {
			total += txns[i].Amount
		}
	}
	return total, nil
}

// countsTowardSpent reports whether a transaction consumes budget.
// Transfer legs move money inside the family and are excluded.
func countsTowardSpent(t *domain.Transaction) bool {
	return t.Type == domain.TxExpense && t.TransferID == ""
}

func currentMonthRange(now time.Time) (string, string) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format("2006-01-02"), end.Format("2006-01-02")
}

func roundPct(usage float64) int {
	return int(math.Round(usage * 100))
}
