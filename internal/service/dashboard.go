package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var dashTracer = otel.Tracer("service/dashboard")

// DashboardService computes family-wide spending summaries.
type DashboardService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *DashboardService {
	return &DashboardService{store: store, metrics: metrics, logger: logger}
}

// GetDashboard returns the family summary for [fromDate, toDate], with a
// comparison against the equally long period immediately before it. Only
// owner and partner profiles may see family-wide aggregates.
func (s *DashboardService) GetDashboard(ctx context.Context, familyID, profileID, fromDate, toDate string) (*domain.DashboardSummary, error) {
	ctx, span := dashTracer.Start(ctx, "DashboardService.GetDashboard")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("dashboard", time.Since(start)) }()

	profile, err := s.store.GetProfile(ctx, familyID, profileID)
	if err != nil {
		return nil, err
	}
	if !domain.IsAdminRole(profile.Role) {
		return nil, &domain.ErrForbidden{Action: "view family dashboard"}
	}

	from, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "from", Message: "from must be YYYY-MM-DD"}
	}
	to, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "to", Message: "to must be YYYY-MM-DD"}
	}
	if to.Before(from) {
		return nil, &domain.ErrValidation{Field: "to", Message: "to must not be before from"}
	}

	// Prior window of the same length, ending the day before fromDate.
	days := int(to.Sub(from).Hours()/24) + 1
	prevTo := from.AddDate(0, 0, -1)
	prevFrom := prevTo.AddDate(0, 0, -(days - 1))

	var current, prior []domain.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.store.ListTransactions(gctx, familyID, fromDate, toDate)
		return err
	})
	g.Go(func() error {
		var err error
		prior, err = s.store.ListTransactions(gctx, familyID, prevFrom.Format("2006-01-02"), prevTo.Format("2006-01-02"))
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, err
	}

	return Aggregate(current, prior), nil
}

// Aggregate folds transactions into a dashboard summary. Pure function:
// no I/O, no clock, deterministic for a given input.
//
// Internal transfers (money moving between family members) are kept out
// of the income/expense totals and reported as given/received instead.
// Legacy rows predate the structured direction field, so classification
// falls back to category and note heuristics for them.
func Aggregate(txns, prior []domain.Transaction) *domain.DashboardSummary {
	summary := &domain.DashboardSummary{}

	byCategory := map[string]*domain.CategorySum{}
	for i := range txns {
		t := &txns[i]

		if isInternalTransfer(t) {
			if transferReceived(t) {
				summary.Received += t.Amount
			} else {
				summary.Given += t.Amount
			}
			continue
		}

		if t.Type == domain.TxIncome {
			summary.Income += t.Amount
			continue
		}

		summary.Expense += t.Amount
		name := displayCategory(t.Category)
		cs, ok := byCategory[name]
		if !ok {
			cs = &domain.CategorySum{Name: name, Icon: t.CategoryIcon}
			byCategory[name] = cs
		}
		cs.Amount += t.Amount
		cs.Count++
	}
	summary.Net = summary.Income - summary.Expense

	summary.ByCategory = make([]domain.CategorySum, 0, len(byCategory))
	for _, cs := range byCategory {
		if summary.Expense > 0 {
			cs.Percent = float64(cs.Amount) / float64(summary.Expense) * 100
		}
		summary.ByCategory = append(summary.ByCategory, *cs)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		if summary.ByCategory[i].Amount != summary.ByCategory[j].Amount {
			return summary.ByCategory[i].Amount > summary.ByCategory[j].Amount
		}
		return summary.ByCategory[i].Name < summary.ByCategory[j].Name
	})

	var prevIncome, prevExpense int64
	for i := range prior {
		t := &prior[i]
		if isInternalTransfer(t) {
			continue
		}
		if t.Type == domain.TxIncome {
			prevIncome += t.Amount
		} else {
			prevExpense += t.Amount
		}
	}
	summary.VsPrior = &domain.PeriodDiff{
		IncomePct:  percentChange(summary.Income, prevIncome),
		ExpensePct: percentChange(summary.Expense, prevExpense),
		NetPct:     percentChange(summary.Net, prevIncome-prevExpense),
	}

	return summary
}

// isInternalTransfer reports whether a transaction moves money between
// family members rather than in or out of the family.
func isInternalTransfer(t *domain.Transaction) bool {
	if t.Direction == domain.DirectionGiven || t.Direction == domain.DirectionReceived {
		return true
	}
	if t.Type == domain.TxTransfer {
		return true
	}
	if t.Category == "Granted" || t.Category == "Present" {
		return true
	}
	return strings.Contains(t.Note, "(Granted)")
}

// transferReceived decides which side of an internal transfer a row is
// on. The structured direction wins; legacy rows fall back to note and
// category conventions.
func transferReceived(t *domain.Transaction) bool {
	switch t.Direction {
	case domain.DirectionReceived:
		return true
	case domain.DirectionGiven:
		return false
	}
	if strings.Contains(t.Note, "Received from") || strings.HasPrefix(t.Note, "From ") || t.Category == "Allowance" {
		return true
	}
	if strings.Contains(t.Note, "Transfer to") || strings.HasPrefix(t.Note, "To ") || t.Category == "Transfer Out" {
		return false
	}
	// Ambiguous legacy row: income-classified legs were the receiving side.
	return t.Type == domain.TxIncome
}

// displayCategory renames the legacy "Granted" bucket to "Present".
func displayCategory(name string) string {
	if name == "Granted" {
		return "Present"
	}
	return name
}

// percentChange follows the legacy convention: a zero prior period reads
// as +100% when anything happened this period, 0% otherwise.
func percentChange(current, prev int64) float64 {
	if prev == 0 {
		if current != 0 {
			return 100
		}
		return 0
	}
	return float64(current-prev) / float64(prev) * 100
}
