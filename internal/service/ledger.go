// Package service provides the business logic layer (use cases).
// LedgerService owns transaction CRUD and keeps the profile spent
// counters and goal balances consistent with ledger writes.
package service

import (
	"context"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService orchestrates transaction operations via the document store.
type LedgerService struct {
	store   port.LedgerStore
	budget  *BudgetService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(store port.LedgerStore, budget *BudgetService, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: store, budget: budget, metrics: metrics, logger: logger}
}

func (s *LedgerService) ListTransactions(ctx context.Context, familyID, fromDate, toDate string) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	return s.store.ListTransactions(ctx, familyID, fromDate, toDate)
}

func (s *LedgerService) ListProfileTransactions(ctx context.Context, familyID, profileID, fromDate, toDate string) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListProfileTransactions")
	defer span.End()

	return s.store.ListProfileTransactions(ctx, familyID, profileID, fromDate, toDate)
}

func (s *LedgerService) GetTransaction(ctx context.Context, familyID, txID string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetTransaction")
	defer span.End()

	return s.store.GetTransaction(ctx, familyID, txID)
}

// CreateTransaction posts a ledger entry. Expenses are validated against
// the profile's budget first; a WARNING or CRITICAL check is returned
// without writing unless the client set save_anyway. The returned check
// is non-nil exactly when the entry is an expense.
func (s *LedgerService) CreateTransaction(ctx context.Context, familyID string, req *domain.CreateTransactionRequest) (*domain.Transaction, *domain.BudgetCheck, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	if req.Amount <= 0 {
		return nil, nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if req.Type != domain.TxIncome && req.Type != domain.TxExpense {
		return nil, nil, &domain.ErrValidation{Field: "type", Message: "type must be income or expense"}
	}
	if req.ProfileID == "" {
		return nil, nil, &domain.ErrValidation{Field: "profile_id", Message: "profile_id is required"}
	}
	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, nil, &domain.ErrValidation{Field: "date", Message: "date must be YYYY-MM-DD"}
	}

	var check *domain.BudgetCheck
	if req.Type == domain.TxExpense {
		var err error
		check, err = s.budget.CheckBudget(ctx, familyID, req.ProfileID, req.Amount)
		if err != nil {
			return nil, nil, err
		}
		if check.Status != domain.BudgetAllowed && !req.SaveAnyway {
			return nil, check, nil
		}
	}

	tx := &domain.Transaction{
		ID:           uuid.NewString(),
		FamilyID:     familyID,
		ProfileID:    req.ProfileID,
		Amount:       req.Amount,
		Type:         req.Type,
		Category:     req.Category,
		CategoryIcon: req.CategoryIcon,
		Note:         req.Note,
		Date:         date,
		Direction:    domain.DirectionNone,
		GoalID:       req.GoalID,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, nil, err
	}

	s.applyCounterDeltas(ctx, created, created.Amount)
	return created, check, nil
}

// UpdateTransaction edits an entry. Aggregate effects of the old values
// are reversed and the new ones applied: an amount change moves the
// profile spent counter (expenses) and the goal balance (goal-tagged
// entries) by the delta. Transfer legs are immutable; undo the transfer
// instead of editing half of it.
func (s *LedgerService) UpdateTransaction(ctx context.Context, familyID, txID string, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.UpdateTransaction")
	defer span.End()

	old, err := s.store.GetTransaction(ctx, familyID, txID)
	if err != nil {
		return nil, err
	}
	if old.TransferID != "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "transfer legs cannot be edited"}
	}

	updates := map[string]any{}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
		}
		updates["amount"] = *req.Amount
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.CategoryIcon != nil {
		updates["category_icon"] = *req.CategoryIcon
	}
	if req.Note != nil {
		updates["note"] = *req.Note
	}
	if req.Date != nil {
		if _, err := time.Parse("2006-01-02", *req.Date); err != nil {
			return nil, &domain.ErrValidation{Field: "date", Message: "date must be YYYY-MM-DD"}
		}
		updates["date"] = *req.Date
	}
	if len(updates) == 0 {
		return old, nil
	}

	if err := s.store.UpdateTransaction(ctx, txID, updates); err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, err
	}

	if req.Amount != nil && *req.Amount != old.Amount {
		s.applyCounterDeltas(ctx, old, *req.Amount-old.Amount)
	}

	return s.store.GetTransaction(ctx, familyID, txID)
}

// DeleteTransaction removes an entry and reverses its aggregate effects.
func (s *LedgerService) DeleteTransaction(ctx context.Context, familyID, txID string) error {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.DeleteTransaction")
	defer span.End()

	old, err := s.store.GetTransaction(ctx, familyID, txID)
	if err != nil {
		return err
	}
	if old.TransferID != "" {
		return &domain.ErrValidation{Field: "id", Message: "transfer legs cannot be deleted individually"}
	}

	if err := s.store.DeleteTransaction(ctx, familyID, txID); err != nil {
		s.metrics.IncrStoreError("transactions")
		return err
	}

	s.applyCounterDeltas(ctx, old, -old.Amount)
	return nil
}

// RecomputeSpent re-aggregates the profile's current-month non-transfer
// expenses from the ledger and overwrites the spent counter with the
// result. The ledger is the source of truth; the counter is a cache.
func (s *LedgerService) RecomputeSpent(ctx context.Context, familyID, profileID string) (int64, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.RecomputeSpent")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

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

	if err := s.store.UpdateProfile(ctx, familyID, profileID, map[string]any{"spent": total}); err != nil {
		return 0, err
	}

	s.logger.Info("spent counter recomputed",
		zap.String("profile_id", profileID),
		zap.Int64("spent", total),
	)
	return total, nil
}

// applyCounterDeltas moves the spent counter and goal balance by delta
// for a transaction's aggregate effects. Best-effort: failures are
// logged and counted, never surfaced, because the ledger entry itself
// already persisted and RecomputeSpent can heal the counter.
func (s *LedgerService) applyCounterDeltas(ctx context.Context, tx *domain.Transaction, delta int64) {
	if countsTowardSpent(tx) {
		if err := s.store.IncrementProfileSpent(ctx, tx.ProfileID, delta); err != nil {
			s.metrics.IncrStoreError("profiles")
			s.logger.Warn("failed to adjust spent counter",
				zap.String("profile_id", tx.ProfileID),
				zap.Int64("delta", delta),
				zap.Error(err),
			)
		}
	}

	if tx.GoalID != "" {
		goalDelta := delta
		if tx.Type == domain.TxIncome {
			// Goal withdrawals are income-classified; a bigger
			// withdrawal means a smaller goal balance.
			goalDelta = -delta
		}
		if err := s.store.IncrementGoalAmount(ctx, tx.GoalID, goalDelta); err != nil {
			s.metrics.IncrStoreError("goals")
			s.logger.Warn("failed to adjust goal balance",
				zap.String("goal_id", tx.GoalID),
				zap.Int64("delta", goalDelta),
				zap.Error(err),
			)
		}
	}
}
