package service

import (
	"context"
	"fmt"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var goalTracer = otel.Tracer("service/goals")

// GoalCategory is the category stamped on goal movement transactions.
const GoalCategory = "Savings"

// GoalService manages savings goals. Balances move only through
// Contribute and Withdraw (plus ledger edits of goal-tagged entries).
type GoalService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewGoalService creates a new goal service.
func NewGoalService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *GoalService {
	return &GoalService{store: store, metrics: metrics, logger: logger}
}

func (s *GoalService) CreateGoal(ctx context.Context, familyID string, req *domain.CreateGoalRequest) (*domain.Goal, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.CreateGoal")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if req.TargetAmount <= 0 {
		return nil, &domain.ErrValidation{Field: "target_amount", Message: "target_amount must be positive"}
	}
	if _, err := s.store.GetProfile(ctx, familyID, req.OwnerID); err != nil {
		return nil, err
	}

	shared := req.SharedWith
	if len(shared) == 0 {
		shared = []string{domain.SharedWithAll}
	}

	goal := &domain.Goal{
		ID:           uuid.NewString(),
		FamilyID:     familyID,
		OwnerID:      req.OwnerID,
		Name:         req.Name,
		Icon:         req.Icon,
		TargetAmount: req.TargetAmount,
		SharedWith:   shared,
		CreatedAt:    time.Now().UTC(),
	}
	return s.store.CreateGoal(ctx, goal)
}

func (s *GoalService) ListGoals(ctx context.Context, familyID string) ([]domain.Goal, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.ListGoals")
	defer span.End()

	return s.store.ListGoals(ctx, familyID)
}

func (s *GoalService) GetGoal(ctx context.Context, familyID, goalID string) (*domain.Goal, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.GetGoal")
	defer span.End()

	return s.store.GetGoal(ctx, familyID, goalID)
}

func (s *GoalService) DeleteGoal(ctx context.Context, familyID, goalID string) error {
	ctx, span := goalTracer.Start(ctx, "GoalService.DeleteGoal")
	defer span.End()

	if _, err := s.store.GetGoal(ctx, familyID, goalID); err != nil {
		return err
	}
	return s.store.DeleteGoal(ctx, familyID, goalID)
}

// Contribute moves money into a goal: atomic balance increment plus an
// expense-classified ledger entry tagged with the goal. If the ledger
// write fails the increment is compensated so the balance never reflects
// a movement the ledger does not show.
func (s *GoalService) Contribute(ctx context.Context, familyID, goalID string, req *domain.GoalMovementRequest) (*domain.Transaction, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.Contribute")
	defer span.End()
	span.SetAttributes(attribute.String("goal.id", goalID))

	goal, err := s.validateMovement(ctx, familyID, goalID, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementGoalAmount(ctx, goalID, req.Amount); err != nil {
		s.metrics.IncrStoreError("goals")
		return nil, err
	}

	tx, err := s.insertMovement(ctx, familyID, goal, req, domain.TxExpense, fmt.Sprintf("Saved for %s", goal.Name))
	if err != nil {
		if revErr := s.store.IncrementGoalAmount(ctx, goalID, -req.Amount); revErr != nil {
			s.logger.Error("failed to compensate goal increment",
				zap.String("goal_id", goalID),
				zap.Error(revErr),
			)
		}
		return nil, err
	}

	if err := s.store.IncrementProfileSpent(ctx, req.ProfileID, req.Amount); err != nil {
		s.logger.Warn("failed to adjust spent counter for goal contribution",
			zap.String("profile_id", req.ProfileID),
			zap.Error(err),
		)
	}
	return tx, nil
}

// Withdraw moves money out of a goal. Overdrafts are rejected before any
// write: the goal balance can never go negative.
func (s *GoalService) Withdraw(ctx context.Context, familyID, goalID string, req *domain.GoalMovementRequest) (*domain.Transaction, error) {
	ctx, span := goalTracer.Start(ctx, "GoalService.Withdraw")
	defer span.End()
	span.SetAttributes(attribute.String("goal.id", goalID))

	goal, err := s.validateMovement(ctx, familyID, goalID, req)
	if err != nil {
		return nil, err
	}
	if req.Amount > goal.CurrentAmount {
		return nil, &domain.ErrInsufficientFunds{Available: goal.CurrentAmount, Required: req.Amount}
	}

	if err := s.store.IncrementGoalAmount(ctx, goalID, -req.Amount); err != nil {
		s.metrics.IncrStoreError("goals")
		return nil, err
	}

	tx, err := s.insertMovement(ctx, familyID, goal, req, domain.TxIncome, fmt.Sprintf("Withdrawn from %s", goal.Name))
	if err != nil {
		if revErr := s.store.IncrementGoalAmount(ctx, goalID, req.Amount); revErr != nil {
			s.logger.Error("failed to compensate goal decrement",
				zap.String("goal_id", goalID),
				zap.Error(revErr),
			)
		}
		return nil, err
	}
	return tx, nil
}

func (s *GoalService) validateMovement(ctx context.Context, familyID, goalID string, req *domain.GoalMovementRequest) (*domain.Goal, error) {
	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if _, err := s.store.GetProfile(ctx, familyID, req.ProfileID); err != nil {
		return nil, err
	}
	return s.store.GetGoal(ctx, familyID, goalID)
}

func (s *GoalService) insertMovement(ctx context.Context, familyID string, goal *domain.Goal, req *domain.GoalMovementRequest, txType, defaultNote string) (*domain.Transaction, error) {
	note := req.Note
	if note == "" {
		note = defaultNote
	}
	tx := &domain.Transaction{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		ProfileID: req.ProfileID,
		Amount:    req.Amount,
		Type:      txType,
		Category:  GoalCategory,
		Note:      note,
		Date:      time.Now().UTC().Format("2006-01-02"),
		Direction: domain.DirectionNone,
		GoalID:    goal.ID,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, err
	}
	return created, nil
}
