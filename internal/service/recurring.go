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

var recurringTracer = otel.Tracer("service/recurring")

// RecurringService manages subscription-like rules and materializes one
// transaction per rule per period.
type RecurringService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRecurringService creates a new recurring service.
func NewRecurringService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *RecurringService {
	return &RecurringService{store: store, metrics: metrics, logger: logger}
}

// CreateRule registers a recurring rule. It does not fire a charge by
// itself; callers follow up with ProcessDueCharges.
func (s *RecurringService) CreateRule(ctx context.Context, familyID string, req *domain.CreateRecurringRequest) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.CreateRule")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if req.Type != domain.TxIncome && req.Type != domain.TxExpense {
		return nil, &domain.ErrValidation{Field: "type", Message: "type must be income or expense"}
	}
	if req.Frequency != domain.FreqMonthly && req.Frequency != domain.FreqYearly {
		return nil, &domain.ErrValidation{Field: "frequency", Message: "frequency must be MONTHLY or YEARLY"}
	}
	if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
		return nil, &domain.ErrValidation{Field: "start_date", Message: "start_date must be YYYY-MM-DD"}
	}
	if req.EndDate != "" {
		if _, err := time.Parse("2006-01-02", req.EndDate); err != nil {
			return nil, &domain.ErrValidation{Field: "end_date", Message: "end_date must be YYYY-MM-DD"}
		}
	}
	if _, err := s.store.GetProfile(ctx, familyID, req.ProfileID); err != nil {
		return nil, err
	}

	rule := &domain.RecurringRule{
		ID:           uuid.NewString(),
		FamilyID:     familyID,
		ProfileID:    req.ProfileID,
		Name:         req.Name,
		Amount:       req.Amount,
		Type:         req.Type,
		Frequency:    req.Frequency,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Category:     req.Category,
		CategoryIcon: req.CategoryIcon,
		CreatedAt:    time.Now().UTC(),
	}
	return s.store.CreateRecurringRule(ctx, rule)
}

func (s *RecurringService) ListRules(ctx context.Context, familyID string) ([]domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.ListRules")
	defer span.End()

	return s.store.ListRecurringRules(ctx, familyID)
}

func (s *RecurringService) GetRule(ctx context.Context, familyID, ruleID string) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.GetRule")
	defer span.End()

	return s.store.GetRecurringRule(ctx, familyID, ruleID)
}

// UpdateRule patches a rule. Only whitelisted columns pass through.
func (s *RecurringService) UpdateRule(ctx context.Context, familyID, ruleID string, updates map[string]any) (*domain.RecurringRule, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.UpdateRule")
	defer span.End()

	filtered := map[string]any{}
	for _, key := range []string{"name", "amount", "category", "category_icon", "frequency", "start_date", "end_date"} {
		if v, ok := updates[key]; ok {
			filtered[key] = v
		}
	}
	if len(filtered) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no updatable fields"}
	}

	if _, err := s.store.GetRecurringRule(ctx, familyID, ruleID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRecurringRule(ctx, familyID, ruleID, filtered); err != nil {
		return nil, err
	}
	return s.store.GetRecurringRule(ctx, familyID, ruleID)
}

func (s *RecurringService) DeleteRule(ctx context.Context, familyID, ruleID string) error {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.DeleteRule")
	defer span.End()

	if _, err := s.store.GetRecurringRule(ctx, familyID, ruleID); err != nil {
		return err
	}
	return s.store.DeleteRecurringRule(ctx, familyID, ruleID)
}

// ProcessDueCharges materializes one transaction per active rule for the
// period containing now. Safe to call any number of times per period: a
// charge already recorded for (rule, period) is skipped. One broken rule
// never blocks the rest; its error is logged and processing moves on.
func (s *RecurringService) ProcessDueCharges(ctx context.Context, familyID string, now time.Time) (int, error) {
	ctx, span := recurringTracer.Start(ctx, "RecurringService.ProcessDueCharges")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	rules, err := s.store.ListRecurringRules(ctx, familyID)
	if err != nil {
		return 0, err
	}

	fired := 0
	for i := range rules {
		rule := &rules[i]

		active, err := ruleActiveAt(rule, now)
		if err != nil {
			s.logger.Warn("recurring: skipping rule with bad dates",
				zap.String("rule_id", rule.ID),
				zap.Error(err),
			)
			continue
		}
		if !active {
			continue
		}

		periodKey := periodKeyFor(rule.Frequency, now)
		exists, err := s.store.RecurringChargeExists(ctx, rule.ID, periodKey)
		if err != nil {
			s.logger.Warn("recurring: dedup lookup failed, skipping rule",
				zap.String("rule_id", rule.ID),
				zap.Error(err),
			)
			s.metrics.IncrStoreError("transactions")
			continue
		}
		if exists {
			continue
		}

		tx := &domain.Transaction{
			ID:              uuid.NewString(),
			FamilyID:        rule.FamilyID,
			ProfileID:       rule.ProfileID,
			Amount:          rule.Amount,
			Type:            rule.Type,
			Category:        rule.Category,
			CategoryIcon:    rule.CategoryIcon,
			Note:            rule.Name,
			Date:            periodStart(rule.Frequency, now).Format("2006-01-02"),
			Direction:       domain.DirectionNone,
			RecurringRuleID: rule.ID,
			PeriodKey:       periodKey,
			CreatedAt:       time.Now().UTC(),
		}

		created, err := s.store.InsertTransaction(ctx, tx)
		if err != nil {
			s.logger.Error("recurring: failed to materialize charge",
				zap.String("rule_id", rule.ID),
				zap.String("period", periodKey),
				zap.Error(err),
			)
			s.metrics.IncrStoreError("transactions")
			continue
		}

		if countsTowardSpent(created) {
			if err := s.store.IncrementProfileSpent(ctx, created.ProfileID, created.Amount); err != nil {
				s.logger.Warn("recurring: failed to adjust spent counter",
					zap.String("profile_id", created.ProfileID),
					zap.Error(err),
				)
			}
		}

		s.metrics.IncrRecurringFired()
		fired++
	}

	if fired > 0 {
		s.logger.Info("recurring charges materialized",
			zap.String("family_id", familyID),
			zap.Int("fired", fired),
		)
	}
	return fired, nil
}

// ruleActiveAt reports whether a rule covers the instant now.
func ruleActiveAt(rule *domain.RecurringRule, now time.Time) (bool, error) {
	start, err := time.Parse("2006-01-02", rule.StartDate)
	if err != nil {
		return false, fmt.Errorf("parse start_date: %w", err)
	}
	if start.After(now) {
		return false, nil
	}
	if rule.EndDate != "" {
		end, err := time.Parse("2006-01-02", rule.EndDate)
		if err != nil {
			return false, fmt.Errorf("parse end_date: %w", err)
		}
		if end.Before(now.Truncate(24 * time.Hour)) {
			return false, nil
		}
	}
	return true, nil
}

// periodKeyFor is the dedup key: one charge per rule per period.
func periodKeyFor(frequency string, now time.Time) string {
	if frequency == domain.FreqYearly {
		return now.Format("2006")
	}
	return now.Format("2006-01")
}

func periodStart(frequency string, now time.Time) time.Time {
	if frequency == domain.FreqYearly {
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
