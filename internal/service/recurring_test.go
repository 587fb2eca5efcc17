package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"go.uber.org/zap"
)

func newRecurringFixture() (*service.RecurringService, *fakeStore) {
	store := newFakeStore()
	store.addProfile(domain.Profile{ID: "p1", FamilyID: "fam1", Name: "Minh", Role: domain.RoleOwner, Limit: 10_000_000})
	svc := service.NewRecurringService(store, observability.NewMetrics(), zap.NewNop())
	return svc, store
}

func addRule(store *fakeStore, rule domain.RecurringRule) *domain.RecurringRule {
	store.rules[rule.ID] = &rule
	return &rule
}

func TestCreateRule(t *testing.T) {
	svc, _ := newRecurringFixture()

	rule, err := svc.CreateRule(context.Background(), "fam1", &domain.CreateRecurringRequest{
		ProfileID: "p1",
		Name:      "Netflix",
		Amount:    260_000,
		Type:      domain.TxExpense,
		Frequency: domain.FreqMonthly,
		StartDate: "2026-01-01",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rule.ID == "" || rule.FamilyID != "fam1" {
		t.Errorf("bad rule: %+v", rule)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	svc, _ := newRecurringFixture()

	cases := []struct {
		name string
		req  domain.CreateRecurringRequest
	}{
		{"zero amount", domain.CreateRecurringRequest{ProfileID: "p1", Amount: 0, Type: domain.TxExpense, Frequency: domain.FreqMonthly, StartDate: "2026-01-01"}},
		{"bad type", domain.CreateRecurringRequest{ProfileID: "p1", Amount: 100, Type: "transfer", Frequency: domain.FreqMonthly, StartDate: "2026-01-01"}},
		{"bad frequency", domain.CreateRecurringRequest{ProfileID: "p1", Amount: 100, Type: domain.TxExpense, Frequency: "WEEKLY", StartDate: "2026-01-01"}},
		{"bad start date", domain.CreateRecurringRequest{ProfileID: "p1", Amount: 100, Type: domain.TxExpense, Frequency: domain.FreqMonthly, StartDate: "Jan 1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateRule(context.Background(), "fam1", &tc.req)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestProcessDueCharges_FiresOncePerPeriod(t *testing.T) {
	svc, store := newRecurringFixture()
	addRule(store, domain.RecurringRule{
		ID: "r1", FamilyID: "fam1", ProfileID: "p1",
		Name: "Netflix", Amount: 260_000, Type: domain.TxExpense,
		Frequency: domain.FreqMonthly, StartDate: "2026-01-01",
	})
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	fired, err := svc.ProcessDueCharges(context.Background(), "fam1", now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected 1 charge, got %d", fired)
	}

	var charge *domain.Transaction
	for _, tx := range store.txns {
		charge = tx
	}
	if charge.RecurringRuleID != "r1" || charge.PeriodKey != "2026-08" {
		t.Errorf("bad charge tagging: %+v", charge)
	}
	if charge.Date != "2026-08-01" {
		t.Errorf("charge must be dated at period start, got %s", charge.Date)
	}
	if got := store.profiles["p1"].Spent; got != 260_000 {
		t.Errorf("expected spent counter bumped, got %d", got)
	}

	// Second run in the same period is a no-op.
	fired, err = svc.ProcessDueCharges(context.Background(), "fam1", now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fired != 0 {
		t.Errorf("expected idempotent rerun, got %d charges", fired)
	}
	if len(store.txns) != 1 {
		t.Errorf("expected 1 ledger entry, got %d", len(store.txns))
	}
}

func TestProcessDueCharges_YearlyPeriodKey(t *testing.T) {
	svc, store := newRecurringFixture()
	addRule(store, domain.RecurringRule{
		ID: "r1", FamilyID: "fam1", ProfileID: "p1",
		Name: "Insurance", Amount: 1_200_000, Type: domain.TxExpense,
		Frequency: domain.FreqYearly, StartDate: "2025-01-01",
	})
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	if _, err := svc.ProcessDueCharges(context.Background(), "fam1", now); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, tx := range store.txns {
		if tx.PeriodKey != "2026" {
			t.Errorf("expected yearly period key, got %s", tx.PeriodKey)
		}
		if tx.Date != "2026-01-01" {
			t.Errorf("expected year start date, got %s", tx.Date)
		}
	}
}

func TestProcessDueCharges_SkipsInactiveRules(t *testing.T) {
	svc, store := newRecurringFixture()
	addRule(store, domain.RecurringRule{
		ID: "future", FamilyID: "fam1", ProfileID: "p1",
		Name: "Not yet", Amount: 100, Type: domain.TxExpense,
		Frequency: domain.FreqMonthly, StartDate: "2027-01-01",
	})
	addRule(store, domain.RecurringRule{
		ID: "ended", FamilyID: "fam1", ProfileID: "p1",
		Name: "Cancelled", Amount: 100, Type: domain.TxExpense,
		Frequency: domain.FreqMonthly, StartDate: "2025-01-01", EndDate: "2025-12-31",
	})
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	fired, err := svc.ProcessDueCharges(context.Background(), "fam1", now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fired != 0 {
		t.Errorf("expected no charges, got %d", fired)
	}
}

func TestProcessDueCharges_OneBrokenRuleDoesNotBlockOthers(t *testing.T) {
	svc, store := newRecurringFixture()
	addRule(store, domain.RecurringRule{
		ID: "broken", FamilyID: "fam1", ProfileID: "p1",
		Name: "Corrupt", Amount: 100, Type: domain.TxExpense,
		Frequency: domain.FreqMonthly, StartDate: "not-a-date",
	})
	addRule(store, domain.RecurringRule{
		ID: "ok", FamilyID: "fam1", ProfileID: "p1",
		Name: "Spotify", Amount: 60_000, Type: domain.TxExpense,
		Frequency: domain.FreqMonthly, StartDate: "2026-01-01",
	})
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	fired, err := svc.ProcessDueCharges(context.Background(), "fam1", now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if fired != 1 {
		t.Errorf("expected healthy rule to fire, got %d", fired)
	}
}

func TestUpdateRule_WhitelistOnly(t *testing.T) {
	svc, store := newRecurringFixture()
	addRule(store, domain.RecurringRule{
		ID: "r1", FamilyID: "fam1", ProfileID: "p1",
		Name: "Netflix", Amount: 260_000, Type: domain.TxExpense,
		Frequency: domain.FreqMonthly, StartDate: "2026-01-01",
	})

	rule, err := svc.UpdateRule(context.Background(), "fam1", "r1", map[string]any{
		"amount":    int64(299_000),
		"family_id": "fam2", // not updatable
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rule.Amount != 299_000 {
		t.Errorf("expected amount updated, got %d", rule.Amount)
	}
	if rule.FamilyID != "fam1" {
		t.Errorf("family_id must not pass through, got %s", rule.FamilyID)
	}
}

func TestUpdateRule_NoUpdatableFields(t *testing.T) {
	svc, store := newRecurringFixture()
	addRule(store, domain.RecurringRule{ID: "r1", FamilyID: "fam1", ProfileID: "p1", Name: "Netflix", Amount: 260_000, Type: domain.TxExpense, Frequency: domain.FreqMonthly, StartDate: "2026-01-01"})

	_, err := svc.UpdateRule(context.Background(), "fam1", "r1", map[string]any{"family_id": "fam2"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
