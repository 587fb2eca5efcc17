package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"go.uber.org/zap"
)

func newTransferFixture() (*service.TransferService, *fakeStore) {
	store := newFakeStore()
	store.addProfile(domain.Profile{ID: "mom", FamilyID: "fam1", Name: "Mom", Role: domain.RoleOwner})
	store.addProfile(domain.Profile{ID: "kid", FamilyID: "fam1", Name: "Kid", Role: domain.RoleMember})
	svc := service.NewTransferService(store, observability.NewMetrics(), zap.NewNop())
	return svc, store
}

func TestProcessTransfer_WritesPairedLegs(t *testing.T) {
	svc, store := newTransferFixture()

	result, err := svc.ProcessTransfer(context.Background(), "fam1", &domain.TransferRequest{
		FromProfileID: "mom",
		ToProfileID:   "kid",
		Amount:        100_000,
	}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.TransferID == "" {
		t.Fatal("expected a transfer id")
	}
	if result.Debit.TransferID != result.TransferID || result.Credit.TransferID != result.TransferID {
		t.Error("legs must share the transfer id")
	}
	if result.Debit.Type != domain.TxExpense || result.Debit.Direction != domain.DirectionGiven {
		t.Errorf("bad debit leg: type=%s direction=%s", result.Debit.Type, result.Debit.Direction)
	}
	if result.Credit.Type != domain.TxIncome || result.Credit.Direction != domain.DirectionReceived {
		t.Errorf("bad credit leg: type=%s direction=%s", result.Credit.Type, result.Credit.Direction)
	}
	if result.Debit.Category != service.DefaultTransferCategory {
		t.Errorf("expected default category %q, got %q", service.DefaultTransferCategory, result.Debit.Category)
	}
	if result.Credit.Note != "Transfer to Kid" {
		t.Errorf("expected generated note, got %q", result.Credit.Note)
	}
	if len(store.txns) != 2 {
		t.Errorf("expected 2 ledger entries, got %d", len(store.txns))
	}
}

func TestProcessTransfer_Validation(t *testing.T) {
	svc, _ := newTransferFixture()

	cases := []struct {
		name string
		req  domain.TransferRequest
	}{
		{"zero amount", domain.TransferRequest{FromProfileID: "mom", ToProfileID: "kid", Amount: 0}},
		{"same profile", domain.TransferRequest{FromProfileID: "mom", ToProfileID: "mom", Amount: 100}},
		{"missing to", domain.TransferRequest{FromProfileID: "mom", Amount: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ProcessTransfer(context.Background(), "fam1", &tc.req, "")
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestProcessTransfer_UnknownProfile(t *testing.T) {
	svc, _ := newTransferFixture()

	_, err := svc.ProcessTransfer(context.Background(), "fam1", &domain.TransferRequest{
		FromProfileID: "mom",
		ToProfileID:   "ghost",
		Amount:        100,
	}, "")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestProcessTransfer_CreditFailureRollsBackDebit(t *testing.T) {
	svc, store := newTransferFixture()
	store.insertTxFailAt = 2 // debit lands, credit fails

	_, err := svc.ProcessTransfer(context.Background(), "fam1", &domain.TransferRequest{
		FromProfileID: "mom",
		ToProfileID:   "kid",
		Amount:        100_000,
	}, "")
	if err == nil {
		t.Fatal("expected settlement to fail")
	}
	if len(store.txns) != 0 {
		t.Errorf("expected debit leg rolled back, %d entries remain", len(store.txns))
	}
}
