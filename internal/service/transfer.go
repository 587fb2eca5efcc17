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

var transferTracer = otel.Tracer("service/transfer")

// DefaultTransferCategory is used when the caller does not pick one.
const DefaultTransferCategory = "Granted"

// TransferService settles profile-to-profile transfers as paired ledger
// entries: a debit on the sender, a credit on the receiver, linked by a
// shared transfer ID.
type TransferService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransferService creates a new transfer service.
func NewTransferService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *TransferService {
	return &TransferService{store: store, metrics: metrics, logger: logger}
}

// ProcessTransfer writes both legs of a transfer. The document store has
// no multi-document transactions, so this is two writes with a
// compensating delete: if the credit leg fails after the debit leg
// persisted, the debit leg is removed again and the whole settlement
// reports failure. requestID links the legs back to a money request and
// may be empty for direct transfers.
func (s *TransferService) ProcessTransfer(ctx context.Context, familyID string, req *domain.TransferRequest, requestID string) (*domain.TransferResult, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.ProcessTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("family.id", familyID),
		attribute.Int64("amount", req.Amount),
	)

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if req.FromProfileID == "" || req.ToProfileID == "" {
		return nil, &domain.ErrValidation{Field: "profile_id", Message: "from and to profiles are required"}
	}
	if req.FromProfileID == req.ToProfileID {
		return nil, &domain.ErrValidation{Field: "to_profile_id", Message: "cannot transfer to the same profile"}
	}

	// Both endpoints must exist before any ledger write.
	if _, err := s.store.GetProfile(ctx, familyID, req.FromProfileID); err != nil {
		return nil, err
	}
	to, err := s.store.GetProfile(ctx, familyID, req.ToProfileID)
	if err != nil {
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = DefaultTransferCategory
	}
	note := req.Reason
	if note == "" {
		note = fmt.Sprintf("Transfer to %s", to.Name)
	}

	transferID := uuid.NewString()
	now := time.Now().UTC()
	date := now.Format("2006-01-02")

	debit := &domain.Transaction{
		ID:         uuid.NewString(),
		FamilyID:   familyID,
		ProfileID:  req.FromProfileID,
		Amount:     req.Amount,
		Type:       domain.TxExpense,
		Category:   category,
		Note:       note,
		Date:       date,
		Direction:  domain.DirectionGiven,
		TransferID: transferID,
		RequestID:  requestID,
		CreatedAt:  now,
	}
	credit := &domain.Transaction{
		ID:         uuid.NewString(),
		FamilyID:   familyID,
		ProfileID:  req.ToProfileID,
		Amount:     req.Amount,
		Type:       domain.TxIncome,
		Category:   category,
		Note:       note,
		Date:       date,
		Direction:  domain.DirectionReceived,
		TransferID: transferID,
		RequestID:  requestID,
		CreatedAt:  now,
	}

	debitRow, err := s.store.InsertTransaction(ctx, debit)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, fmt.Errorf("insert debit leg: %w", err)
	}

	creditRow, err := s.store.InsertTransaction(ctx, credit)
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		s.logger.Error("credit leg failed, rolling back debit leg",
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
		if delErr := s.store.DeleteTransaction(ctx, familyID, debitRow.ID); delErr != nil {
			// Orphaned debit leg. RecomputeSpent ignores transfer legs,
			// so the damage is a dangling row, not a wrong counter.
			s.logger.Error("compensating delete failed, orphaned debit leg",
				zap.String("transfer_id", transferID),
				zap.String("tx_id", debitRow.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("insert credit leg: %w", err)
	}

	s.metrics.IncrTransferSettled()
	s.logger.Info("transfer settled",
		zap.String("transfer_id", transferID),
		zap.String("from", req.FromProfileID),
		zap.String("to", req.ToProfileID),
		zap.Int64("amount", req.Amount),
	)

	return &domain.TransferResult{
		TransferID: transferID,
		Debit:      debitRow,
		Credit:     creditRow,
	}, nil
}
