package service

import (
	"context"
	"fmt"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var requestTracer = otel.Tracer("service/requests")

// Notification event names for the money request lifecycle.
const (
	EventRequestCreated  = "request.created"
	EventRequestApproved = "request.approved"
	EventRequestRejected = "request.rejected"
)

// RequestService runs the money request lifecycle: a member asks, an
// admin decides, an approval settles exactly one transfer.
type RequestService struct {
	store     port.LedgerStore
	transfers *TransferService
	notifier  port.Notifier
	logger    *zap.Logger
}

// NewRequestService creates a new request service.
func NewRequestService(store port.LedgerStore, transfers *TransferService, notifier port.Notifier, logger *zap.Logger) *RequestService {
	return &RequestService{store: store, transfers: transfers, notifier: notifier, logger: logger}
}

// CreateRequest opens a PENDING money request on behalf of a profile.
func (s *RequestService) CreateRequest(ctx context.Context, familyID string, req *domain.CreateRequestRequest) (*domain.MoneyRequest, error) {
	ctx, span := requestTracer.Start(ctx, "RequestService.CreateRequest")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	requester, err := s.store.GetProfile(ctx, familyID, req.ProfileID)
	if err != nil {
		return nil, err
	}

	row := &domain.MoneyRequest{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		CreatedBy: requester.ID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Category:  req.Category,
		Status:    domain.RequestPending,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.store.CreateRequest(ctx, row)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, familyID, EventRequestCreated, created)
	return created, nil
}

// ListRequests returns the family's requests, optionally filtered by status.
func (s *RequestService) ListRequests(ctx context.Context, familyID, status string) ([]domain.MoneyRequest, error) {
	ctx, span := requestTracer.Start(ctx, "RequestService.ListRequests")
	defer span.End()

	switch status {
	case "", domain.RequestPending, domain.RequestApproved, domain.RequestRejected:
	default:
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown status"}
	}
	return s.store.ListRequests(ctx, familyID, status)
}

// ApproveRequest moves a request PENDING → APPROVED and settles it with
// a transfer from the approver to the requester. The status transition
// is a compare-and-swap and runs before any ledger write, so two admins
// tapping approve at once produce exactly one settlement: the loser gets
// ErrConflict and the ledger is untouched.
func (s *RequestService) ApproveRequest(ctx context.Context, familyID, requestID, approverID string) (*domain.MoneyRequest, error) {
	ctx, span := requestTracer.Start(ctx, "RequestService.ApproveRequest")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	approver, err := s.requireAdmin(ctx, familyID, approverID, "approve requests")
	if err != nil {
		return nil, err
	}

	row, err := s.store.GetRequest(ctx, familyID, requestID)
	if err != nil {
		return nil, err
	}
	if row.CreatedBy == approver.ID {
		return nil, &domain.ErrForbidden{Action: "approve your own request"}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ok, err := s.store.TransitionRequestStatus(ctx, requestID, domain.RequestPending, domain.RequestApproved, map[string]any{
		"decided_by": approver.ID,
		"decided_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ErrConflict{Message: "request already decided"}
	}

	result, err := s.transfers.ProcessTransfer(ctx, familyID, &domain.TransferRequest{
		FromProfileID: approver.ID,
		ToProfileID:   row.CreatedBy,
		Amount:        row.Amount,
		Category:      row.Category,
		Reason:        row.Reason,
	}, requestID)
	if err != nil {
		// Put the request back so it can be approved again once the
		// store recovers.
		if _, revErr := s.store.TransitionRequestStatus(ctx, requestID, domain.RequestApproved, domain.RequestPending, map[string]any{
			"decided_by": "",
			"decided_at": nil,
		}); revErr != nil {
			s.logger.Error("failed to revert request after settlement failure",
				zap.String("request_id", requestID),
				zap.Error(revErr),
			)
		}
		return nil, fmt.Errorf("settle request: %w", err)
	}

	row.Status = domain.RequestApproved
	row.DecidedBy = approver.ID
	row.DecidedAt = now

	s.logger.Info("money request approved",
		zap.String("request_id", requestID),
		zap.String("transfer_id", result.TransferID),
	)
	s.notify(ctx, familyID, EventRequestApproved, row)
	return row, nil
}

// RejectRequest moves a request PENDING → REJECTED.
func (s *RequestService) RejectRequest(ctx context.Context, familyID, requestID, actorID, reason string) (*domain.MoneyRequest, error) {
	ctx, span := requestTracer.Start(ctx, "RequestService.RejectRequest")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", requestID))

	actor, err := s.requireAdmin(ctx, familyID, actorID, "reject requests")
	if err != nil {
		return nil, err
	}

	row, err := s.store.GetRequest(ctx, familyID, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ok, err := s.store.TransitionRequestStatus(ctx, requestID, domain.RequestPending, domain.RequestRejected, map[string]any{
		"decided_by":    actor.ID,
		"decided_at":    now,
		"reject_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.ErrConflict{Message: "request already decided"}
	}

	row.Status = domain.RequestRejected
	row.DecidedBy = actor.ID
	row.DecidedAt = now
	row.RejectReason = reason

	s.notify(ctx, familyID, EventRequestRejected, row)
	return row, nil
}

func (s *RequestService) requireAdmin(ctx context.Context, familyID, profileID, action string) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, familyID, profileID)
	if err != nil {
		return nil, err
	}
	if !domain.IsAdminRole(profile.Role) {
		return nil, &domain.ErrForbidden{Action: action}
	}
	return profile, nil
}

// notify pushes a lifecycle event. Best-effort: a lost notification
// never fails the operation that triggered it.
func (s *RequestService) notify(ctx context.Context, familyID, event string, row *domain.MoneyRequest) {
	payload := map[string]any{
		"request_id": row.ID,
		"amount":     row.Amount,
		"status":     row.Status,
	}
	if err := s.notifier.Notify(ctx, familyID, event, payload); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("event", event),
			zap.String("request_id", row.ID),
			zap.Error(err),
		)
	}
}
