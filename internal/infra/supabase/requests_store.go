package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Money requests
// ============================================================

func (c *Client) CreateRequest(ctx context.Context, req *domain.MoneyRequest) (*domain.MoneyRequest, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRequest")
	defer span.End()

	body, err := c.doPost(ctx, "money_requests", req)
	if err != nil {
		return nil, err
	}

	var rows []domain.MoneyRequest
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created request: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("request insert returned no row")
	}

	c.logger.Info("supabase: money request created",
		zap.String("request_id", rows[0].ID),
		zap.Int64("amount", rows[0].Amount),
	)
	return &rows[0], nil
}

func (c *Client) ListRequests(ctx context.Context, familyID, status string) ([]domain.MoneyRequest, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRequests")
	defer span.End()

	path := fmt.Sprintf("money_requests?family_id=eq.%s&order=created_at.desc", familyID)
	if status != "" {
		path += fmt.Sprintf("&status=eq.%s", status)
	}
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.MoneyRequest
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	return rows, nil
}

func (c *Client) GetRequest(ctx context.Context, familyID, requestID string) (*domain.MoneyRequest, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRequest")
	defer span.End()

	path := fmt.Sprintf("money_requests?family_id=eq.%s&id=eq.%s&limit=1", familyID, requestID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.MoneyRequest
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "request", ID: requestID}
	}
	return &rows[0], nil
}

// TransitionRequestStatus moves a request between statuses with a
// compare-and-swap on the current status: the PATCH filter includes
// status=eq.<from>, so a request already decided by a concurrent admin
// matches zero rows. Returns false in that case so the caller can treat
// the race as lost instead of double-settling.
func (c *Client) TransitionRequestStatus(ctx context.Context, requestID, fromStatus, toStatus string, updates map[string]any) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.TransitionRequestStatus")
	defer span.End()

	data := map[string]any{"status": toStatus}
	for k, v := range updates {
		data[k] = v
	}

	path := fmt.Sprintf("money_requests?id=eq.%s&status=eq.%s", requestID, fromStatus)
	body, err := c.doPatch(ctx, path, data, true)
	if err != nil {
		return false, err
	}

	var rows []domain.MoneyRequest
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("decode transitioned request: %w", err)
	}
	if len(rows) == 0 {
		c.logger.Warn("supabase: request status transition matched no rows",
			zap.String("request_id", requestID),
			zap.String("from", fromStatus),
			zap.String("to", toStatus),
		)
		return false, nil
	}
	return true, nil
}
