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
// Transactions — the ledger itself
// ============================================================

func (c *Client) ListTransactions(ctx context.Context, familyID, fromDate, toDate string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()

	path := fmt.Sprintf("transactions?family_id=eq.%s%s&order=date.desc,created_at.desc", familyID, dateRange(fromDate, toDate))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Transaction
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return rows, nil
}

func (c *Client) ListProfileTransactions(ctx context.Context, familyID, profileID, fromDate, toDate string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfileTransactions")
	defer span.End()

	path := fmt.Sprintf("transactions?family_id=eq.%s&profile_id=eq.%s%s&order=date.desc,created_at.desc",
		familyID, profileID, dateRange(fromDate, toDate))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Transaction
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return rows, nil
}

func (c *Client) GetTransaction(ctx context.Context, familyID, txID string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?family_id=eq.%s&id=eq.%s&limit=1", familyID, txID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Transaction
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	return &rows[0], nil
}

func (c *Client) InsertTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransaction")
	defer span.End()

	body, err := c.doPost(ctx, "transactions", tx)
	if err != nil {
		return nil, err
	}

	var rows []domain.Transaction
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transaction insert returned no row")
	}

	c.logger.Info("supabase: transaction inserted",
		zap.String("tx_id", rows[0].ID),
		zap.String("type", rows[0].Type),
		zap.Int64("amount", rows[0].Amount),
	)
	return &rows[0], nil
}

func (c *Client) UpdateTransaction(ctx context.Context, txID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?id=eq.%s", txID)
	_, err := c.doPatch(ctx, path, updates, false)
	return err
}

func (c *Client) DeleteTransaction(ctx context.Context, familyID, txID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?family_id=eq.%s&id=eq.%s", familyID, txID)
	return c.doDelete(ctx, path)
}

// RecurringChargeExists reports whether a rule already materialized a
// transaction for the given period. This is the idempotence check for the
// recurring processor.
func (c *Client) RecurringChargeExists(ctx context.Context, ruleID, periodKey string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RecurringChargeExists")
	defer span.End()

	path := fmt.Sprintf("transactions?recurring_rule_id=eq.%s&period_key=eq.%s&select=id&limit=1", ruleID, periodKey)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return false, err
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("decode recurring charge lookup: %w", err)
	}
	return len(rows) > 0, nil
}

// dateRange builds the optional gte/lte filters on the booking date.
func dateRange(fromDate, toDate string) string {
	out := ""
	if fromDate != "" {
		out += fmt.Sprintf("&date=gte.%s", fromDate)
	}
	if toDate != "" {
		out += fmt.Sprintf("&date=lte.%s", toDate)
	}
	return out
}
