package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
)

// ============================================================
// Recurring rules
// ============================================================

func (c *Client) CreateRecurringRule(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRecurringRule")
	defer span.End()

	body, err := c.doPost(ctx, "recurring_rules", rule)
	if err != nil {
		return nil, err
	}

	var rows []domain.RecurringRule
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created recurring rule: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("recurring rule insert returned no row")
	}
	return &rows[0], nil
}

func (c *Client) ListRecurringRules(ctx context.Context, familyID string) ([]domain.RecurringRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecurringRules")
	defer span.End()

	path := fmt.Sprintf("recurring_rules?family_id=eq.%s&order=created_at.asc", familyID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.RecurringRule
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode recurring rules: %w", err)
	}
	return rows, nil
}

func (c *Client) GetRecurringRule(ctx context.Context, familyID, ruleID string) (*domain.RecurringRule, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRecurringRule")
	defer span.End()

	path := fmt.Sprintf("recurring_rules?family_id=eq.%s&id=eq.%s&limit=1", familyID, ruleID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.RecurringRule
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode recurring rule: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "recurring_rule", ID: ruleID}
	}
	return &rows[0], nil
}

func (c *Client) UpdateRecurringRule(ctx context.Context, familyID, ruleID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateRecurringRule")
	defer span.End()

	path := fmt.Sprintf("recurring_rules?family_id=eq.%s&id=eq.%s", familyID, ruleID)
	_, err := c.doPatch(ctx, path, updates, false)
	return err
}

func (c *Client) DeleteRecurringRule(ctx context.Context, familyID, ruleID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteRecurringRule")
	defer span.End()

	path := fmt.Sprintf("recurring_rules?family_id=eq.%s&id=eq.%s", familyID, ruleID)
	return c.doDelete(ctx, path)
}
