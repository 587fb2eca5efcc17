package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
)

// ============================================================
// Savings goals
// ============================================================

func (c *Client) CreateGoal(ctx context.Context, goal *domain.Goal) (*domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateGoal")
	defer span.End()

	body, err := c.doPost(ctx, "goals", goal)
	if err != nil {
		return nil, err
	}

	var rows []domain.Goal
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created goal: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("goal insert returned no row")
	}
	return &rows[0], nil
}

func (c *Client) ListGoals(ctx context.Context, familyID string) ([]domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListGoals")
	defer span.End()

	path := fmt.Sprintf("goals?family_id=eq.%s&order=created_at.asc", familyID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Goal
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	return rows, nil
}

func (c *Client) GetGoal(ctx context.Context, familyID, goalID string) (*domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetGoal")
	defer span.End()

	path := fmt.Sprintf("goals?family_id=eq.%s&id=eq.%s&limit=1", familyID, goalID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Goal
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode goal: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "goal", ID: goalID}
	}
	return &rows[0], nil
}

func (c *Client) DeleteGoal(ctx context.Context, familyID, goalID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteGoal")
	defer span.End()

	path := fmt.Sprintf("goals?family_id=eq.%s&id=eq.%s", familyID, goalID)
	return c.doDelete(ctx, path)
}

// IncrementGoalAmount applies an atomic delta to current_amount via a
// SQL function. Withdrawal overdraft checks happen in the service layer
// before calling this.
func (c *Client) IncrementGoalAmount(ctx context.Context, goalID string, delta int64) error {
	ctx, span := tracer.Start(ctx, "Supabase.IncrementGoalAmount")
	defer span.End()

	return c.doRPC(ctx, "increment_goal_amount", map[string]any{
		"p_goal_id": goalID,
		"p_delta":   delta,
	})
}
