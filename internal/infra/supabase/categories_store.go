package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
)

// ============================================================
// Categories
// ============================================================

func (c *Client) ListCategories(ctx context.Context, familyID string) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	path := fmt.Sprintf("categories?family_id=eq.%s&order=name.asc", familyID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Category
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return rows, nil
}

func (c *Client) CreateCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCategory")
	defer span.End()

	body, err := c.doPost(ctx, "categories", cat)
	if err != nil {
		return nil, err
	}

	var rows []domain.Category
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created category: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("category insert returned no row")
	}
	return &rows[0], nil
}

func (c *Client) UpdateCategory(ctx context.Context, familyID, catID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCategory")
	defer span.End()

	path := fmt.Sprintf("categories?family_id=eq.%s&id=eq.%s", familyID, catID)
	_, err := c.doPatch(ctx, path, updates, false)
	return err
}

func (c *Client) DeleteCategory(ctx context.Context, familyID, catID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCategory")
	defer span.End()

	path := fmt.Sprintf("categories?family_id=eq.%s&id=eq.%s", familyID, catID)
	return c.doDelete(ctx, path)
}
