package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
)

// ============================================================
// Family settings
// ============================================================

// GetSettings returns the family's settings row, or defaults (VND, en)
// when none has been written yet.
func (c *Client) GetSettings(ctx context.Context, familyID string) (*domain.FamilySettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSettings")
	defer span.End()

	path := fmt.Sprintf("family_settings?family_id=eq.%s&limit=1", familyID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.FamilySettings
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(rows) == 0 {
		return &domain.FamilySettings{
			FamilyID: familyID,
			Currency: "VND",
			Language: "en",
		}, nil
	}
	return &rows[0], nil
}

// UpsertSettings writes the full settings row. family_id is the primary
// key, so merge-duplicates makes this an idempotent upsert.
func (c *Client) UpsertSettings(ctx context.Context, settings *domain.FamilySettings) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSettings")
	defer span.End()

	_, err := c.doPostWithPrefer(ctx, "family_settings", settings, "resolution=merge-duplicates,return=representation")
	return err
}
