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
// Profiles — CRUD via PostgREST
// ============================================================

func (c *Client) ListProfiles(ctx context.Context, familyID string) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	path := fmt.Sprintf("profiles?family_id=eq.%s&order=created_at.asc", familyID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Profile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	return rows, nil
}

func (c *Client) GetProfile(ctx context.Context, familyID, profileID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()

	path := fmt.Sprintf("profiles?family_id=eq.%s&id=eq.%s&limit=1", familyID, profileID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Profile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: profileID}
	}
	return &rows[0], nil
}

func (c *Client) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProfile")
	defer span.End()

	body, err := c.doPost(ctx, "profiles", profile)
	if err != nil {
		return nil, err
	}

	var rows []domain.Profile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile insert returned no row")
	}

	c.logger.Info("supabase: profile created",
		zap.String("profile_id", rows[0].ID),
		zap.String("family_id", rows[0].FamilyID),
		zap.String("role", rows[0].Role),
	)
	return &rows[0], nil
}

func (c *Client) UpdateProfile(ctx context.Context, familyID, profileID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()

	path := fmt.Sprintf("profiles?family_id=eq.%s&id=eq.%s", familyID, profileID)
	_, err := c.doPatch(ctx, path, updates, false)
	return err
}

func (c *Client) DeleteProfile(ctx context.Context, familyID, profileID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteProfile")
	defer span.End()

	path := fmt.Sprintf("profiles?family_id=eq.%s&id=eq.%s", familyID, profileID)
	return c.doDelete(ctx, path)
}

// IncrementProfileSpent applies an atomic delta to the profile's spent
// counter through a SQL function, so concurrent writers never lose an
// update to read-modify-write races.
func (c *Client) IncrementProfileSpent(ctx context.Context, profileID string, delta int64) error {
	ctx, span := tracer.Start(ctx, "Supabase.IncrementProfileSpent")
	defer span.End()

	return c.doRPC(ctx, "increment_profile_spent", map[string]any{
		"p_profile_id": profileID,
		"p_delta":      delta,
	})
}
