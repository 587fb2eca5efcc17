package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// Family accounts & refresh tokens
// ============================================================

func (c *Client) GetFamilyByID(ctx context.Context, familyID string) (*domain.FamilyAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFamilyByID")
	defer span.End()

	path := fmt.Sprintf("families?id=eq.%s&limit=1", familyID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.FamilyAccount
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode family: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "family", ID: familyID}
	}
	return &rows[0], nil
}

func (c *Client) GetFamilyByEmail(ctx context.Context, email string) (*domain.FamilyAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFamilyByEmail")
	defer span.End()

	path := fmt.Sprintf("families?email=eq.%s&limit=1", email)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.FamilyAccount
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode family: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "family", ID: email}
	}
	return &rows[0], nil
}

// CreateFamilyWithOwner registers a new family account and its owner
// profile. If the owner profile insert fails the family row is removed
// again so a retry does not hit a duplicate email.
func (c *Client) CreateFamilyWithOwner(ctx context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.FamilyAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateFamilyWithOwner")
	defer span.End()

	family := &domain.FamilyAccount{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	body, err := c.doPost(ctx, "families", family)
	if err != nil {
		return nil, err
	}

	var rows []domain.FamilyAccount
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created family: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("family insert returned no row")
	}
	created := rows[0]

	owner := &domain.Profile{
		ID:        uuid.NewString(),
		FamilyID:  created.ID,
		Name:      req.OwnerName,
		Role:      domain.RoleOwner,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := c.CreateProfile(ctx, owner); err != nil {
		// Roll back the family row so the email stays free.
		if delErr := c.doDelete(ctx, fmt.Sprintf("families?id=eq.%s", created.ID)); delErr != nil {
			c.logger.Error("supabase: failed to roll back family after owner insert failure",
				zap.String("family_id", created.ID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("create owner profile: %w", err)
	}

	c.logger.Info("supabase: family registered",
		zap.String("family_id", created.ID),
	)
	created.PasswordHash = ""
	return &created, nil
}

func (c *Client) StoreRefreshToken(ctx context.Context, familyID, tokenHash string, expiresAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.StoreRefreshToken")
	defer span.End()

	_, err := c.doPost(ctx, "refresh_tokens", &domain.AuthRefreshToken{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	})
	return err
}

func (c *Client) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.AuthRefreshToken, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRefreshToken")
	defer span.End()

	path := fmt.Sprintf("refresh_tokens?token_hash=eq.%s&revoked=eq.false&limit=1", tokenHash)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.AuthRefreshToken
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "refresh_token", ID: "?"}
	}
	return &rows[0], nil
}

func (c *Client) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, span := tracer.Start(ctx, "Supabase.RevokeRefreshToken")
	defer span.End()

	path := fmt.Sprintf("refresh_tokens?token_hash=eq.%s", tokenHash)
	_, err := c.doPatch(ctx, path, map[string]any{"revoked": true}, false)
	return err
}

func (c *Client) RevokeAllRefreshTokens(ctx context.Context, familyID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.RevokeAllRefreshTokens")
	defer span.End()

	path := fmt.Sprintf("refresh_tokens?family_id=eq.%s&revoked=eq.false", familyID)
	_, err := c.doPatch(ctx, path, map[string]any{"revoked": true}, false)
	return err
}
