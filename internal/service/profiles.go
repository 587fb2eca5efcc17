package service

import (
	"context"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var profileTracer = otel.Tracer("service/profiles")

const pinLength = 4

// ProfileService manages family member profiles, including the optional
// bcrypt-hashed PIN gate. Profile lists are hot (every app screen loads
// them) and flow through a short-TTL cache.
type ProfileService struct {
	store   port.LedgerStore
	cache   port.Cache[[]domain.Profile]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(store port.LedgerStore, cache port.Cache[[]domain.Profile], metrics *observability.Metrics, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, cache: cache, metrics: metrics, logger: logger}
}

func (s *ProfileService) ListProfiles(ctx context.Context, familyID string) ([]domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.ListProfiles")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	if cached, ok := s.cache.Get(familyID); ok {
		s.metrics.IncrCacheHit("profiles")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("profiles")

	profiles, err := s.store.ListProfiles(ctx, familyID)
	if err != nil {
		s.metrics.IncrStoreError("profiles")
		return nil, err
	}
	s.cache.Set(familyID, profiles)
	return profiles, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, familyID, profileID string) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.GetProfile")
	defer span.End()

	return s.store.GetProfile(ctx, familyID, profileID)
}

func (s *ProfileService) CreateProfile(ctx context.Context, familyID string, req *domain.CreateProfileRequest) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.CreateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("family.id", familyID))

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if !validRole(req.Role) {
		return nil, &domain.ErrValidation{Field: "role", Message: "role must be owner, partner or member"}
	}
	if req.Limit < 0 {
		return nil, &domain.ErrValidation{Field: "limit", Message: "limit must not be negative"}
	}

	pinHash := ""
	if req.Pin != "" {
		hash, err := hashPin(req.Pin)
		if err != nil {
			return nil, err
		}
		pinHash = hash
	}

	profile := &domain.Profile{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Name:      req.Name,
		Role:      req.Role,
		Limit:     req.Limit,
		PinHash:   pinHash,
		AvatarID:  req.AvatarID,
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.store.CreateProfile(ctx, profile)
	if err != nil {
		s.metrics.IncrStoreError("profiles")
		return nil, err
	}

	s.cache.Delete(familyID)
	return created, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, familyID, profileID string, req *domain.UpdateProfileRequest) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.UpdateProfile")
	defer span.End()

	if _, err := s.store.GetProfile(ctx, familyID, profileID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, &domain.ErrValidation{Field: "name", Message: "name must not be empty"}
		}
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		if !validRole(*req.Role) {
			return nil, &domain.ErrValidation{Field: "role", Message: "role must be owner, partner or member"}
		}
		updates["role"] = *req.Role
	}
	if req.Limit != nil {
		if *req.Limit < 0 {
			return nil, &domain.ErrValidation{Field: "limit", Message: "limit must not be negative"}
		}
		updates["limit"] = *req.Limit
	}
	if req.Pin != nil {
		if *req.Pin == "" {
			updates["pin_hash"] = "" // clear the PIN
		} else {
			hash, err := hashPin(*req.Pin)
			if err != nil {
				return nil, err
			}
			updates["pin_hash"] = hash
		}
	}
	if req.AvatarID != nil {
		updates["avatar_id"] = *req.AvatarID
	}
	if len(updates) == 0 {
		return s.store.GetProfile(ctx, familyID, profileID)
	}

	if err := s.store.UpdateProfile(ctx, familyID, profileID, updates); err != nil {
		s.metrics.IncrStoreError("profiles")
		return nil, err
	}

	s.cache.Delete(familyID)
	return s.store.GetProfile(ctx, familyID, profileID)
}

// DeleteProfile removes a profile. Its transactions are intentionally
// left in place; the history still belongs to the family.
func (s *ProfileService) DeleteProfile(ctx context.Context, familyID, profileID string) error {
	ctx, span := profileTracer.Start(ctx, "ProfileService.DeleteProfile")
	defer span.End()

	if _, err := s.store.GetProfile(ctx, familyID, profileID); err != nil {
		return err
	}
	if err := s.store.DeleteProfile(ctx, familyID, profileID); err != nil {
		s.metrics.IncrStoreError("profiles")
		return err
	}

	s.cache.Delete(familyID)
	s.logger.Info("profile deleted",
		zap.String("family_id", familyID),
		zap.String("profile_id", profileID),
	)
	return nil
}

// VerifyPin checks a profile's PIN. A profile without a PIN always
// verifies; setting one is opt-in.
func (s *ProfileService) VerifyPin(ctx context.Context, familyID, profileID, pin string) error {
	ctx, span := profileTracer.Start(ctx, "ProfileService.VerifyPin")
	defer span.End()

	profile, err := s.store.GetProfile(ctx, familyID, profileID)
	if err != nil {
		return err
	}
	if !profile.HasPin() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PinHash), []byte(pin)); err != nil {
		return &domain.ErrUnauthorized{Message: "invalid PIN"}
	}
	return nil
}

func validRole(role string) bool {
	return role == domain.RoleOwner || role == domain.RolePartner || role == domain.RoleMember
}

func hashPin(pin string) (string, error) {
	if len(pin) != pinLength {
		return "", &domain.ErrValidation{Field: "pin", Message: "pin must be 4 digits"}
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", &domain.ErrValidation{Field: "pin", Message: "pin must be 4 digits"}
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
