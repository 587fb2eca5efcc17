package service

import (
	"context"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var settingsTracer = otel.Tracer("service/settings")

// SettingsService stores family display preferences server-side so they
// follow the family across devices.
type SettingsService struct {
	store  port.LedgerStore
	logger *zap.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store port.LedgerStore, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

func (s *SettingsService) GetSettings(ctx context.Context, familyID string) (*domain.FamilySettings, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.GetSettings")
	defer span.End()

	return s.store.GetSettings(ctx, familyID)
}

func (s *SettingsService) UpdateSettings(ctx context.Context, familyID string, settings *domain.FamilySettings) (*domain.FamilySettings, error) {
	ctx, span := settingsTracer.Start(ctx, "SettingsService.UpdateSettings")
	defer span.End()

	switch settings.Currency {
	case "VND", "USD":
	default:
		return nil, &domain.ErrValidation{Field: "currency", Message: "currency must be VND or USD"}
	}
	switch settings.Language {
	case "en", "vi":
	default:
		return nil, &domain.ErrValidation{Field: "language", Message: "language must be en or vi"}
	}

	settings.FamilyID = familyID
	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
