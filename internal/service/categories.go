package service

import (
	"context"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var categoryTracer = otel.Tracer("service/categories")

// CategoryService manages spending/income categories and their
// visibility. Visibility is plain set membership: a category is visible
// to its owner and to everyone in shared_with (or to all profiles when
// shared_with contains ALL).
type CategoryService struct {
	store  port.LedgerStore
	logger *zap.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(store port.LedgerStore, logger *zap.Logger) *CategoryService {
	return &CategoryService{store: store, logger: logger}
}

// ListCategories returns the family's categories. When profileID is
// non-empty the list is filtered to what that profile may see.
func (s *CategoryService) ListCategories(ctx context.Context, familyID, profileID string) ([]domain.Category, error) {
	ctx, span := categoryTracer.Start(ctx, "CategoryService.ListCategories")
	defer span.End()

	cats, err := s.store.ListCategories(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if profileID == "" {
		return cats, nil
	}

	visible := make([]domain.Category, 0, len(cats))
	for _, c := range cats {
		if c.VisibleTo(profileID) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *CategoryService) CreateCategory(ctx context.Context, familyID string, cat *domain.Category) (*domain.Category, error) {
	ctx, span := categoryTracer.Start(ctx, "CategoryService.CreateCategory")
	defer span.End()

	if cat.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if cat.Type != domain.TxExpense && cat.Type != domain.TxIncome {
		return nil, &domain.ErrValidation{Field: "type", Message: "type must be income or expense"}
	}
	if len(cat.SharedWith) == 0 {
		cat.SharedWith = []string{domain.SharedWithAll}
	}

	cat.ID = uuid.NewString()
	cat.FamilyID = familyID
	return s.store.CreateCategory(ctx, cat)
}

func (s *CategoryService) UpdateCategory(ctx context.Context, familyID, catID string, updates map[string]any) error {
	ctx, span := categoryTracer.Start(ctx, "CategoryService.UpdateCategory")
	defer span.End()

	filtered := map[string]any{}
	for _, key := range []string{"name", "icon", "type", "shared_with"} {
		if v, ok := updates[key]; ok {
			filtered[key] = v
		}
	}
	if len(filtered) == 0 {
		return &domain.ErrValidation{Field: "body", Message: "no updatable fields"}
	}
	return s.store.UpdateCategory(ctx, familyID, catID, filtered)
}

func (s *CategoryService) DeleteCategory(ctx context.Context, familyID, catID string) error {
	ctx, span := categoryTracer.Start(ctx, "CategoryService.DeleteCategory")
	defer span.End()

	return s.store.DeleteCategory(ctx, familyID, catID)
}
