// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Notifier delivers best-effort push notifications to a family's devices.
// Failures must never affect the outcome of the business operation.
type Notifier interface {
	Notify(ctx context.Context, familyID, event string, payload map[string]any) error
}

// LedgerStore defines all data operations for the family ledger.
// Implemented by the Supabase adapter (or any other document store).
type LedgerStore interface {
	// Profiles
	ListProfiles(ctx context.Context, familyID string) ([]domain.Profile, error)
	GetProfile(ctx context.Context, familyID, profileID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, familyID, profileID string, updates map[string]any) error
	DeleteProfile(ctx context.Context, familyID, profileID string) error
	// IncrementProfileSpent applies an atomic delta to the spent counter
	// (the store's native increment, never read-modify-write).
	IncrementProfileSpent(ctx context.Context, profileID string, delta int64) error

	// Transactions
	ListTransactions(ctx context.Context, familyID, fromDate, toDate string) ([]domain.Transaction, error)
	ListProfileTransactions(ctx context.Context, familyID, profileID, fromDate, toDate string) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, familyID, txID string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, txID string, updates map[string]any) error
	DeleteTransaction(ctx context.Context, familyID, txID string) error
	// RecurringChargeExists reports whether a rule already materialized
	// a transaction for the given period.
	RecurringChargeExists(ctx context.Context, ruleID, periodKey string) (bool, error)

	// Categories
	ListCategories(ctx context.Context, familyID string) ([]domain.Category, error)
	CreateCategory(ctx context.Context, cat *domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, familyID, catID string, updates map[string]any) error
	DeleteCategory(ctx context.Context, familyID, catID string) error

	// Money requests
	CreateRequest(ctx context.Context, req *domain.MoneyRequest) (*domain.MoneyRequest, error)
	ListRequests(ctx context.Context, familyID, status string) ([]domain.MoneyRequest, error)
	GetRequest(ctx context.Context, familyID, requestID string) (*domain.MoneyRequest, error)
	// TransitionRequestStatus moves a request from one status to another
	// with a compare-and-swap on the current status. Returns false when
	// the request was not in the expected status (race lost).
	TransitionRequestStatus(ctx context.Context, requestID, fromStatus, toStatus string, updates map[string]any) (bool, error)

	// Recurring rules
	CreateRecurringRule(ctx context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error)
	ListRecurringRules(ctx context.Context, familyID string) ([]domain.RecurringRule, error)
	GetRecurringRule(ctx context.Context, familyID, ruleID string) (*domain.RecurringRule, error)
	UpdateRecurringRule(ctx context.Context, familyID, ruleID string, updates map[string]any) error
	DeleteRecurringRule(ctx context.Context, familyID, ruleID string) error

	// Goals
	CreateGoal(ctx context.Context, goal *domain.Goal) (*domain.Goal, error)
	ListGoals(ctx context.Context, familyID string) ([]domain.Goal, error)
	GetGoal(ctx context.Context, familyID, goalID string) (*domain.Goal, error)
	DeleteGoal(ctx context.Context, familyID, goalID string) error
	// IncrementGoalAmount applies an atomic delta to current_amount.
	IncrementGoalAmount(ctx context.Context, goalID string, delta int64) error

	// Settings
	GetSettings(ctx context.Context, familyID string) (*domain.FamilySettings, error)
	UpsertSettings(ctx context.Context, settings *domain.FamilySettings) error
}

// AuthStore defines all data operations for the authentication system.
type AuthStore interface {
	GetFamilyByID(ctx context.Context, familyID string) (*domain.FamilyAccount, error)
	GetFamilyByEmail(ctx context.Context, email string) (*domain.FamilyAccount, error)
	CreateFamilyWithOwner(ctx context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.FamilyAccount, error)

	StoreRefreshToken(ctx context.Context, familyID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.AuthRefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, familyID string) error
}
