package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
)

// fakeStore is an in-memory document store with the same semantics as
// the Supabase adapter, plus error-injection knobs for failure paths.
type fakeStore struct {
	mu sync.Mutex

	profiles map[string]*domain.Profile
	txns     map[string]*domain.Transaction
	cats     map[string]*domain.Category
	requests map[string]*domain.MoneyRequest
	rules    map[string]*domain.RecurringRule
	goals    map[string]*domain.Goal
	settings map[string]*domain.FamilySettings

	// error injection
	listTxErr       error
	getProfileErr   error
	insertTxErr     error
	insertTxFailAt  int // fail the Nth insert (1-based); 0 disables
	incrementErr    error
	transitionErr   error
	chargeExistsErr error

	insertCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: map[string]*domain.Profile{},
		txns:     map[string]*domain.Transaction{},
		cats:     map[string]*domain.Category{},
		requests: map[string]*domain.MoneyRequest{},
		rules:    map[string]*domain.RecurringRule{},
		goals:    map[string]*domain.Goal{},
		settings: map[string]*domain.FamilySettings{},
	}
}

func (f *fakeStore) addProfile(p domain.Profile) *domain.Profile {
	f.profiles[p.ID] = &p
	return &p
}

func (f *fakeStore) addTxn(t domain.Transaction) *domain.Transaction {
	f.txns[t.ID] = &t
	return &t
}

// --- Profiles ---

func (f *fakeStore) ListProfiles(_ context.Context, familyID string) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Profile
	for _, p := range f.profiles {
		if p.FamilyID == familyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProfile(_ context.Context, familyID, profileID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	p, ok := f.profiles[profileID]
	if !ok || p.FamilyID != familyID {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: profileID}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateProfile(_ context.Context, profile *domain.Profile) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *profile
	f.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, familyID, profileID string, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[profileID]
	if !ok || p.FamilyID != familyID {
		return &domain.ErrNotFound{Resource: "profile", ID: profileID}
	}
	if v, ok := updates["name"].(string); ok {
		p.Name = v
	}
	if v, ok := updates["role"].(string); ok {
		p.Role = v
	}
	if v, ok := updates["limit"].(int64); ok {
		p.Limit = v
	}
	if v, ok := updates["spent"].(int64); ok {
		p.Spent = v
	}
	if v, ok := updates["pin_hash"].(string); ok {
		p.PinHash = v
	}
	if v, ok := updates["avatar_id"].(string); ok {
		p.AvatarID = v
	}
	return nil
}

func (f *fakeStore) DeleteProfile(_ context.Context, familyID, profileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, profileID)
	return nil
}

func (f *fakeStore) IncrementProfileSpent(_ context.Context, profileID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if p, ok := f.profiles[profileID]; ok {
		p.Spent += delta
	}
	return nil
}

// --- Transactions ---

func (f *fakeStore) ListTransactions(_ context.Context, familyID, fromDate, toDate string) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTxErr != nil {
		return nil, f.listTxErr
	}
	var out []domain.Transaction
	for _, t := range f.txns {
		if t.FamilyID == familyID && inRange(t.Date, fromDate, toDate) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListProfileTransactions(_ context.Context, familyID, profileID, fromDate, toDate string) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTxErr != nil {
		return nil, f.listTxErr
	}
	var out []domain.Transaction
	for _, t := range f.txns {
		if t.FamilyID == familyID && t.ProfileID == profileID && inRange(t.Date, fromDate, toDate) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTransaction(_ context.Context, familyID, txID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txns[txID]
	if !ok || t.FamilyID != familyID {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) InsertTransaction(_ context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCount++
	if f.insertTxErr != nil {
		return nil, f.insertTxErr
	}
	if f.insertTxFailAt > 0 && f.insertCount == f.insertTxFailAt {
		return nil, errors.New("store unavailable")
	}
	cp := *tx
	f.txns[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, txID string, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txns[txID]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	if v, ok := updates["amount"].(int64); ok {
		t.Amount = v
	}
	if v, ok := updates["category"].(string); ok {
		t.Category = v
	}
	if v, ok := updates["note"].(string); ok {
		t.Note = v
	}
	if v, ok := updates["date"].(string); ok {
		t.Date = v
	}
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, familyID, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.txns, txID)
	return nil
}

func (f *fakeStore) RecurringChargeExists(_ context.Context, ruleID, periodKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chargeExistsErr != nil {
		return false, f.chargeExistsErr
	}
	for _, t := range f.txns {
		if t.RecurringRuleID == ruleID && t.PeriodKey == periodKey {
			return true, nil
		}
	}
	return false, nil
}

// --- Categories ---

func (f *fakeStore) ListCategories(_ context.Context, familyID string) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Category
	for _, c := range f.cats {
		if c.FamilyID == familyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, cat *domain.Category) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *cat
	f.cats[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, familyID, catID string, updates map[string]any) error {
	return nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, familyID, catID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cats, catID)
	return nil
}

// --- Money requests ---

func (f *fakeStore) CreateRequest(_ context.Context, req *domain.MoneyRequest) (*domain.MoneyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.requests[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) ListRequests(_ context.Context, familyID, status string) ([]domain.MoneyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MoneyRequest
	for _, r := range f.requests {
		if r.FamilyID == familyID && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRequest(_ context.Context, familyID, requestID string) (*domain.MoneyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[requestID]
	if !ok || r.FamilyID != familyID {
		return nil, &domain.ErrNotFound{Resource: "request", ID: requestID}
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) TransitionRequestStatus(_ context.Context, requestID, fromStatus, toStatus string, updates map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transitionErr != nil {
		return false, f.transitionErr
	}
	r, ok := f.requests[requestID]
	if !ok || r.Status != fromStatus {
		return false, nil
	}
	r.Status = toStatus
	if v, ok := updates["decided_by"].(string); ok {
		r.DecidedBy = v
	}
	if v, ok := updates["decided_at"].(string); ok {
		r.DecidedAt = v
	}
	if v, ok := updates["reject_reason"].(string); ok {
		r.RejectReason = v
	}
	return true, nil
}

// --- Recurring rules ---

func (f *fakeStore) CreateRecurringRule(_ context.Context, rule *domain.RecurringRule) (*domain.RecurringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rule
	f.rules[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) ListRecurringRules(_ context.Context, familyID string) ([]domain.RecurringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RecurringRule
	for _, r := range f.rules {
		if r.FamilyID == familyID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRecurringRule(_ context.Context, familyID, ruleID string) (*domain.RecurringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok || r.FamilyID != familyID {
		return nil, &domain.ErrNotFound{Resource: "recurring_rule", ID: ruleID}
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) UpdateRecurringRule(_ context.Context, familyID, ruleID string, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return &domain.ErrNotFound{Resource: "recurring_rule", ID: ruleID}
	}
	if v, ok := updates["amount"].(int64); ok {
		r.Amount = v
	}
	if v, ok := updates["name"].(string); ok {
		r.Name = v
	}
	if v, ok := updates["end_date"].(string); ok {
		r.EndDate = v
	}
	return nil
}

func (f *fakeStore) DeleteRecurringRule(_ context.Context, familyID, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, ruleID)
	return nil
}

// --- Goals ---

func (f *fakeStore) CreateGoal(_ context.Context, goal *domain.Goal) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *goal
	f.goals[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) ListGoals(_ context.Context, familyID string) ([]domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Goal
	for _, g := range f.goals {
		if g.FamilyID == familyID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeStore) GetGoal(_ context.Context, familyID, goalID string) (*domain.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok || g.FamilyID != familyID {
		return nil, &domain.ErrNotFound{Resource: "goal", ID: goalID}
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) DeleteGoal(_ context.Context, familyID, goalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.goals, goalID)
	return nil
}

func (f *fakeStore) IncrementGoalAmount(_ context.Context, goalID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if g, ok := f.goals[goalID]; ok {
		g.CurrentAmount += delta
	}
	return nil
}

// --- Settings ---

func (f *fakeStore) GetSettings(_ context.Context, familyID string) (*domain.FamilySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[familyID]; ok {
		cp := *s
		return &cp, nil
	}
	return &domain.FamilySettings{FamilyID: familyID, Currency: "VND", Language: "en"}, nil
}

func (f *fakeStore) UpsertSettings(_ context.Context, settings *domain.FamilySettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *settings
	f.settings[cp.FamilyID] = &cp
	return nil
}

func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}

// mockNotifier records delivered events.
type mockNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (m *mockNotifier) Notify(_ context.Context, _, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
