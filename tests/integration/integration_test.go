package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/handler"
	"github.com/minhkhoa/famledger-api-go/internal/infra/cache"
	"github.com/minhkhoa/famledger-api-go/internal/infra/client"
	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/infra/resilience"
	"github.com/minhkhoa/famledger-api-go/internal/infra/supabase"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"go.uber.org/zap"
)

// fakePostgREST emulates the subset of the PostgREST API the Supabase
// adapter uses: eq/gte/lte filters, limit, return=representation,
// merge-duplicates upserts and the increment RPC functions.
type fakePostgREST struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{tables: map[string][]map[string]any{}}
}

type filter struct {
	field string
	op    string
	value string
}

func parseFilters(query map[string][]string) ([]filter, int) {
	var filters []filter
	limit := 0
	for key, values := range query {
		switch key {
		case "order", "select":
			continue
		case "limit":
			fmt.Sscanf(values[0], "%d", &limit)
			continue
		}
		for _, v := range values {
			parts := strings.SplitN(v, ".", 2)
			if len(parts) != 2 {
				continue
			}
			filters = append(filters, filter{field: key, op: parts[0], value: parts[1]})
		}
	}
	return filters, limit
}

func matches(row map[string]any, filters []filter) bool {
	for _, f := range filters {
		got := fmt.Sprint(row[f.field])
		switch f.op {
		case "eq":
			if got != f.value {
				return false
			}
		case "gte":
			if got < f.value {
				return false
			}
		case "lte":
			if got > f.value {
				return false
			}
		}
	}
	return true
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/rest/v1/")

	if strings.HasPrefix(path, "rpc/") {
		f.handleRPC(w, r, strings.TrimPrefix(path, "rpc/"))
		return
	}

	table := path
	filters, limit := parseFilters(r.URL.Query())
	rows := f.tables[table]

	switch r.Method {
	case http.MethodGet:
		out := make([]map[string]any, 0)
		for _, row := range rows {
			if matches(row, filters) {
				out = append(out, row)
				if limit > 0 && len(out) == limit {
					break
				}
			}
		}
		writeRows(w, http.StatusOK, out)

	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.Contains(r.Header.Get("Prefer"), "merge-duplicates") {
			for i, existing := range rows {
				if fmt.Sprint(existing["family_id"]) == fmt.Sprint(row["family_id"]) {
					f.tables[table][i] = row
					writeRows(w, http.StatusCreated, []map[string]any{row})
					return
				}
			}
		}
		f.tables[table] = append(rows, row)
		writeRows(w, http.StatusCreated, []map[string]any{row})

	case http.MethodPatch:
		var updates map[string]any
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		matched := make([]map[string]any, 0)
		for _, row := range rows {
			if matches(row, filters) {
				for k, v := range updates {
					row[k] = v
				}
				matched = append(matched, row)
			}
		}
		if strings.Contains(r.Header.Get("Prefer"), "representation") {
			writeRows(w, http.StatusOK, matched)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		kept := rows[:0]
		for _, row := range rows {
			if !matches(row, filters) {
				kept = append(kept, row)
			}
		}
		f.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgREST) handleRPC(w http.ResponseWriter, r *http.Request, fn string) {
	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch fn {
	case "increment_profile_spent":
		id := fmt.Sprint(args["p_profile_id"])
		delta := args["p_delta"].(float64)
		for _, row := range f.tables["profiles"] {
			if fmt.Sprint(row["id"]) == id {
				spent, _ := row["spent"].(float64)
				row["spent"] = spent + delta
			}
		}
	case "increment_goal_amount":
		id := fmt.Sprint(args["p_goal_id"])
		delta := args["p_delta"].(float64)
		for _, row := range f.tables["goals"] {
			if fmt.Sprint(row["id"]) == id {
				cur, _ := row["current_amount"].(float64)
				row["current_amount"] = cur + delta
			}
		}
	default:
		http.Error(w, "unknown function", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeRows(w http.ResponseWriter, status int, rows []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rows)
}

// newTestAPI wires the full stack (router, services, Supabase adapter)
// against a fake PostgREST backend.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	backend := httptest.NewServer(newFakePostgREST())
	t.Cleanup(backend.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 4,
	}
	store := supabase.NewClient(
		backend.Client(),
		backend.URL,
		"anon-key",
		"service-key",
		resilience.NewCircuitBreaker("supabase-test"),
		cfg,
		logger,
	)
	notifier := client.NewPushNotifier(backend.Client(), "", logger)

	budgetSvc := service.NewBudgetService(store, metrics, logger)
	ledgerSvc := service.NewLedgerService(store, budgetSvc, metrics, logger)
	transferSvc := service.NewTransferService(store, metrics, logger)

	svcs := &handler.Services{
		Auth:       service.NewAuthService(store, "integration-secret", 15*time.Minute, time.Hour, logger),
		Profiles:   service.NewProfileService(store, cache.New[[]domain.Profile](time.Minute), metrics, logger),
		Ledger:     ledgerSvc,
		Budget:     budgetSvc,
		Dashboard:  service.NewDashboardService(store, metrics, logger),
		Transfers:  transferSvc,
		Requests:   service.NewRequestService(store, transferSvc, notifier, logger),
		Recurring:  service.NewRecurringService(store, metrics, logger),
		Goals:      service.NewGoalService(store, metrics, logger),
		Categories: service.NewCategoryService(store, logger),
		Settings:   service.NewSettingsService(store, logger),
	}
	return handler.NewRouter(svcs, metrics, logger)
}

// call issues a request against the router and decodes the JSON response
// into out (when non-nil).
func call(t *testing.T, router http.Handler, method, path, token, body string, out any) int {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestFullLedgerFlow(t *testing.T) {
	router := newTestAPI(t)

	// Register a family.
	var session domain.LoginResponse
	code := call(t, router, http.MethodPost, "/v1/auth/register", "",
		`{"email":"family@example.com","password":"long enough","name":"Test Family","owner_name":"Mom"}`, &session)
	if code != http.StatusCreated {
		t.Fatalf("register: got %d", code)
	}
	token := session.AccessToken

	// The owner profile exists.
	var profiles []domain.Profile
	if code := call(t, router, http.MethodGet, "/v1/profiles", token, "", &profiles); code != http.StatusOK {
		t.Fatalf("list profiles: got %d", code)
	}
	if len(profiles) != 1 || profiles[0].Role != domain.RoleOwner {
		t.Fatalf("expected one owner profile, got %+v", profiles)
	}
	ownerID := profiles[0].ID

	// Add a member with a monthly limit.
	var kid domain.Profile
	if code := call(t, router, http.MethodPost, "/v1/profiles", token,
		`{"name":"Kid","role":"member","limit":1000000}`, &kid); code != http.StatusCreated {
		t.Fatalf("create profile: got %d", code)
	}

	// An expense well under the limit goes straight through.
	var created struct {
		Transaction *domain.Transaction `json:"transaction"`
		BudgetCheck *domain.BudgetCheck `json:"budget_check"`
	}
	body := fmt.Sprintf(`{"profile_id":%q,"amount":200000,"type":"expense","category":"Food"}`, kid.ID)
	if code := call(t, router, http.MethodPost, "/v1/transactions", token, body, &created); code != http.StatusCreated {
		t.Fatalf("create transaction: got %d", code)
	}
	if created.BudgetCheck.Status != domain.BudgetAllowed {
		t.Fatalf("expected ALLOWED, got %s", created.BudgetCheck.Status)
	}

	// The spent counter moved through the RPC increment.
	var kidAfter domain.Profile
	call(t, router, http.MethodGet, "/v1/profiles/"+kid.ID, token, "", &kidAfter)
	if kidAfter.Spent != 200_000 {
		t.Fatalf("expected spent 200000, got %d", kidAfter.Spent)
	}

	// A big expense trips the budget gate.
	var blocked struct {
		BudgetCheck *domain.BudgetCheck `json:"budget_check"`
	}
	body = fmt.Sprintf(`{"profile_id":%q,"amount":600000,"type":"expense","category":"Toys"}`, kid.ID)
	if code := call(t, router, http.MethodPost, "/v1/transactions", token, body, &blocked); code != http.StatusConflict {
		t.Fatalf("expected 409 budget conflict, got %d", code)
	}
	if blocked.BudgetCheck.Status != domain.BudgetWarning {
		t.Fatalf("expected WARNING, got %s", blocked.BudgetCheck.Status)
	}

	// Acknowledged, the same entry saves.
	body = fmt.Sprintf(`{"profile_id":%q,"amount":600000,"type":"expense","category":"Toys","save_anyway":true}`, kid.ID)
	if code := call(t, router, http.MethodPost, "/v1/transactions", token, body, &created); code != http.StatusCreated {
		t.Fatalf("create with save_anyway: got %d", code)
	}

	// Money request lifecycle: kid asks, mom approves, transfer settles.
	var request domain.MoneyRequest
	body = fmt.Sprintf(`{"profile_id":%q,"amount":50000,"reason":"school books"}`, kid.ID)
	if code := call(t, router, http.MethodPost, "/v1/requests", token, body, &request); code != http.StatusCreated {
		t.Fatalf("create request: got %d", code)
	}

	var decided domain.MoneyRequest
	body = fmt.Sprintf(`{"profile_id":%q}`, ownerID)
	if code := call(t, router, http.MethodPost, "/v1/requests/"+request.ID+"/approve", token, body, &decided); code != http.StatusOK {
		t.Fatalf("approve request: got %d", code)
	}
	if decided.Status != domain.RequestApproved {
		t.Fatalf("expected APPROVED, got %s", decided.Status)
	}

	// Approving again loses the compare-and-swap.
	if code := call(t, router, http.MethodPost, "/v1/requests/"+request.ID+"/approve", token, body, nil); code != http.StatusConflict {
		t.Fatalf("second approve: expected 409, got %d", code)
	}

	// Both transfer legs landed in the ledger.
	var txns []domain.Transaction
	call(t, router, http.MethodGet, "/v1/transactions", token, "", &txns)
	legs := 0
	for _, tx := range txns {
		if tx.RequestID == request.ID {
			legs++
		}
	}
	if legs != 2 {
		t.Fatalf("expected 2 transfer legs, got %d (of %d entries)", legs, len(txns))
	}

	// Family dashboard for the owner: transfers stay out of the totals.
	var dash domain.DashboardSummary
	if code := call(t, router, http.MethodGet, "/v1/dashboard?profile_id="+ownerID, token, "", &dash); code != http.StatusOK {
		t.Fatalf("dashboard: got %d", code)
	}
	if dash.Expense != 800_000 {
		t.Errorf("dashboard expense: got %d, want 800000", dash.Expense)
	}
	if dash.Given != 50_000 || dash.Received != 50_000 {
		t.Errorf("dashboard transfers: given=%d received=%d", dash.Given, dash.Received)
	}

	// Settings round-trip through the upsert.
	var settings domain.FamilySettings
	if code := call(t, router, http.MethodPut, "/v1/settings", token,
		`{"currency":"USD","language":"vi"}`, &settings); code != http.StatusOK {
		t.Fatalf("update settings: got %d", code)
	}
	call(t, router, http.MethodGet, "/v1/settings", token, "", &settings)
	if settings.Currency != "USD" || settings.Language != "vi" {
		t.Errorf("settings did not persist: %+v", settings)
	}
}

func TestRecurringFlow(t *testing.T) {
	router := newTestAPI(t)

	var session domain.LoginResponse
	call(t, router, http.MethodPost, "/v1/auth/register", "",
		`{"email":"sub@example.com","password":"long enough","name":"Sub Family","owner_name":"Dad"}`, &session)
	token := session.AccessToken

	var profiles []domain.Profile
	call(t, router, http.MethodGet, "/v1/profiles", token, "", &profiles)
	ownerID := profiles[0].ID

	var rule domain.RecurringRule
	body := fmt.Sprintf(`{"profile_id":%q,"name":"Netflix","amount":260000,"type":"expense","frequency":"MONTHLY","start_date":"2020-01-01"}`, ownerID)
	if code := call(t, router, http.MethodPost, "/v1/recurring", token, body, &rule); code != http.StatusCreated {
		t.Fatalf("create rule: got %d", code)
	}

	var result struct {
		Fired int `json:"fired"`
	}
	if code := call(t, router, http.MethodPost, "/v1/recurring/process", token, "", &result); code != http.StatusOK {
		t.Fatalf("process recurring: got %d", code)
	}
	if result.Fired != 1 {
		t.Fatalf("expected 1 charge fired, got %d", result.Fired)
	}

	// Re-processing the same period is a no-op.
	call(t, router, http.MethodPost, "/v1/recurring/process", token, "", &result)
	if result.Fired != 0 {
		t.Errorf("expected idempotent rerun, got %d", result.Fired)
	}

	var txns []domain.Transaction
	call(t, router, http.MethodGet, "/v1/transactions", token, "", &txns)
	if len(txns) != 1 {
		t.Fatalf("expected exactly 1 materialized charge, got %d", len(txns))
	}
	if txns[0].RecurringRuleID != rule.ID {
		t.Errorf("charge not linked to rule: %+v", txns[0])
	}
}

func TestGoalFlow(t *testing.T) {
	router := newTestAPI(t)

	var session domain.LoginResponse
	call(t, router, http.MethodPost, "/v1/auth/register", "",
		`{"email":"goal@example.com","password":"long enough","name":"Goal Family","owner_name":"Mom"}`, &session)
	token := session.AccessToken

	var profiles []domain.Profile
	call(t, router, http.MethodGet, "/v1/profiles", token, "", &profiles)
	ownerID := profiles[0].ID

	var goal domain.Goal
	body := fmt.Sprintf(`{"owner_id":%q,"name":"Bicycle","target_amount":2000000}`, ownerID)
	if code := call(t, router, http.MethodPost, "/v1/goals", token, body, &goal); code != http.StatusCreated {
		t.Fatalf("create goal: got %d", code)
	}

	body = fmt.Sprintf(`{"profile_id":%q,"amount":300000}`, ownerID)
	if code := call(t, router, http.MethodPost, "/v1/goals/"+goal.ID+"/contribute", token, body, nil); code != http.StatusCreated {
		t.Fatalf("contribute: got %d", code)
	}

	var after domain.Goal
	call(t, router, http.MethodGet, "/v1/goals/"+goal.ID, token, "", &after)
	if after.CurrentAmount != 300_000 {
		t.Fatalf("expected balance 300000, got %d", after.CurrentAmount)
	}

	// Overdraw is rejected.
	body = fmt.Sprintf(`{"profile_id":%q,"amount":400000}`, ownerID)
	if code := call(t, router, http.MethodPost, "/v1/goals/"+goal.ID+"/withdraw", token, body, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraw: expected 422, got %d", code)
	}

	body = fmt.Sprintf(`{"profile_id":%q,"amount":100000}`, ownerID)
	if code := call(t, router, http.MethodPost, "/v1/goals/"+goal.ID+"/withdraw", token, body, nil); code != http.StatusCreated {
		t.Fatalf("withdraw: got %d", code)
	}
	call(t, router, http.MethodGet, "/v1/goals/"+goal.ID, token, "", &after)
	if after.CurrentAmount != 200_000 {
		t.Errorf("expected balance 200000, got %d", after.CurrentAmount)
	}
}
