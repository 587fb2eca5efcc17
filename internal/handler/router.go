// Package handler wires the HTTP surface: routing, auth middleware and
// the mapping from domain errors to status codes.
package handler

import (
	"net/http"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/infra/observability"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

var startedAt = time.Now()

// Services bundles everything the router needs.
type Services struct {
	Auth       *service.AuthService
	Profiles   *service.ProfileService
	Ledger     *service.LedgerService
	Budget     *service.BudgetService
	Dashboard  *service.DashboardService
	Transfers  *service.TransferService
	Requests   *service.RequestService
	Recurring  *service.RecurringService
	Goals      *service.GoalService
	Categories *service.CategoryService
	Settings   *service.SettingsService
}

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 except /v1/auth/{register,login,refresh} requires
// a Bearer token whose subject is the family ID.
func NewRouter(svcs *Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Auth: register/login/refresh are the only public routes.
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(svcs.Auth, logger))
			r.Post("/login", authLoginHandler(svcs.Auth, logger))
			r.Post("/refresh", authRefreshHandler(svcs.Auth, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
				r.Post("/logout", authLogoutHandler(svcs.Auth, logger))
			})
		})

		// Everything else is family-scoped.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svcs.Auth, logger))

			// Profiles
			r.Get("/profiles", listProfilesHandler(svcs.Profiles, logger))
			r.Post("/profiles", createProfileHandler(svcs.Profiles, logger))
			r.Get("/profiles/{profileId}", getProfileHandler(svcs.Profiles, logger))
			r.Put("/profiles/{profileId}", updateProfileHandler(svcs.Profiles, logger))
			r.Delete("/profiles/{profileId}", deleteProfileHandler(svcs.Profiles, logger))
			r.Post("/profiles/{profileId}/verify-pin", verifyPinHandler(svcs.Profiles, logger))
			r.Post("/profiles/{profileId}/recompute-spent", recomputeSpentHandler(svcs.Ledger, logger))
			r.Get("/profiles/{profileId}/budget-check", budgetCheckHandler(svcs.Budget, logger))

			// Transactions
			r.Get("/transactions", listTransactionsHandler(svcs.Ledger, logger))
			r.Post("/transactions", createTransactionHandler(svcs.Ledger, logger))
			r.Get("/transactions/{txId}", getTransactionHandler(svcs.Ledger, logger))
			r.Put("/transactions/{txId}", updateTransactionHandler(svcs.Ledger, logger))
			r.Delete("/transactions/{txId}", deleteTransactionHandler(svcs.Ledger, logger))

			// Dashboard
			r.Get("/dashboard", dashboardHandler(svcs.Dashboard, logger))

			// Transfers
			r.Post("/transfers", createTransferHandler(svcs.Transfers, logger))

			// Money requests
			r.Get("/requests", listRequestsHandler(svcs.Requests, logger))
			r.Post("/requests", createRequestHandler(svcs.Requests, logger))
			r.Post("/requests/{requestId}/approve", approveRequestHandler(svcs.Requests, logger))
			r.Post("/requests/{requestId}/reject", rejectRequestHandler(svcs.Requests, logger))

			// Recurring rules
			r.Get("/recurring", listRecurringHandler(svcs.Recurring, logger))
			r.Post("/recurring", createRecurringHandler(svcs.Recurring, logger))
			r.Post("/recurring/process", processRecurringHandler(svcs.Recurring, logger))
			r.Get("/recurring/{ruleId}", getRecurringHandler(svcs.Recurring, logger))
			r.Put("/recurring/{ruleId}", updateRecurringHandler(svcs.Recurring, logger))
			r.Delete("/recurring/{ruleId}", deleteRecurringHandler(svcs.Recurring, logger))

			// Goals
			r.Get("/goals", listGoalsHandler(svcs.Goals, logger))
			r.Post("/goals", createGoalHandler(svcs.Goals, logger))
			r.Get("/goals/{goalId}", getGoalHandler(svcs.Goals, logger))
			r.Delete("/goals/{goalId}", deleteGoalHandler(svcs.Goals, logger))
			r.Post("/goals/{goalId}/contribute", contributeGoalHandler(svcs.Goals, logger))
			r.Post("/goals/{goalId}/withdraw", withdrawGoalHandler(svcs.Goals, logger))

			// Categories
			r.Get("/categories", listCategoriesHandler(svcs.Categories, logger))
			r.Post("/categories", createCategoryHandler(svcs.Categories, logger))
			r.Put("/categories/{categoryId}", updateCategoryHandler(svcs.Categories, logger))
			r.Delete("/categories/{categoryId}", deleteCategoryHandler(svcs.Categories, logger))

			// Settings
			r.Get("/settings", getSettingsHandler(svcs.Settings, logger))
			r.Put("/settings", updateSettingsHandler(svcs.Settings, logger))

			// Service counters
			r.Get("/metrics/ledger", ledgerMetricsHandler(metrics, logger))
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"uptime": time.Since(startedAt).String(),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ready": true})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/ledger")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.LedgerSnapshot())
	}
}
