package handler

import (
	"net/http"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Recurring Rules Handlers
// ============================================================

func listRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring")
		defer span.End()

		rules, err := svc.ListRules(ctx, FamilyIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func createRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring")
		defer span.End()

		var req domain.CreateRecurringRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rule, err := svc.CreateRule(ctx, FamilyIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	}
}

func getRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/recurring/{ruleId}")
		defer span.End()

		rule, err := svc.GetRule(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "ruleId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func updateRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/recurring/{ruleId}")
		defer span.End()

		var updates map[string]any
		if err := decodeJSON(r, &updates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rule, err := svc.UpdateRule(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "ruleId"), updates)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func deleteRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/recurring/{ruleId}")
		defer span.End()

		if err := svc.DeleteRule(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "ruleId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// processRecurringHandler materializes all due charges for the family.
// Called after rule changes and by external schedulers; safe to repeat.
func processRecurringHandler(svc *service.RecurringService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/recurring/process")
		defer span.End()

		fired, err := svc.ProcessDueCharges(ctx, FamilyIDFromContext(ctx), time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"fired": fired})
	}
}
