package handler

import (
	"net/http"
	"strconv"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Profiles Handlers
// ============================================================

func listProfilesHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profiles")
		defer span.End()

		profiles, err := svc.ListProfiles(ctx, FamilyIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		// Hashes never leave the server.
		for i := range profiles {
			profiles[i].PinHash = ""
		}
		writeJSON(w, http.StatusOK, profiles)
	}
}

func getProfileHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profiles/{profileId}")
		defer span.End()

		profile, err := svc.GetProfile(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "profileId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		profile.PinHash = ""
		writeJSON(w, http.StatusOK, profile)
	}
}

func createProfileHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profiles")
		defer span.End()

		var req domain.CreateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := svc.CreateProfile(ctx, FamilyIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		profile.PinHash = ""
		writeJSON(w, http.StatusCreated, profile)
	}
}

func updateProfileHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profiles/{profileId}")
		defer span.End()

		var req domain.UpdateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		profile, err := svc.UpdateProfile(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "profileId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		profile.PinHash = ""
		writeJSON(w, http.StatusOK, profile)
	}
}

func deleteProfileHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/profiles/{profileId}")
		defer span.End()

		if err := svc.DeleteProfile(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "profileId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func verifyPinHandler(svc *service.ProfileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profiles/{profileId}/verify-pin")
		defer span.End()

		var req domain.VerifyPinRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.VerifyPin(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "profileId"), req.Pin); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"verified": true})
	}
}

func recomputeSpentHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/profiles/{profileId}/recompute-spent")
		defer span.End()

		spent, err := svc.RecomputeSpent(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "profileId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"spent": spent})
	}
}

// budgetCheckHandler lets the client pre-check an amount before showing
// the confirmation sheet.
func budgetCheckHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profiles/{profileId}/budget-check")
		defer span.End()

		amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
		if err != nil || amount <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be a positive integer")
			return
		}

		check, err := svc.CheckBudget(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "profileId"), amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, check)
	}
}
