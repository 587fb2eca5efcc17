package handler

import (
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Money Requests Handlers
// ============================================================

func listRequestsHandler(svc *service.RequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/requests")
		defer span.End()

		rows, err := svc.ListRequests(ctx, FamilyIDFromContext(ctx), r.URL.Query().Get("status"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func createRequestHandler(svc *service.RequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/requests")
		defer span.End()

		var req domain.CreateRequestRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		row, err := svc.CreateRequest(ctx, FamilyIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, row)
	}
}

func approveRequestHandler(svc *service.RequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/requests/{requestId}/approve")
		defer span.End()

		var req domain.DecideRequestRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		row, err := svc.ApproveRequest(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "requestId"), req.ProfileID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func rejectRequestHandler(svc *service.RequestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/requests/{requestId}/reject")
		defer span.End()

		var req domain.DecideRequestRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		row, err := svc.RejectRequest(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "requestId"), req.ProfileID, req.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}
