package handler

import (
	"net/http"

	"github.com/minhkhoa/famledger-api-go/internal/domain"
	"github.com/minhkhoa/famledger-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Transactions Handlers
// ============================================================

func listTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		familyID := FamilyIDFromContext(ctx)
		q := r.URL.Query()
		fromDate := q.Get("from")
		toDate := q.Get("to")

		var txns []domain.Transaction
		var err error
		if profileID := q.Get("profile_id"); profileID != "" {
			txns, err = svc.ListProfileTransactions(ctx, familyID, profileID, fromDate, toDate)
		} else {
			txns, err = svc.ListTransactions(ctx, familyID, fromDate, toDate)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func getTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{txId}")
		defer span.End()

		tx, err := svc.GetTransaction(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "txId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

// createTransactionHandler posts a ledger entry. A budget WARNING or
// CRITICAL on an expense comes back as 409 with the check; the client
// resubmits with save_anyway=true after the user confirms.
func createTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req domain.CreateTransactionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, check, err := svc.CreateTransaction(ctx, FamilyIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if tx == nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"budget_check": check,
			})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"transaction":  tx,
			"budget_check": check,
		})
	}
}

func updateTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{txId}")
		defer span.End()

		var req domain.UpdateTransactionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := svc.UpdateTransaction(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "txId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{txId}")
		defer span.End()

		if err := svc.DeleteTransaction(ctx, FamilyIDFromContext(ctx), chi.URLParam(r, "txId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
