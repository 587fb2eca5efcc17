package handler

import (
	"net/http"
	"time"

	"github.com/minhkhoa/famledger-api-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard Handler
// ============================================================

// dashboardHandler serves the family-wide summary. Defaults to the
// current calendar month when from/to are omitted.
func dashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		q := r.URL.Query()
		profileID := q.Get("profile_id")
		if profileID == "" {
			writeError(w, http.StatusBadRequest, "profile_id is required")
			return
		}

		fromDate := q.Get("from")
		toDate := q.Get("to")
		if fromDate == "" || toDate == "" {
			now := time.Now().UTC()
			start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			fromDate = start.Format("2006-01-02")
			toDate = start.AddDate(0, 1, -1).Format("2006-01-02")
		}

		summary, err := svc.GetDashboard(ctx, FamilyIDFromContext(ctx), profileID, fromDate, toDate)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
