package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/auth"
	"github.com/sentinel-ops/lookup-broker/internal/ledger"
	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/querylog"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

// AdjustCredits handles admin Renewal, Top-up and Refund requests
func AdjustCredits(l *ledger.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		officerID, err := uuid.Parse(chi.URLParam(r, "officerID"))
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid officer ID", models.ErrCodeInvalidRequest)
			return
		}

		var req models.CreditAdjustmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("Failed to decode credit adjustment request", zap.Error(err))
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", models.ErrCodeInvalidRequest)
			return
		}
		if err := models.ValidateStruct(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, publicMessage(err), models.ErrCodeInvalidRequest)
			return
		}

		txn, err := l.Credit(r.Context(), officerID, req.Credits, req.Action, req.Remarks)
		if err != nil {
			logger.Error("Failed to adjust credits", zap.String("officer_id", officerID.String()), zap.Error(err))
			status := statusFromError(err)
			writeErrorResponse(w, status, publicMessage(err), "")
			return
		}

		writeJSONResponse(w, http.StatusCreated, txn)
	}
}

// ReplacePlanServices handles wholesale replacement of a plan's entitlements
func ReplacePlanServices(s store.PlanStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID, err := uuid.Parse(chi.URLParam(r, "planID"))
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid plan ID", models.ErrCodeInvalidRequest)
			return
		}

		var req models.PlanServicesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("Failed to decode plan services request", zap.Error(err))
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", models.ErrCodeInvalidRequest)
			return
		}
		if err := models.ValidateStruct(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, publicMessage(err), models.ErrCodeInvalidRequest)
			return
		}

		seen := make(map[uuid.UUID]bool, len(req.Services))
		for _, ps := range req.Services {
			if seen[ps.ServiceID] {
				writeErrorResponse(w, http.StatusBadRequest, "Duplicate service "+ps.ServiceID.String(), models.ErrCodeInvalidRequest)
				return
			}
			seen[ps.ServiceID] = true
		}

		if err := s.ReplacePlanServices(r.Context(), planID, req.Services); err != nil {
			logger.Error("Failed to replace plan services", zap.String("plan_id", planID.String()), zap.Error(err))
			writeErrorResponse(w, statusFromError(err), publicMessage(err), "")
			return
		}

		logger.Info("Plan services replaced",
			zap.String("plan_id", planID.String()),
			zap.Int("services", len(req.Services)))

		entries := make([]map[string]interface{}, 0, len(req.Services))
		for i := range req.Services {
			ps := &req.Services[i]
			entries = append(entries, map[string]interface{}{
				"service_id":  ps.ServiceID,
				"enabled":     ps.Enabled,
				"credit_cost": ps.CreditCost,
				"margin":      ps.Margin(),
			})
		}

		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"plan_id":  planID,
			"services": entries,
		})
	}
}

// QueryHistory handles paged reads of an officer's lookup log. Officers may
// only read their own history.
func QueryHistory(q *querylog.Logger, adminRole string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "officerID")
		officerID, err := uuid.Parse(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid officer ID", models.ErrCodeInvalidRequest)
			return
		}

		if claims, ok := auth.ClaimsFromContext(r.Context()); ok && !auth.CanActAs(claims, raw, adminRole) {
			writeErrorResponse(w, http.StatusForbidden, "Insufficient permissions", models.ErrCodeForbidden)
			return
		}

		req := &models.QueryHistoryRequest{OfficerID: officerID}
		if v := r.URL.Query().Get("limit"); v != "" {
			if req.Limit, err = strconv.Atoi(v); err != nil || req.Limit < 0 {
				writeErrorResponse(w, http.StatusBadRequest, "Invalid limit parameter", models.ErrCodeInvalidRequest)
				return
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if req.Offset, err = strconv.Atoi(v); err != nil || req.Offset < 0 {
				writeErrorResponse(w, http.StatusBadRequest, "Invalid offset parameter", models.ErrCodeInvalidRequest)
				return
			}
		}

		resp, err := q.History(r.Context(), req)
		if err != nil {
			logger.Error("Failed to get query history", zap.String("officer_id", officerID.String()), zap.Error(err))
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to get query history", "")
			return
		}

		writeJSONResponse(w, http.StatusOK, resp)
	}
}
