package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/auth"
	"github.com/sentinel-ops/lookup-broker/internal/broker"
	"github.com/sentinel-ops/lookup-broker/internal/logging"
	"github.com/sentinel-ops/lookup-broker/internal/models"
)

const maxLookupBodyBytes = 64 << 10

// SecureLookup handles brokered lookups.
// 200 on provider success, 400 on provider failure, gate errors per statusFromError.
func SecureLookup(b *broker.Broker, adminRole string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context(), logger)

		var req models.LookupRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLookupBodyBytes)).Decode(&req); err != nil {
			log.Warn("Failed to decode lookup request", zap.Error(err))
			writeLookupError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		// With authentication enabled the token must belong to the officer
		// named in the body, unless it is an admin token.
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok && !auth.CanActAs(claims, req.OfficerID, adminRole) {
			log.Warn("Lookup rejected: token does not match officer",
				zap.String("subject", claims.Identity()),
				zap.String("officer_id", req.OfficerID))
			writeLookupError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		resp, err := b.Handle(r.Context(), &req)
		if err != nil {
			status := statusFromError(err)
			if status == http.StatusInternalServerError {
				log.Error("Lookup failed", zap.Int("status", status), zap.Error(err))
			} else {
				log.Info("Lookup rejected", zap.Int("status", status), zap.Error(err))
			}
			writeLookupError(w, status, publicMessage(err))
			return
		}

		status := http.StatusOK
		if !resp.Success {
			status = http.StatusBadRequest
		}
		writeJSONResponse(w, status, resp)
	}
}
