package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/models"
)

// writeJSONResponse writes a JSON response
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already sent
		zap.L().Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response for the admin endpoints
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string, code models.ErrorCode) {
	errorResponse := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}
	if code != "" {
		errorResponse["code"] = code
	}
	writeJSONResponse(w, statusCode, errorResponse)
}

// writeLookupError answers a lookup with the same body shape as a result
func writeLookupError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, &models.LookupResponse{
		Success:     false,
		CreditsUsed: 0,
		Error:       message,
	})
}

// statusFromError maps broker errors to HTTP status codes
func statusFromError(err error) int {
	be, ok := models.AsBrokerError(err)
	if !ok {
		switch {
		case errors.Is(err, models.ErrOfficerNotFound), errors.Is(err, models.ErrPlanNotFound):
			return http.StatusNotFound
		case errors.Is(err, models.ErrInvalidAmount),
			errors.Is(err, models.ErrInvalidCreditAction),
			errors.Is(err, models.ErrServiceNotFound),
			errors.Is(err, models.ErrInvalidRequest):
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}

	switch be.Code {
	case models.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case models.ErrCodeInsufficientCredits:
		return http.StatusPaymentRequired
	case models.ErrCodeUnauthorized, models.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		// ProviderUnavailable, UnsupportedProvider, Internal
		return http.StatusInternalServerError
	}
}

// publicMessage is the caller-visible text for err. Internal failures never
// carry detail.
func publicMessage(err error) string {
	if be, ok := models.AsBrokerError(err); ok && be.Code != models.ErrCodeInternal {
		return be.Message
	}
	if statusFromError(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
