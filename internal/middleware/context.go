package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sentinel-ops/lookup-broker/internal/logging"
)

// CorrelationIDHeader is echoed back on every response
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID is middleware that injects a correlation ID into the context
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if correlationID := r.Header.Get(CorrelationIDHeader); correlationID != "" {
			ctx = logging.WithCorrelationID(ctx, correlationID)
		}
		ctx, correlationID := logging.EnsureCorrelationID(ctx)
		w.Header().Set(CorrelationIDHeader, correlationID)

		// chi's RequestID middleware runs first
		if requestID := middleware.GetReqID(ctx); requestID != "" {
			ctx = logging.WithRequestID(ctx, requestID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
