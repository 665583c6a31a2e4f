package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/broker"
	"github.com/sentinel-ops/lookup-broker/internal/middleware"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Broker         *broker.Broker
	Store          store.Store
	JWTSecret      string
	AdminRole      string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter builds the chi router with middleware and all routes mounted
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewStructuredLogger(logger))
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", Health(cfg.Store, logger))

	authenticate := middleware.Authenticator(logger, cfg.JWTSecret)
	lookup := SecureLookup(cfg.Broker, cfg.AdminRole, logger)

	// Browser-facing lookup function
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS)
		r.Use(authenticate)
		r.Post("/functions/v1/secure-api-call", lookup)
		r.Options("/functions/v1/secure-api-call", func(w http.ResponseWriter, r *http.Request) {})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/lookups", lookup)
		r.Get("/officers/{officerID}/queries", QueryHistory(cfg.Broker.QueryLog(), cfg.AdminRole, logger))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logger, cfg.AdminRole))
			r.Post("/officers/{officerID}/credits", AdjustCredits(cfg.Broker.Ledger(), logger))
			r.Put("/plans/{planID}/services", ReplacePlanServices(cfg.Store, logger))
		})
	})

	return r
}

// Health reports whether the store is reachable
func Health(s store.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.Ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "lookup-broker",
			})
			return
		}

		writeJSONResponse(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "lookup-broker",
		})
	}
}
