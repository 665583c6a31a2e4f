package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/config"
)

// NewServer creates and configures an http.Server for the given router
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	logger.Info("HTTP server configured",
		zap.String("address", addr),
		zap.Duration("read_timeout", cfg.ReadTimeout),
		zap.Duration("write_timeout", cfg.WriteTimeout))
	return srv
}
