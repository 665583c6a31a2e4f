package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sentinel-ops/lookup-broker/internal/broker"
	"github.com/sentinel-ops/lookup-broker/internal/config"
	"github.com/sentinel-ops/lookup-broker/internal/consul"
	"github.com/sentinel-ops/lookup-broker/internal/events"
	"github.com/sentinel-ops/lookup-broker/internal/handlers"
	"github.com/sentinel-ops/lookup-broker/internal/providers"
	"github.com/sentinel-ops/lookup-broker/internal/server"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	secretsPath := flag.String("secrets", "", "optional JSON secrets file")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err) // Zap is not up yet
	}
	cfg.ApplySecrets(config.DefaultSecretLoader(*secretsPath))
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// --- Logger ---
	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("Lookup broker starting up...")

	// --- Store ---
	dataStore, err := setupStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer dataStore.Close()

	// --- Providers ---
	registry := setupRegistry(&cfg.Providers)
	logger.Info("Provider adapters registered", zap.Strings("services", registry.Names()))

	// --- Events ---
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.Address != "" {
		nc, err := events.Connect(cfg.NATS.Address, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Drain()
		publisher = events.NewNATSPublisher(nc, cfg.NATS.LookupSubject, logger)
	}

	// --- Broker and HTTP ---
	lookupBroker := broker.NewBroker(dataStore, registry, publisher, broker.Config{
		AuditDenied:        cfg.Broker.AuditDenied,
		PersistenceTimeout: cfg.Broker.PersistenceTimeout,
	}, logger)

	router := handlers.NewRouter(handlers.RouterConfig{
		Broker:         lookupBroker,
		Store:          dataStore,
		JWTSecret:      cfg.Auth.JWTSecret,
		AdminRole:      cfg.Auth.AdminRole,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT authentication disabled; caller identity is taken from the request body")
	}

	srv := server.NewServer(cfg.Server, router, logger)

	// --- Consul ---
	var deregister func()
	if cfg.Consul.Address != "" {
		client, err := consul.Connect(cfg.Consul.Address, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Consul agent", zap.Error(err))
		}
		serviceID := config.GenerateServiceID(cfg.Consul.ServiceIDPrefix)
		if err := consul.RegisterService(client, cfg.Consul, cfg.Server.Port, serviceID, logger); err != nil {
			logger.Fatal("Failed to register service with Consul", zap.Error(err))
		}
		deregister = func() { consul.DeregisterService(client, serviceID, logger) }
	}

	// --- Start Server Goroutine ---
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	if deregister != nil {
		deregister()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown uncleanly", zap.Error(err))
	}

	logger.Info("Server gracefully stopped")
}

// setupLogger configures Zap based on the log level string.
func setupLogger(levelString string) (*zap.Logger, error) {
	var logLevel zapcore.Level
	if err := logLevel.Set(levelString); err != nil {
		logLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(logLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// setupStore opens PostgreSQL when a database URL is configured and falls
// back to the in-memory store otherwise.
func setupStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Database.URL == "" {
		logger.Warn("No database URL configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	pool, err := setupDatabase(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	pgStore := store.NewPostgresStore(pool, cfg.Database.Retry, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pgStore.Initialize(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return pgStore, nil
}

// setupDatabase initializes the database connection
func setupDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established successfully")
	return pool, nil
}

// setupRegistry builds the adapter registry from provider settings
func setupRegistry(cfg *config.ProvidersConfig) *providers.Registry {
	clientConfig := func(endpoint string) providers.ClientConfig {
		return providers.ClientConfig{
			Endpoint:         endpoint,
			Timeout:          cfg.Timeout,
			MaxResponseBytes: cfg.MaxResponseBytes,
		}
	}

	return providers.NewRegistry(
		providers.NewPhonePrefillAdapter(clientConfig(cfg.PhonePrefillURL)),
		providers.NewPANAdapter(clientConfig(cfg.PANVerifyURL)),
		providers.NewRCAdapter(clientConfig(cfg.RCVerifyURL)),
	)
}
