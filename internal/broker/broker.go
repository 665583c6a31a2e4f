package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/entitlement"
	"github.com/sentinel-ops/lookup-broker/internal/events"
	"github.com/sentinel-ops/lookup-broker/internal/ledger"
	"github.com/sentinel-ops/lookup-broker/internal/logging"
	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/providers"
	"github.com/sentinel-ops/lookup-broker/internal/querylog"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

// Config tunes the broker pipeline
type Config struct {
	// AuditDenied writes a Failed query log entry for entitlement and
	// credit denials.
	AuditDenied bool
	// PersistenceTimeout bounds the writes that follow a provider call.
	// They run detached from the caller's cancellation.
	PersistenceTimeout time.Duration
}

// Broker runs one lookup per call: identity, entitlement and balance
// gates, credential resolution, provider dispatch, then the audit log and
// (on success) the debit.
type Broker struct {
	officers  store.OfficerReader
	services  store.ProviderReader
	resolver  *entitlement.Resolver
	ledger    *ledger.Ledger
	queryLog  *querylog.Logger
	registry  *providers.Registry
	publisher events.Publisher
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewBroker wires a broker over s
func NewBroker(s store.Store, registry *providers.Registry, publisher events.Publisher, config Config, logger *zap.Logger) *Broker {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if config.PersistenceTimeout <= 0 {
		config.PersistenceTimeout = 10 * time.Second
	}
	return &Broker{
		officers:  s,
		services:  s,
		resolver:  entitlement.NewResolver(s, logger),
		ledger:    ledger.NewLedger(s, logger),
		queryLog:  querylog.NewLogger(s, logger),
		registry:  registry,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// QueryLog exposes the audit trail reader used by the history endpoint
func (b *Broker) QueryLog() *querylog.Logger {
	return b.queryLog
}

// Ledger exposes the credit ledger used by admin adjustments
func (b *Broker) Ledger() *ledger.Ledger {
	return b.ledger
}

// Handle performs a single brokered lookup. Gate failures are returned as
// *models.BrokerError with no response. Once the provider has been called a
// response is always returned: failed provider calls come back as a
// response with Success=false, and persistence failures are only logged.
func (b *Broker) Handle(ctx context.Context, req *models.LookupRequest) (*models.LookupResponse, error) {
	logger := logging.FromContext(ctx, b.logger)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	serviceID, officerID := req.IDs()
	logger = logger.With(
		zap.String("officer_id", officerID.String()),
		zap.String("service_id", serviceID.String()))

	// 1. identity
	officer, err := b.officers.GetActiveOfficer(ctx, officerID)
	if err != nil {
		if errors.Is(err, models.ErrOfficerNotFound) {
			logger.Warn("Lookup rejected: officer not found or inactive")
			return nil, models.NewUnauthorizedError(officerID.String())
		}
		return nil, b.internalError(logger, "load officer", err)
	}

	// 2. entitlement
	ent, err := b.resolver.Resolve(ctx, officer.PlanID, serviceID)
	if err != nil {
		if errors.Is(err, models.ErrServiceNotEnabled) {
			denial := models.NewForbiddenError(serviceID.String())
			logger.Warn("Lookup rejected: service not enabled for plan")
			b.auditDenial(ctx, logger, req, officerID, serviceID, denial)
			return nil, denial
		}
		return nil, b.internalError(logger, "resolve entitlement", err)
	}

	// 3. balance pre-check; the debit itself never rejects
	if !officer.CanAfford(ent.CreditCost) {
		denial := models.NewInsufficientCreditsError(ent.CreditCost, officer.CreditsRemaining)
		logger.Warn("Lookup rejected: insufficient credits",
			zap.Int("required", ent.CreditCost),
			zap.Int("available", officer.CreditsRemaining))
		b.auditDenial(ctx, logger, req, officerID, serviceID, denial)
		return nil, denial
	}

	// 4. service and credential
	service, cred, err := b.resolveCredential(ctx, serviceID)
	if err != nil {
		if be, ok := models.AsBrokerError(err); ok {
			logger.Error("Lookup rejected: provider credential unavailable", zap.Error(be.Cause))
			return nil, be
		}
		return nil, b.internalError(logger, "resolve credential", err)
	}

	// 5. dispatch
	adapter, err := b.registry.Get(service.Name)
	if err != nil {
		logger.Error("Lookup rejected: no adapter for service", zap.String("service_name", service.Name))
		return nil, err
	}

	started := time.Now()
	result, callErr := adapter.Lookup(ctx, req.InputData, providers.Credential{Secret: cred.Secret})
	if callErr != nil {
		result = &providers.Result{
			Success:       false,
			ResultSummary: "API call failed: " + callErr.Error(),
		}
	}
	result = sanitize(result, cred.Secret)
	if result.Success {
		result.CreditsUsed = ent.CreditCost
	} else {
		result.CreditsUsed = 0
	}

	callLogger := logger.With(
		zap.String("service_name", service.Name),
		zap.Bool("success", result.Success),
		zap.Duration("provider_latency", time.Since(started)))
	if callErr != nil {
		// callErr may quote provider text; the sanitized summary is what we log
		callLogger.Warn("Provider call failed", zap.String("reason", result.ResultSummary))
	} else {
		callLogger.Info("Provider call completed")
	}

	// The outcome is fixed from here on; the remaining writes must not be
	// abandoned because the caller went away.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.PersistenceTimeout)
	defer cancel()

	// 6. audit log, always
	status := models.QueryStatusFailed
	if result.Success {
		status = models.QueryStatusSuccess
	}
	entry := &models.QueryLogEntry{
		ID:             uuid.New(),
		OfficerID:      officerID,
		ServiceID:      serviceID,
		Category:       req.Category,
		Input:          req.InputData,
		ResultSummary:  result.ResultSummary,
		Result:         result.Data,
		CreditsCharged: result.CreditsUsed,
		Status:         status,
		CreatedAt:      b.now(),
	}
	logged := true
	if err := b.queryLog.Record(pctx, entry); err != nil {
		logged = false
		b.persistenceWarning(callLogger, "record query log", err)
	}

	// 7. debit, success only
	if result.Success {
		var queryRef *uuid.UUID
		if logged {
			queryRef = &entry.ID
		}
		remarks := fmt.Sprintf("%s lookup %s", service.Name, entry.ID)
		if _, err := b.ledger.Debit(pctx, officerID, ent.CreditCost, remarks, queryRef); err != nil {
			b.persistenceWarning(callLogger, "debit credits", err)
		}
	}

	// 8. usage statistics, best-effort
	if err := b.services.TouchProviderCredential(pctx, cred.ID, b.now()); err != nil {
		callLogger.Debug("Failed to update credential usage", zap.Error(err))
	}

	b.publish(pctx, callLogger, entry, service.Name, logged)

	// 9. caller-facing view
	resp := &models.LookupResponse{
		Success:       result.Success,
		Data:          result.Data,
		ResultSummary: result.ResultSummary,
		CreditsUsed:   result.CreditsUsed,
	}
	if !result.Success {
		resp.Error = result.ResultSummary
	}
	return resp, nil
}

func (b *Broker) resolveCredential(ctx context.Context, serviceID uuid.UUID) (*models.Service, *models.ProviderCredential, error) {
	service, err := b.services.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, models.ErrServiceNotFound) {
			return nil, nil, models.NewProviderUnavailableError(serviceID.String(), err)
		}
		return nil, nil, err
	}

	cred, err := b.services.GetProviderCredential(ctx, serviceID)
	if err != nil {
		if errors.Is(err, models.ErrCredentialNotFound) {
			return nil, nil, models.NewProviderUnavailableError(serviceID.String(), err)
		}
		return nil, nil, err
	}
	if !cred.IsActive() || cred.Secret == "" {
		return nil, nil, models.NewProviderUnavailableError(serviceID.String(), models.ErrCredentialInactive)
	}
	return service, cred, nil
}

// auditDenial records a gate 2/3 denial when enabled
func (b *Broker) auditDenial(ctx context.Context, logger *zap.Logger, req *models.LookupRequest, officerID, serviceID uuid.UUID, denial *models.BrokerError) {
	if !b.config.AuditDenied {
		return
	}
	entry := &models.QueryLogEntry{
		ID:            uuid.New(),
		OfficerID:     officerID,
		ServiceID:     serviceID,
		Category:      req.Category,
		Input:         req.InputData,
		ResultSummary: denial.Message,
		Status:        models.QueryStatusFailed,
		CreatedAt:     b.now(),
	}
	if err := b.queryLog.Record(ctx, entry); err != nil {
		b.persistenceWarning(logger, "record denied lookup", err)
	}
}

// publish announces the attempt; the query id is only referenced when the
// log entry was written
func (b *Broker) publish(ctx context.Context, logger *zap.Logger, entry *models.QueryLogEntry, serviceName string, logged bool) {
	event := &events.LookupCompleted{
		OfficerID:      entry.OfficerID,
		ServiceID:      entry.ServiceID,
		ServiceName:    serviceName,
		Category:       entry.Category,
		Status:         string(entry.Status),
		CreditsCharged: entry.CreditsCharged,
		CorrelationID:  logging.GetCorrelationID(ctx),
		OccurredAt:     entry.CreatedAt,
	}
	if logged {
		queryID := entry.ID
		event.QueryID = &queryID
	}
	if err := b.publisher.PublishLookupCompleted(ctx, event); err != nil {
		logger.Warn("Failed to publish lookup event", zap.Error(err))
	}
}

func (b *Broker) persistenceWarning(logger *zap.Logger, operation string, err error) {
	warning := models.NewPersistenceWarning(operation, err)
	logger.Warn("Persistence warning",
		zap.String("code", string(warning.Code)),
		zap.String("operation", operation),
		zap.Error(err))
}

func (b *Broker) internalError(logger *zap.Logger, operation string, err error) error {
	logger.Error("Lookup aborted by store failure", zap.String("operation", operation), zap.Error(err))
	return models.NewBrokerError(models.ErrCodeInternal, "Internal server error", err).
		WithDetail("operation", operation)
}
