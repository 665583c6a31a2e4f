package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-ops/lookup-broker/internal/models"
)

// OfficerReader loads officers for the broker's identity gate.
type OfficerReader interface {
	// GetActiveOfficer returns models.ErrOfficerNotFound when the officer is
	// missing or not Active.
	GetActiveOfficer(ctx context.Context, id uuid.UUID) (*models.Officer, error)
}

// EntitlementReader loads plan/service entitlement rows.
type EntitlementReader interface {
	// GetEnabledPlanService returns models.ErrServiceNotEnabled when no enabled
	// row exists for the pair.
	GetEnabledPlanService(ctx context.Context, planID, serviceID uuid.UUID) (*models.PlanService, error)
}

// ProviderReader resolves services and their credentials.
type ProviderReader interface {
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetProviderCredential(ctx context.Context, serviceID uuid.UUID) (*models.ProviderCredential, error)
	// TouchProviderCredential increments usage_count and sets last_used.
	TouchProviderCredential(ctx context.Context, credentialID uuid.UUID, at time.Time) error
}

// QueryLogStore persists the lookup audit trail.
type QueryLogStore interface {
	InsertQueryLog(ctx context.Context, entry *models.QueryLogEntry) error
	ListQueryLogs(ctx context.Context, req *models.QueryHistoryRequest) ([]models.QueryLogEntry, int, error)
}

// LedgerStore applies balance changes together with their transaction rows.
// Each method is atomic: the officer update and the transaction insert
// commit or fail together.
type LedgerStore interface {
	// DebitOfficer lowers credits_remaining by amount, floored at zero,
	// increments total_queries and appends a Deduction row whose delta is
	// the amount actually removed.
	DebitOfficer(ctx context.Context, officerID uuid.UUID, amount int, remarks string, queryID *uuid.UUID) (*models.CreditTransaction, error)

	// CreditOfficer raises credits_remaining by amount (and total_credits for
	// Renewal/Top-up) and appends a row for action.
	CreditOfficer(ctx context.Context, officerID uuid.UUID, amount int, action models.CreditAction, remarks string) (*models.CreditTransaction, error)
}

// PlanStore manages plan entitlement rows.
type PlanStore interface {
	// ReplacePlanServices deletes every row of planID and inserts services.
	ReplacePlanServices(ctx context.Context, planID uuid.UUID, services []models.PlanService) error
}

// Store is the full data-store surface used by the service.
type Store interface {
	OfficerReader
	EntitlementReader
	ProviderReader
	QueryLogStore
	LedgerStore
	PlanStore

	// Initialize sets up any necessary structures or connections
	Initialize(ctx context.Context) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// Close cleans up any resources used by the store
	Close() error
}
