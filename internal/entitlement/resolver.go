package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

// Entitlement is the resolved permission of a plan to use a service
type Entitlement struct {
	PlanID     uuid.UUID
	ServiceID  uuid.UUID
	Enabled    bool
	CreditCost int
}

// Resolver answers whether a plan may use a service and at what price.
// It reads through to the store on every call.
type Resolver struct {
	store  store.EntitlementReader
	logger *zap.Logger
}

// NewResolver creates a new entitlement resolver
func NewResolver(s store.EntitlementReader, logger *zap.Logger) *Resolver {
	return &Resolver{store: s, logger: logger}
}

// Resolve returns the enabled entitlement for (planID, serviceID), or
// models.ErrServiceNotEnabled. A nil plan is never entitled.
func (r *Resolver) Resolve(ctx context.Context, planID *uuid.UUID, serviceID uuid.UUID) (*Entitlement, error) {
	if planID == nil {
		return nil, models.ErrServiceNotEnabled
	}

	ps, err := r.store.GetEnabledPlanService(ctx, *planID, serviceID)
	if err != nil {
		if !errors.Is(err, models.ErrServiceNotEnabled) {
			r.logger.Error("Failed to load plan service",
				zap.String("plan_id", planID.String()),
				zap.String("service_id", serviceID.String()),
				zap.Error(err))
		}
		return nil, err
	}

	return &Entitlement{
		PlanID:     ps.PlanID,
		ServiceID:  ps.ServiceID,
		Enabled:    ps.Enabled,
		CreditCost: ps.CreditCost,
	}, nil
}
