package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAction represents the business reason for a credit movement
type CreditAction string

const (
	CreditActionRenewal   CreditAction = "Renewal"
	CreditActionDeduction CreditAction = "Deduction"
	CreditActionTopUp     CreditAction = "Top-up"
	CreditActionRefund    CreditAction = "Refund"
)

// IsValid checks if the action is one of the known credit actions
func (a CreditAction) IsValid() bool {
	switch a {
	case CreditActionRenewal, CreditActionDeduction, CreditActionTopUp, CreditActionRefund:
		return true
	}
	return false
}

// GrowsLifetimeTotal reports whether the action also increases an officer's total_credits
func (a CreditAction) GrowsLifetimeTotal() bool {
	return a == CreditActionRenewal || a == CreditActionTopUp
}

// CreditTransaction is an immutable ledger row. Credits is a signed delta:
// negative for deductions, positive otherwise.
type CreditTransaction struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	OfficerID uuid.UUID    `json:"officer_id" db:"officer_id"`
	Action    CreditAction `json:"action" db:"action"`
	Credits   int          `json:"credits" db:"credits"`
	Remarks   string       `json:"remarks" db:"remarks"`
	QueryID   *uuid.UUID   `json:"query_id,omitempty" db:"query_id"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// CreditAdjustmentRequest represents an admin-initiated credit movement
type CreditAdjustmentRequest struct {
	Action  CreditAction `json:"action" validate:"required,oneof=Renewal Top-up Refund"`
	Credits int          `json:"credits" validate:"gt=0"`
	Remarks string       `json:"remarks"`
}

// PlanServicesRequest replaces every entitlement row of a plan
type PlanServicesRequest struct {
	Services []PlanService `json:"services" validate:"dive"`
}
