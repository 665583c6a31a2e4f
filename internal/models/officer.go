package models

import (
	"time"

	"github.com/google/uuid"
)

// OfficerStatus represents whether an officer may issue lookups
type OfficerStatus string

const (
	OfficerStatusActive    OfficerStatus = "Active"
	OfficerStatusSuspended OfficerStatus = "Suspended"
)

// Officer represents an end-user who initiates lookups and owns a credit balance.
// CreditsRemaining and TotalCredits are a running balance kept in lockstep with
// the credit_transactions log, which is the audit source of truth.
type Officer struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	Name             string        `json:"name" db:"name"`
	Email            string        `json:"email" db:"email"`
	Phone            string        `json:"phone" db:"phone"`
	Status           OfficerStatus `json:"status" db:"status"`
	PlanID           *uuid.UUID    `json:"plan_id,omitempty" db:"plan_id"`
	CreditsRemaining int           `json:"credits_remaining" db:"credits_remaining"`
	TotalCredits     int           `json:"total_credits" db:"total_credits"`
	TotalQueries     int           `json:"total_queries" db:"total_queries"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the officer may use the broker
func (o *Officer) IsActive() bool {
	return o.Status == OfficerStatusActive
}

// CanAfford checks if the officer has at least cost credits remaining
func (o *Officer) CanAfford(cost int) bool {
	return o.CreditsRemaining >= cost
}
