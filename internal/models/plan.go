package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceType classifies a lookup service
type ServiceType string

const (
	ServiceTypeFree     ServiceType = "FREE"
	ServiceTypePro      ServiceType = "PRO"
	ServiceTypeDisabled ServiceType = "DISABLED"
)

// Service identifies what can be looked up. Name is unique and selects the
// provider adapter.
type Service struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Type              ServiceType     `json:"type" db:"type"`
	ServiceProvider   string          `json:"service_provider" db:"service_provider"`
	DefaultCreditCost int             `json:"default_credit_cost" db:"default_credit_cost"`
	DefaultBuyPrice   decimal.Decimal `json:"default_buy_price" db:"default_buy_price"`
	DefaultSellPrice  decimal.Decimal `json:"default_sell_price" db:"default_sell_price"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// PlanStatus represents the status of a rate plan
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "Active"
	PlanStatusInactive PlanStatus = "Inactive"
)

// Plan represents a subscription-style rate plan
type Plan struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserType       string          `json:"user_type" db:"user_type"`
	MonthlyFee     decimal.Decimal `json:"monthly_fee" db:"monthly_fee"`
	DefaultCredits int             `json:"default_credits" db:"default_credits"`
	Status         PlanStatus      `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// PlanService is the entitlement row binding a plan to a service.
// (PlanID, ServiceID) is unique.
type PlanService struct {
	PlanID     uuid.UUID       `json:"plan_id" db:"plan_id"`
	ServiceID  uuid.UUID       `json:"service_id" db:"service_id" validate:"required"`
	Enabled    bool            `json:"enabled" db:"enabled"`
	CreditCost int             `json:"credit_cost" db:"credit_cost" validate:"gte=0"`
	BuyPrice   decimal.Decimal `json:"buy_price" db:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price" db:"sell_price"`
}

// Margin returns the per-lookup margin between sell and buy price
func (ps *PlanService) Margin() decimal.Decimal {
	return ps.SellPrice.Sub(ps.BuyPrice)
}
