package models

import (
	"time"

	"github.com/google/uuid"
)

// CredentialStatus represents whether a provider credential may be used
type CredentialStatus string

const (
	CredentialStatusActive   CredentialStatus = "Active"
	CredentialStatusInactive CredentialStatus = "Inactive"
)

// ProviderCredential holds the secret used to call a service's external API.
// There is exactly one per service. Secret is never serialized.
type ProviderCredential struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	ServiceID  uuid.UUID        `json:"service_id" db:"service_id"`
	Secret     string           `json:"-" db:"secret"`
	Status     CredentialStatus `json:"status" db:"status"`
	UsageCount int64            `json:"usage_count" db:"usage_count"`
	LastUsed   *time.Time       `json:"last_used,omitempty" db:"last_used"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// IsActive reports whether the credential may be used for provider calls
func (c *ProviderCredential) IsActive() bool {
	return c.Status == CredentialStatusActive
}
