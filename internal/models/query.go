package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueryStatus represents the outcome of a lookup attempt
type QueryStatus string

const (
	QueryStatusProcessing QueryStatus = "Processing"
	QueryStatusSuccess    QueryStatus = "Success"
	QueryStatusFailed     QueryStatus = "Failed"
	QueryStatusPending    QueryStatus = "Pending"
)

// QueryLogEntry is the immutable audit record of one lookup attempt.
// It is written once with its final status.
type QueryLogEntry struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OfficerID      uuid.UUID       `json:"officer_id" db:"officer_id"`
	ServiceID      uuid.UUID       `json:"service_id" db:"service_id"`
	Category       string          `json:"category" db:"category"`
	Input          string          `json:"input" db:"input"`
	ResultSummary  string          `json:"result_summary" db:"result_summary"`
	Result         json.RawMessage `json:"result,omitempty" db:"result"`
	CreditsCharged int             `json:"credits_charged" db:"credits_charged"`
	Status         QueryStatus     `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// QueryHistoryRequest represents a paged query-history lookup
type QueryHistoryRequest struct {
	OfficerID uuid.UUID
	Limit     int
	Offset    int
}

// QueryHistoryResponse represents a page of query log entries
type QueryHistoryResponse struct {
	Entries []QueryLogEntry `json:"entries"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}
