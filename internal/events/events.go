package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LookupCompleted announces the outcome of a lookup attempt. It carries no
// lookup input, provider payload or credential material. QueryID is nil when
// the query log entry could not be written.
type LookupCompleted struct {
	QueryID        *uuid.UUID `json:"query_id,omitempty"`
	OfficerID      uuid.UUID  `json:"officer_id"`
	ServiceID      uuid.UUID  `json:"service_id"`
	ServiceName    string     `json:"service_name"`
	Category       string     `json:"category"`
	Status         string     `json:"status"`
	CreditsCharged int        `json:"credits_charged"`
	CorrelationID  string     `json:"correlation_id,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// Publisher emits lookup events. Publishing is best-effort; callers log
// and drop errors.
type Publisher interface {
	PublishLookupCompleted(ctx context.Context, event *LookupCompleted) error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) PublishLookupCompleted(ctx context.Context, event *LookupCompleted) error {
	return nil
}
