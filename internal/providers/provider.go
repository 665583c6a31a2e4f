package providers

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/sentinel-ops/lookup-broker/internal/models"
)

// ServiceName identifies an adapter. It must equal the Service name stored
// for the lookup service exactly.
type ServiceName string

const (
	PhonePrefillV2  ServiceName = "Phone Prefill V2"
	PANVerification ServiceName = "PAN Verification"
	RCVerification  ServiceName = "RC Verification"
)

// Credential is the provider secret handed to an adapter for one call
type Credential struct {
	Secret string
}

// Result is the normalized outcome of a provider call
type Result struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data,omitempty"`
	ResultSummary string          `json:"result_summary"`
	CreditsUsed   int             `json:"credits_used"`
}

// Adapter calls one external verification API. Implementations return an
// error for transport failures, non-2xx responses and unreadable bodies;
// they never persist or log lookup outcomes.
type Adapter interface {
	Name() ServiceName
	Lookup(ctx context.Context, input string, cred Credential) (*Result, error)
}

// Registry maps service names to adapters. It is populated at startup and
// read-only afterwards.
type Registry struct {
	adapters map[ServiceName]Adapter
}

// NewRegistry creates a registry holding adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[ServiceName]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered for the exact service name
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[ServiceName(name)]
	if !ok {
		return nil, models.NewUnsupportedProviderError(name)
	}
	return a, nil
}

// Names lists the registered service names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}
