package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-ops/lookup-broker/internal/models"
)

type planServiceKey struct {
	planID    uuid.UUID
	serviceID uuid.UUID
}

// MemoryStore is an in-memory Store used for local runs and tests.
// All reads return copies so callers cannot mutate stored rows.
type MemoryStore struct {
	mu           sync.RWMutex
	officers     map[uuid.UUID]*models.Officer
	plans        map[uuid.UUID]*models.Plan
	services     map[uuid.UUID]*models.Service
	planServices map[planServiceKey]*models.PlanService
	credentials  map[uuid.UUID]*models.ProviderCredential // keyed by service id
	queryLogs    []models.QueryLogEntry
	transactions []models.CreditTransaction
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		officers:     make(map[uuid.UUID]*models.Officer),
		plans:        make(map[uuid.UUID]*models.Plan),
		services:     make(map[uuid.UUID]*models.Service),
		planServices: make(map[planServiceKey]*models.PlanService),
		credentials:  make(map[uuid.UUID]*models.ProviderCredential),
	}
}

// Initialize is a no-op; the maps are created in the constructor.
func (s *MemoryStore) Initialize(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

// Seeding helpers

// PutOfficer inserts or replaces an officer.
func (s *MemoryStore) PutOfficer(o models.Officer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.officers[o.ID] = &o
}

// PutPlan inserts or replaces a plan.
func (s *MemoryStore) PutPlan(p models.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = &p
}

// PutService inserts or replaces a service.
func (s *MemoryStore) PutService(svc models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = &svc
}

// PutPlanService inserts or replaces a single entitlement row.
func (s *MemoryStore) PutPlanService(ps models.PlanService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planServices[planServiceKey{ps.PlanID, ps.ServiceID}] = &ps
}

// PutCredential inserts or replaces the credential of cred.ServiceID.
func (s *MemoryStore) PutCredential(cred models.ProviderCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.ServiceID] = &cred
}

// Inspection helpers

// Officer returns a copy of an officer regardless of status.
func (s *MemoryStore) Officer(id uuid.UUID) (models.Officer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.officers[id]
	if !ok {
		return models.Officer{}, false
	}
	return *o, true
}

// Credential returns a copy of the credential of a service.
func (s *MemoryStore) Credential(serviceID uuid.UUID) (models.ProviderCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[serviceID]
	if !ok {
		return models.ProviderCredential{}, false
	}
	return *c, true
}

// QueryLogs returns every query log entry in insertion order.
func (s *MemoryStore) QueryLogs() []models.QueryLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.QueryLogEntry(nil), s.queryLogs...)
}

// Transactions returns every credit transaction in insertion order.
func (s *MemoryStore) Transactions() []models.CreditTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CreditTransaction(nil), s.transactions...)
}

// Store operations

func (s *MemoryStore) GetActiveOfficer(ctx context.Context, id uuid.UUID) (*models.Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.officers[id]
	if !ok || !o.IsActive() {
		return nil, models.ErrOfficerNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) GetEnabledPlanService(ctx context.Context, planID, serviceID uuid.UUID) (*models.PlanService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, ok := s.planServices[planServiceKey{planID, serviceID}]
	if !ok || !ps.Enabled {
		return nil, models.ErrServiceNotEnabled
	}
	cp := *ps
	return &cp, nil
}

func (s *MemoryStore) ReplacePlanServices(ctx context.Context, planID uuid.UUID, services []models.PlanService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[planID]; !ok {
		return models.ErrPlanNotFound
	}
	for _, ps := range services {
		if _, ok := s.services[ps.ServiceID]; !ok {
			return models.ErrServiceNotFound
		}
	}

	for key := range s.planServices {
		if key.planID == planID {
			delete(s.planServices, key)
		}
	}
	for i := range services {
		ps := services[i]
		ps.PlanID = planID
		s.planServices[planServiceKey{planID, ps.ServiceID}] = &ps
	}
	return nil
}

func (s *MemoryStore) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, models.ErrServiceNotFound
	}
	cp := *svc
	return &cp, nil
}

func (s *MemoryStore) GetProviderCredential(ctx context.Context, serviceID uuid.UUID) (*models.ProviderCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[serviceID]
	if !ok {
		return nil, models.ErrCredentialNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) TouchProviderCredential(ctx context.Context, credentialID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.credentials {
		if c.ID == credentialID {
			c.UsageCount++
			t := at
			c.LastUsed = &t
			return nil
		}
	}
	return models.ErrCredentialNotFound
}

func (s *MemoryStore) InsertQueryLog(ctx context.Context, entry *models.QueryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.queryLogs = append(s.queryLogs, *entry)
	return nil
}

func (s *MemoryStore) ListQueryLogs(ctx context.Context, req *models.QueryHistoryRequest) ([]models.QueryLogEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.QueryLogEntry
	for _, e := range s.queryLogs {
		if e.OfficerID == req.OfficerID {
			matched = append(matched, e)
		}
	}
	// newest first, stable for equal timestamps
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if req.Offset >= total {
		return []models.QueryLogEntry{}, total, nil
	}
	end := req.Offset + req.Limit
	if end > total {
		end = total
	}
	return matched[req.Offset:end], total, nil
}

func (s *MemoryStore) DebitOfficer(ctx context.Context, officerID uuid.UUID, amount int, remarks string, queryID *uuid.UUID) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, models.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.officers[officerID]
	if !ok {
		return nil, models.ErrOfficerNotFound
	}

	before := o.CreditsRemaining
	after := before - amount
	if after < 0 {
		after = 0
	}
	o.CreditsRemaining = after
	o.TotalQueries++
	o.UpdatedAt = time.Now().UTC()

	txn := models.CreditTransaction{
		ID:        uuid.New(),
		OfficerID: officerID,
		Action:    models.CreditActionDeduction,
		Credits:   -(before - after),
		Remarks:   remarks,
		QueryID:   queryID,
		CreatedAt: time.Now().UTC(),
	}
	s.transactions = append(s.transactions, txn)
	return &txn, nil
}

func (s *MemoryStore) CreditOfficer(ctx context.Context, officerID uuid.UUID, amount int, action models.CreditAction, remarks string) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, models.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.officers[officerID]
	if !ok {
		return nil, models.ErrOfficerNotFound
	}

	o.CreditsRemaining += amount
	if action.GrowsLifetimeTotal() {
		o.TotalCredits += amount
	}
	o.UpdatedAt = time.Now().UTC()

	txn := models.CreditTransaction{
		ID:        uuid.New(),
		OfficerID: officerID,
		Action:    action,
		Credits:   amount,
		Remarks:   remarks,
		CreatedAt: time.Now().UTC(),
	}
	s.transactions = append(s.transactions, txn)
	return &txn, nil
}
