package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sentinel-ops/lookup-broker/internal/events"
	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/providers"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

const secret = "pk_live_7f3a9c_secret"

type fakeAdapter struct {
	name   providers.ServiceName
	result *providers.Result
	err    error

	mu       sync.Mutex
	calls    int
	lastCred providers.Credential
}

func (f *fakeAdapter) Name() providers.ServiceName { return f.name }

func (f *fakeAdapter) Lookup(ctx context.Context, input string, cred providers.Credential) (*providers.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastCred = cred
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

type captureEvents struct {
	mu     sync.Mutex
	events []*events.LookupCompleted
}

func (c *captureEvents) PublishLookupCompleted(ctx context.Context, e *events.LookupCompleted) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

type fixture struct {
	store     *store.MemoryStore
	adapter   *fakeAdapter
	events    *captureEvents
	officerID uuid.UUID
	planID    uuid.UUID
	serviceID uuid.UUID
	credID    uuid.UUID
}

// newFixture seeds the standard scenario: an active officer with 50
// credits on a plan that enables "Phone Prefill V2" at 2 credits.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemoryStore(),
		events:    &captureEvents{},
		officerID: uuid.New(),
		planID:    uuid.New(),
		serviceID: uuid.New(),
		credID:    uuid.New(),
		adapter: &fakeAdapter{
			name: providers.PhonePrefillV2,
			result: &providers.Result{
				Success:       true,
				Data:          json.RawMessage(`{"name":"Asha Verma"}`),
				ResultSummary: "Phone prefill completed for XXXXXX3210: Asha Verma",
			},
		},
	}

	f.store.PutPlan(models.Plan{ID: f.planID, UserType: "Investigator", Status: models.PlanStatusActive})
	f.store.PutService(models.Service{ID: f.serviceID, Name: string(providers.PhonePrefillV2), Type: models.ServiceTypePro})
	f.store.PutPlanService(models.PlanService{PlanID: f.planID, ServiceID: f.serviceID, Enabled: true, CreditCost: 2})
	f.store.PutCredential(models.ProviderCredential{ID: f.credID, ServiceID: f.serviceID, Secret: secret, Status: models.CredentialStatusActive})
	planID := f.planID
	f.store.PutOfficer(models.Officer{
		ID:               f.officerID,
		Name:             "Inspector Asha",
		Email:            "asha@example.org",
		Status:           models.OfficerStatusActive,
		PlanID:           &planID,
		CreditsRemaining: 50,
		TotalCredits:     50,
	})
	return f
}

func (f *fixture) broker(s store.Store, cfg Config, logger *zap.Logger) *Broker {
	if s == nil {
		s = f.store
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewBroker(s, providers.NewRegistry(f.adapter), f.events, cfg, logger)
}

func (f *fixture) request() *models.LookupRequest {
	return &models.LookupRequest{
		ServiceID: f.serviceID.String(),
		InputData: "9876543210",
		Category:  "Mobile",
		OfficerID: f.officerID.String(),
	}
}

func requireCode(t *testing.T, err error, code models.ErrorCode) *models.BrokerError {
	t.Helper()
	require.Error(t, err)
	be, ok := models.AsBrokerError(err)
	require.True(t, ok, "expected BrokerError, got %v", err)
	assert.Equal(t, code, be.Code)
	return be
}

func TestHandleMissingFields(t *testing.T) {
	f := newFixture(t)
	b := f.broker(nil, Config{AuditDenied: true}, nil)

	mutations := map[string]func(r *models.LookupRequest){
		"api_id":       func(r *models.LookupRequest) { r.ServiceID = "" },
		"input_data":   func(r *models.LookupRequest) { r.InputData = "   " },
		"category":     func(r *models.LookupRequest) { r.Category = "" },
		"officer_id":   func(r *models.LookupRequest) { r.OfficerID = "" },
		"malformed id": func(r *models.LookupRequest) { r.OfficerID = "not-a-uuid" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := f.request()
			mutate(req)

			resp, err := b.Handle(context.Background(), req)
			assert.Nil(t, resp)
			requireCode(t, err, models.ErrCodeInvalidRequest)
		})
	}

	assert.Empty(t, f.store.QueryLogs())
	assert.Empty(t, f.store.Transactions())
	assert.Zero(t, f.adapter.calls)
}

func TestHandleUnknownOrInactiveOfficer(t *testing.T) {
	f := newFixture(t)
	b := f.broker(nil, Config{AuditDenied: true}, nil)

	req := f.request()
	req.OfficerID = uuid.New().String()
	_, err := b.Handle(context.Background(), req)
	requireCode(t, err, models.ErrCodeUnauthorized)

	o, _ := f.store.Officer(f.officerID)
	o.Status = models.OfficerStatusSuspended
	f.store.PutOfficer(o)
	_, err = b.Handle(context.Background(), f.request())
	requireCode(t, err, models.ErrCodeUnauthorized)

	assert.Empty(t, f.store.QueryLogs(), "unverified identities are never logged")
	assert.Zero(t, f.adapter.calls)
}

func TestHandleServiceNotEnabled(t *testing.T) {
	f := newFixture(t)
	b := f.broker(nil, Config{}, nil)

	f.store.PutPlanService(models.PlanService{PlanID: f.planID, ServiceID: f.serviceID, Enabled: false, CreditCost: 2})

	_, err := b.Handle(context.Background(), f.request())
	be := requireCode(t, err, models.ErrCodeForbidden)
	assert.Equal(t, "Service not enabled for plan", be.Message)
	assert.Empty(t, f.store.QueryLogs())
	assert.Zero(t, f.adapter.calls)
}

func TestHandleOfficerWithoutPlan(t *testing.T) {
	f := newFixture(t)
	o, _ := f.store.Officer(f.officerID)
	o.PlanID = nil
	f.store.PutOfficer(o)

	_, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
	requireCode(t, err, models.ErrCodeForbidden)
}

func TestHandleInsufficientCredits(t *testing.T) {
	f := newFixture(t)
	o, _ := f.store.Officer(f.officerID)
	o.CreditsRemaining = 1
	f.store.PutOfficer(o)

	_, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
	be := requireCode(t, err, models.ErrCodeInsufficientCredits)
	assert.Equal(t, "Insufficient credits. Required: 2, Available: 1", be.Message)
	assert.Equal(t, 2, be.Details["required"])
	assert.Equal(t, 1, be.Details["available"])

	after, _ := f.store.Officer(f.officerID)
	assert.Equal(t, 1, after.CreditsRemaining)
	assert.Empty(t, f.store.Transactions())
	assert.Empty(t, f.store.QueryLogs())
	assert.Zero(t, f.adapter.calls)
}

func TestHandleAuditsDenialsWhenEnabled(t *testing.T) {
	f := newFixture(t)
	o, _ := f.store.Officer(f.officerID)
	o.CreditsRemaining = 0
	f.store.PutOfficer(o)

	_, err := f.broker(nil, Config{AuditDenied: true}, nil).Handle(context.Background(), f.request())
	requireCode(t, err, models.ErrCodeInsufficientCredits)

	logs := f.store.QueryLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.QueryStatusFailed, logs[0].Status)
	assert.Equal(t, 0, logs[0].CreditsCharged)
	assert.Contains(t, logs[0].ResultSummary, "Insufficient credits")
	assert.Empty(t, f.store.Transactions())
}

func TestHandleProviderUnavailable(t *testing.T) {
	tests := map[string]func(f *fixture){
		"inactive credential": func(f *fixture) {
			c, _ := f.store.Credential(f.serviceID)
			c.Status = models.CredentialStatusInactive
			f.store.PutCredential(c)
		},
		"missing credential": func(f *fixture) {
			f.serviceID = uuid.New()
			f.store.PutService(models.Service{ID: f.serviceID, Name: string(providers.PhonePrefillV2)})
			f.store.PutPlanService(models.PlanService{PlanID: f.planID, ServiceID: f.serviceID, Enabled: true, CreditCost: 2})
		},
	}

	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			setup(f)

			_, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
			be := requireCode(t, err, models.ErrCodeProviderUnavailable)
			assert.Equal(t, "API key not configured or inactive", be.Message)
			assert.Zero(t, f.adapter.calls)
			assert.Empty(t, f.store.QueryLogs())
		})
	}
}

func TestHandleUnsupportedProvider(t *testing.T) {
	f := newFixture(t)
	f.store.PutService(models.Service{ID: f.serviceID, Name: "Aadhaar Lookup"})

	_, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
	be := requireCode(t, err, models.ErrCodeUnsupportedProvider)
	assert.Equal(t, "Unsupported API service: Aadhaar Lookup", be.Message)
	assert.Empty(t, f.store.Transactions())
}

func TestHandleSuccess(t *testing.T) {
	f := newFixture(t)

	resp, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.CreditsUsed)
	assert.Empty(t, resp.Error)
	assert.JSONEq(t, `{"name":"Asha Verma"}`, string(resp.Data))
	assert.Equal(t, secret, f.adapter.lastCred.Secret, "adapter receives the stored credential")

	o, _ := f.store.Officer(f.officerID)
	assert.Equal(t, 48, o.CreditsRemaining)
	assert.Equal(t, 1, o.TotalQueries)

	logs := f.store.QueryLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.QueryStatusSuccess, logs[0].Status)
	assert.Equal(t, 2, logs[0].CreditsCharged)
	assert.Equal(t, "9876543210", logs[0].Input)
	assert.Equal(t, "Mobile", logs[0].Category)

	txns := f.store.Transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, models.CreditActionDeduction, txns[0].Action)
	assert.Equal(t, -2, txns[0].Credits)
	require.NotNil(t, txns[0].QueryID)
	assert.Equal(t, logs[0].ID, *txns[0].QueryID)

	cred, _ := f.store.Credential(f.serviceID)
	assert.Equal(t, int64(1), cred.UsageCount)
	assert.NotNil(t, cred.LastUsed)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "Success", f.events.events[0].Status)
	require.NotNil(t, f.events.events[0].QueryID)
	assert.Equal(t, logs[0].ID, *f.events.events[0].QueryID)
}

func TestHandleAdapterFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter.err = errors.New("provider call failed: provider returned status 502")

	resp, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.CreditsUsed)
	assert.True(t, strings.HasPrefix(resp.ResultSummary, "API call failed: "))
	assert.Equal(t, resp.ResultSummary, resp.Error)

	o, _ := f.store.Officer(f.officerID)
	assert.Equal(t, 50, o.CreditsRemaining)
	assert.Equal(t, 0, o.TotalQueries)

	logs := f.store.QueryLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.QueryStatusFailed, logs[0].Status)
	assert.Equal(t, 0, logs[0].CreditsCharged)
	assert.Empty(t, f.store.Transactions())

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "Failed", f.events.events[0].Status)
}

func TestHandleProviderRejectionIsNotCharged(t *testing.T) {
	f := newFixture(t)
	f.adapter.result = &providers.Result{Success: false, ResultSummary: "No prefill record found"}

	resp, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "No prefill record found", resp.Error)

	o, _ := f.store.Officer(f.officerID)
	assert.Equal(t, 50, o.CreditsRemaining)
	assert.Empty(t, f.store.Transactions())
}

func TestHandleIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	b := f.broker(nil, Config{}, nil)

	for i := 0; i < 2; i++ {
		resp, err := b.Handle(context.Background(), f.request())
		require.NoError(t, err)
		assert.True(t, resp.Success)
	}

	o, _ := f.store.Officer(f.officerID)
	assert.Equal(t, 46, o.CreditsRemaining)
	assert.Len(t, f.store.QueryLogs(), 2)
	assert.Len(t, f.store.Transactions(), 2)
}

func TestHandleNeverLeaksSecret(t *testing.T) {
	cases := map[string]func(a *fakeAdapter){
		"success echoing key": func(a *fakeAdapter) {
			a.result = &providers.Result{
				Success:       true,
				Data:          json.RawMessage(`{"echo":"` + secret + `"}`),
				ResultSummary: "ok " + secret,
			}
		},
		"success echoing escaped key": func(a *fakeAdapter) {
			a.result = &providers.Result{
				Success:       true,
				Data:          json.RawMessage(`{"echo":"pk\u005flive_7f3a9c_secret"}`),
				ResultSummary: "ok",
			}
		},
		"failure quoting key": func(a *fakeAdapter) {
			a.err = errors.New("invalid api key " + secret)
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			setup(f.adapter)

			resp, err := f.broker(nil, Config{}, nil).Handle(context.Background(), f.request())
			require.NoError(t, err)

			body, err := json.Marshal(resp)
			require.NoError(t, err)
			assert.NotContains(t, string(body), secret)
			assert.Contains(t, string(body), redacted)

			for _, entry := range f.store.QueryLogs() {
				assert.NotContains(t, entry.ResultSummary, secret)
				assert.NotContains(t, string(entry.Result), secret)
				if len(entry.Result) > 0 {
					var payload interface{}
					require.NoError(t, json.Unmarshal(entry.Result, &payload))
					decoded, _ := json.Marshal(payload)
					assert.NotContains(t, string(decoded), secret)
				}
			}
		})
	}
}

func TestHandleConcurrentLookupsNeverGoNegative(t *testing.T) {
	f := newFixture(t)
	o, _ := f.store.Officer(f.officerID)
	o.CreditsRemaining = 5
	f.store.PutOfficer(o)
	b := f.broker(nil, Config{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Handle(context.Background(), f.request())
		}()
	}
	wg.Wait()

	after, _ := f.store.Officer(f.officerID)
	assert.GreaterOrEqual(t, after.CreditsRemaining, 0)

	removed := 0
	for _, txn := range f.store.Transactions() {
		removed -= txn.Credits
	}
	assert.Equal(t, 5-after.CreditsRemaining, removed, "ledger rows match the balance change")
}

type failingStore struct {
	*store.MemoryStore
	insertErr error
	debitErr  error
}

func (s *failingStore) InsertQueryLog(ctx context.Context, entry *models.QueryLogEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.MemoryStore.InsertQueryLog(ctx, entry)
}

func (s *failingStore) DebitOfficer(ctx context.Context, officerID uuid.UUID, amount int, remarks string, queryID *uuid.UUID) (*models.CreditTransaction, error) {
	if s.debitErr != nil {
		return nil, s.debitErr
	}
	return s.MemoryStore.DebitOfficer(ctx, officerID, amount, remarks, queryID)
}

func TestHandlePersistenceWarnings(t *testing.T) {
	tests := []struct {
		name      string
		store     func(m *store.MemoryStore) *failingStore
		operation string
		wantLogs  int
		wantTxns  int
	}{
		{
			name: "query log write fails",
			store: func(m *store.MemoryStore) *failingStore {
				return &failingStore{MemoryStore: m, insertErr: errors.New("disk full")}
			},
			operation: "record query log",
			wantLogs:  0,
			wantTxns:  1,
		},
		{
			name: "debit fails",
			store: func(m *store.MemoryStore) *failingStore {
				return &failingStore{MemoryStore: m, debitErr: errors.New("serialization failure")}
			},
			operation: "debit credits",
			wantLogs:  1,
			wantTxns:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			core, observed := observer.New(zapcore.WarnLevel)
			b := f.broker(tt.store(f.store), Config{}, zap.New(core))

			resp, err := b.Handle(context.Background(), f.request())
			require.NoError(t, err, "persistence failures never block the response")
			assert.True(t, resp.Success)
			assert.Equal(t, 2, resp.CreditsUsed)

			warnings := observed.FilterMessage("Persistence warning").All()
			require.Len(t, warnings, 1)
			fields := warnings[0].ContextMap()
			assert.Equal(t, string(models.ErrCodePersistenceWarning), fields["code"])
			assert.Equal(t, tt.operation, fields["operation"])

			assert.Len(t, f.store.QueryLogs(), tt.wantLogs)
			assert.Len(t, f.store.Transactions(), tt.wantTxns)
			if tt.wantTxns == 1 {
				assert.Nil(t, f.store.Transactions()[0].QueryID, "no reference to an unwritten log entry")
			}

			require.Len(t, f.events.events, 1)
			if tt.wantLogs == 0 {
				assert.Nil(t, f.events.events[0].QueryID, "event must not reference an unwritten log entry")
			} else {
				require.NotNil(t, f.events.events[0].QueryID)
				assert.Equal(t, f.store.QueryLogs()[0].ID, *f.events.events[0].QueryID)
			}
		})
	}
}

func TestHandlePersistsAfterCallerCancels(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.adapter.result.ResultSummary = "done"
	b := f.broker(nil, Config{}, nil)

	wrapped := &cancellingAdapter{fakeAdapter: f.adapter, cancel: cancel}
	b.registry = providers.NewRegistry(wrapped)

	resp, err := b.Handle(ctx, f.request())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, f.store.QueryLogs(), 1)
	assert.Len(t, f.store.Transactions(), 1)
}

// cancellingAdapter cancels the caller's context once the provider answered
type cancellingAdapter struct {
	*fakeAdapter
	cancel context.CancelFunc
}

func (c *cancellingAdapter) Lookup(ctx context.Context, input string, cred providers.Credential) (*providers.Result, error) {
	res, err := c.fakeAdapter.Lookup(ctx, input, cred)
	c.cancel()
	return res, err
}

func TestHandleEndToEndWithPhonePrefillAdapter(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+secret, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"name":"Asha Verma"}}`))
	}))
	defer srv.Close()

	registry := providers.NewRegistry(providers.NewPhonePrefillAdapter(providers.ClientConfig{
		Endpoint: srv.URL,
		Timeout:  2 * time.Second,
	}))
	b := NewBroker(f.store, registry, nil, Config{}, zap.NewNop())

	resp, err := b.Handle(context.Background(), f.request())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Phone prefill completed for XXXXXX3210: Asha Verma", resp.ResultSummary)

	o, _ := f.store.Officer(f.officerID)
	assert.Equal(t, 48, o.CreditsRemaining)
}
