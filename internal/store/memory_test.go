package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-ops/lookup-broker/internal/models"
)

func seedOfficer(t *testing.T, s *MemoryStore, credits int, status models.OfficerStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	s.PutOfficer(models.Officer{
		ID:               id,
		Name:             "Inspector Rao",
		Email:            id.String() + "@example.org",
		Status:           status,
		CreditsRemaining: credits,
		TotalCredits:     credits,
	})
	return id
}

func TestGetActiveOfficer(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	active := seedOfficer(t, s, 10, models.OfficerStatusActive)
	suspended := seedOfficer(t, s, 10, models.OfficerStatusSuspended)

	o, err := s.GetActiveOfficer(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, active, o.ID)

	_, err = s.GetActiveOfficer(ctx, suspended)
	assert.ErrorIs(t, err, models.ErrOfficerNotFound)

	_, err = s.GetActiveOfficer(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrOfficerNotFound)
}

func TestGetActiveOfficerReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := seedOfficer(t, s, 10, models.OfficerStatusActive)

	o, err := s.GetActiveOfficer(ctx, id)
	require.NoError(t, err)
	o.CreditsRemaining = 0

	stored, _ := s.Officer(id)
	assert.Equal(t, 10, stored.CreditsRemaining)
}

func TestDebitOfficer(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := seedOfficer(t, s, 50, models.OfficerStatusActive)
	queryID := uuid.New()

	txn, err := s.DebitOfficer(ctx, id, 2, "lookup", &queryID)
	require.NoError(t, err)
	assert.Equal(t, models.CreditActionDeduction, txn.Action)
	assert.Equal(t, -2, txn.Credits)
	require.NotNil(t, txn.QueryID)
	assert.Equal(t, queryID, *txn.QueryID)

	o, _ := s.Officer(id)
	assert.Equal(t, 48, o.CreditsRemaining)
	assert.Equal(t, 50, o.TotalCredits)
	assert.Equal(t, 1, o.TotalQueries)
	assert.Len(t, s.Transactions(), 1)
}

func TestDebitOfficerClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := seedOfficer(t, s, 3, models.OfficerStatusActive)

	txn, err := s.DebitOfficer(ctx, id, 5, "lookup", nil)
	require.NoError(t, err)
	assert.Equal(t, -3, txn.Credits, "only the credits actually removed are recorded")

	o, _ := s.Officer(id)
	assert.Equal(t, 0, o.CreditsRemaining)
}

func TestDebitOfficerRejectsNegativeAmount(t *testing.T) {
	s := NewMemoryStore()
	id := seedOfficer(t, s, 3, models.OfficerStatusActive)

	_, err := s.DebitOfficer(context.Background(), id, -1, "", nil)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	assert.Empty(t, s.Transactions())
}

func TestCreditOfficer(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		action    models.CreditAction
		wantTotal int
	}{
		{models.CreditActionRenewal, 30},
		{models.CreditActionTopUp, 30},
		{models.CreditActionRefund, 10},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := NewMemoryStore()
			id := seedOfficer(t, s, 10, models.OfficerStatusActive)

			txn, err := s.CreditOfficer(ctx, id, 20, tt.action, "adjustment")
			require.NoError(t, err)
			assert.Equal(t, 20, txn.Credits)
			assert.Equal(t, tt.action, txn.Action)

			o, _ := s.Officer(id)
			assert.Equal(t, 30, o.CreditsRemaining)
			assert.Equal(t, tt.wantTotal, o.TotalCredits)
		})
	}
}

func TestCreditOfficerUnknownOfficer(t *testing.T) {
	_, err := NewMemoryStore().CreditOfficer(context.Background(), uuid.New(), 5, models.CreditActionTopUp, "")
	assert.ErrorIs(t, err, models.ErrOfficerNotFound)
}

func TestReplacePlanServices(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	planID := uuid.New()
	s.PutPlan(models.Plan{ID: planID, UserType: "District", Status: models.PlanStatusActive})
	svcA, svcB := uuid.New(), uuid.New()
	s.PutService(models.Service{ID: svcA, Name: "Phone Prefill V2", Type: models.ServiceTypePro})
	s.PutService(models.Service{ID: svcB, Name: "PAN Verification", Type: models.ServiceTypePro})
	s.PutPlanService(models.PlanService{PlanID: planID, ServiceID: svcA, Enabled: true, CreditCost: 2})

	err := s.ReplacePlanServices(ctx, planID, []models.PlanService{
		{ServiceID: svcB, Enabled: true, CreditCost: 5},
	})
	require.NoError(t, err)

	_, err = s.GetEnabledPlanService(ctx, planID, svcA)
	assert.ErrorIs(t, err, models.ErrServiceNotEnabled, "old rows are removed")

	ps, err := s.GetEnabledPlanService(ctx, planID, svcB)
	require.NoError(t, err)
	assert.Equal(t, planID, ps.PlanID)
	assert.Equal(t, 5, ps.CreditCost)
}

func TestReplacePlanServicesValidatesReferences(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	planID := uuid.New()
	s.PutPlan(models.Plan{ID: planID})
	svc := uuid.New()
	s.PutService(models.Service{ID: svc, Name: "RC Verification"})
	s.PutPlanService(models.PlanService{PlanID: planID, ServiceID: svc, Enabled: true, CreditCost: 1})

	err := s.ReplacePlanServices(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, models.ErrPlanNotFound)

	err = s.ReplacePlanServices(ctx, planID, []models.PlanService{{ServiceID: uuid.New(), Enabled: true}})
	assert.ErrorIs(t, err, models.ErrServiceNotFound)

	_, err = s.GetEnabledPlanService(ctx, planID, svc)
	assert.NoError(t, err, "a rejected replacement leaves existing rows intact")
}

func TestDisabledPlanServiceIsNotEnabled(t *testing.T) {
	s := NewMemoryStore()
	planID, svc := uuid.New(), uuid.New()
	s.PutPlanService(models.PlanService{PlanID: planID, ServiceID: svc, Enabled: false, CreditCost: 1})

	_, err := s.GetEnabledPlanService(context.Background(), planID, svc)
	assert.ErrorIs(t, err, models.ErrServiceNotEnabled)
}

func TestTouchProviderCredential(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	svc := uuid.New()
	credID := uuid.New()
	s.PutCredential(models.ProviderCredential{ID: credID, ServiceID: svc, Secret: "k", Status: models.CredentialStatusActive})

	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchProviderCredential(ctx, credID, at))
	require.NoError(t, s.TouchProviderCredential(ctx, credID, at.Add(time.Minute)))

	cred, ok := s.Credential(svc)
	require.True(t, ok)
	assert.Equal(t, int64(2), cred.UsageCount)
	require.NotNil(t, cred.LastUsed)
	assert.Equal(t, at.Add(time.Minute), *cred.LastUsed)

	assert.ErrorIs(t, s.TouchProviderCredential(ctx, uuid.New(), at), models.ErrCredentialNotFound)
}

func TestListQueryLogsPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	officer := uuid.New()
	other := uuid.New()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.InsertQueryLog(ctx, &models.QueryLogEntry{
			OfficerID: officer,
			Category:  "phone",
			Input:     "9876543210",
			Status:    models.QueryStatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.InsertQueryLog(ctx, &models.QueryLogEntry{OfficerID: other, Status: models.QueryStatusFailed}))

	page, total, err := s.ListQueryLogs(ctx, &models.QueryHistoryRequest{OfficerID: officer, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(3*time.Hour), page[0].CreatedAt, "newest first")
	assert.Equal(t, base.Add(2*time.Hour), page[1].CreatedAt)

	page, total, err = s.ListQueryLogs(ctx, &models.QueryHistoryRequest{OfficerID: officer, Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)
}

func TestInsertQueryLogAssignsIdentity(t *testing.T) {
	s := NewMemoryStore()
	entry := &models.QueryLogEntry{OfficerID: uuid.New(), Status: models.QueryStatusSuccess}

	require.NoError(t, s.InsertQueryLog(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Len(t, s.QueryLogs(), 1)
}
