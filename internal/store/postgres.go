package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/retryer"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	retry  retryer.DatabaseRetryConfig
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *pgxpool.Pool, retry retryer.DatabaseRetryConfig, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
		retry:  retry,
	}
}

// Initialize creates the necessary database tables
func (s *PostgresStore) Initialize(ctx context.Context) error {
	queries := []string{
		createPlansTable,
		createServicesTable,
		createOfficersTable,
		createPlanServicesTable,
		createProviderCredentialsTable,
		createQueryLogsTable,
		createCreditTransactionsTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	s.logger.Info("Database tables initialized successfully")
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Officer operations

// GetActiveOfficer retrieves an officer by ID if the officer is Active
func (s *PostgresStore) GetActiveOfficer(ctx context.Context, id uuid.UUID) (*models.Officer, error) {
	officer := &models.Officer{}
	query := `
		SELECT id, name, email, COALESCE(phone, ''), status, plan_id,
		       credits_remaining, total_credits, total_queries, created_at, updated_at
		FROM officers WHERE id = $1 AND status = $2
	`

	err := s.db.QueryRow(ctx, query, id, models.OfficerStatusActive).Scan(
		&officer.ID, &officer.Name, &officer.Email, &officer.Phone, &officer.Status, &officer.PlanID,
		&officer.CreditsRemaining, &officer.TotalCredits, &officer.TotalQueries,
		&officer.CreatedAt, &officer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOfficerNotFound
		}
		return nil, fmt.Errorf("failed to get officer: %w", mapToCustomError(err))
	}

	return officer, nil
}

// Entitlement operations

// GetEnabledPlanService retrieves the enabled entitlement row for a plan and service
func (s *PostgresStore) GetEnabledPlanService(ctx context.Context, planID, serviceID uuid.UUID) (*models.PlanService, error) {
	ps := &models.PlanService{}
	query := `
		SELECT plan_id, service_id, enabled, credit_cost, buy_price, sell_price
		FROM plan_services
		WHERE plan_id = $1 AND service_id = $2 AND enabled = TRUE
	`

	err := s.db.QueryRow(ctx, query, planID, serviceID).Scan(
		&ps.PlanID, &ps.ServiceID, &ps.Enabled, &ps.CreditCost, &ps.BuyPrice, &ps.SellPrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrServiceNotEnabled
		}
		return nil, fmt.Errorf("failed to get plan service: %w", mapToCustomError(err))
	}

	return ps, nil
}

// ReplacePlanServices deletes all entitlement rows of a plan and inserts the
// given ones in a single transaction
func (s *PostgresStore) ReplacePlanServices(ctx context.Context, planID uuid.UUID, services []models.PlanService) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM plans WHERE id = $1)`, planID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check plan: %w", mapToCustomError(err))
		}
		if !exists {
			return models.ErrPlanNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM plan_services WHERE plan_id = $1`, planID); err != nil {
			return fmt.Errorf("failed to delete plan services: %w", mapToCustomError(err))
		}

		insert := `
			INSERT INTO plan_services (plan_id, service_id, enabled, credit_cost, buy_price, sell_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, ps := range services {
			_, err := tx.Exec(ctx, insert, planID, ps.ServiceID, ps.Enabled, ps.CreditCost, ps.BuyPrice, ps.SellPrice)
			if err != nil {
				if isForeignKeyViolation(err) {
					return models.ErrServiceNotFound
				}
				return fmt.Errorf("failed to insert plan service: %w", mapToCustomError(err))
			}
		}

		s.logger.Info("Plan services replaced",
			zap.String("plan_id", planID.String()),
			zap.Int("count", len(services)),
		)
		return nil
	})
}

// Provider operations

// GetService retrieves a service by ID
func (s *PostgresStore) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc := &models.Service{}
	query := `
		SELECT id, name, type, service_provider, default_credit_cost, default_buy_price, default_sell_price, created_at
		FROM services WHERE id = $1
	`

	err := s.db.QueryRow(ctx, query, id).Scan(
		&svc.ID, &svc.Name, &svc.Type, &svc.ServiceProvider, &svc.DefaultCreditCost,
		&svc.DefaultBuyPrice, &svc.DefaultSellPrice, &svc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", mapToCustomError(err))
	}

	return svc, nil
}

// GetProviderCredential retrieves the credential linked to a service
func (s *PostgresStore) GetProviderCredential(ctx context.Context, serviceID uuid.UUID) (*models.ProviderCredential, error) {
	cred := &models.ProviderCredential{}
	query := `
		SELECT id, service_id, secret, status, usage_count, last_used, created_at
		FROM provider_credentials WHERE service_id = $1
	`

	err := s.db.QueryRow(ctx, query, serviceID).Scan(
		&cred.ID, &cred.ServiceID, &cred.Secret, &cred.Status, &cred.UsageCount, &cred.LastUsed, &cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get provider credential: %w", mapToCustomError(err))
	}

	return cred, nil
}

// TouchProviderCredential increments the usage counter of a credential
func (s *PostgresStore) TouchProviderCredential(ctx context.Context, credentialID uuid.UUID, at time.Time) error {
	query := `
		UPDATE provider_credentials
		SET usage_count = usage_count + 1, last_used = $2
		WHERE id = $1
	`

	result, err := s.db.Exec(ctx, query, credentialID, at)
	if err != nil {
		return fmt.Errorf("failed to update credential usage: %w", mapToCustomError(err))
	}
	if result.RowsAffected() == 0 {
		return models.ErrCredentialNotFound
	}
	return nil
}

// Query log operations

// InsertQueryLog appends a query log entry
func (s *PostgresStore) InsertQueryLog(ctx context.Context, entry *models.QueryLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO query_logs (id, officer_id, service_id, category, input, result_summary, result,
		                        credits_charged, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		entry.ID, entry.OfficerID, entry.ServiceID, entry.Category, entry.Input,
		entry.ResultSummary, nullableJSON(entry.Result), entry.CreditsCharged,
		entry.Status, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", mapToCustomError(err))
	}
	return nil
}

// ListQueryLogs returns a page of an officer's query log, newest first
func (s *PostgresStore) ListQueryLogs(ctx context.Context, req *models.QueryHistoryRequest) ([]models.QueryLogEntry, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM query_logs WHERE officer_id = $1`, req.OfficerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query logs: %w", mapToCustomError(err))
	}

	query := `
		SELECT id, officer_id, service_id, category, input, result_summary, result,
		       credits_charged, status, created_at
		FROM query_logs
		WHERE officer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, req.OfficerID, req.Limit, req.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query logs: %w", mapToCustomError(err))
	}
	defer rows.Close()

	entries := []models.QueryLogEntry{}
	for rows.Next() {
		var e models.QueryLogEntry
		var result []byte
		if err := rows.Scan(
			&e.ID, &e.OfficerID, &e.ServiceID, &e.Category, &e.Input, &e.ResultSummary, &result,
			&e.CreditsCharged, &e.Status, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan query log: %w", err)
		}
		if len(result) > 0 {
			e.Result = json.RawMessage(result)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate query logs: %w", err)
	}

	return entries, total, nil
}

// Ledger operations

// debitOfficerSQL decrements the balance in one statement under a row lock
// and returns the balance before and after.
const debitOfficerSQL = `
	WITH prev AS (
		SELECT id, credits_remaining FROM officers WHERE id = $1 FOR UPDATE
	)
	UPDATE officers o
	SET credits_remaining = GREATEST(o.credits_remaining - $2, 0),
	    total_queries = o.total_queries + 1,
	    updated_at = $3
	FROM prev
	WHERE o.id = prev.id
	RETURNING prev.credits_remaining, o.credits_remaining
`

const creditOfficerSQL = `
	UPDATE officers
	SET credits_remaining = credits_remaining + $2,
	    total_credits = total_credits + CASE WHEN $3 THEN $2 ELSE 0 END,
	    updated_at = $4
	WHERE id = $1
`

const insertTransactionSQL = `
	INSERT INTO credit_transactions (id, officer_id, action, credits, remarks, query_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// DebitOfficer atomically debits an officer and records the Deduction
func (s *PostgresStore) DebitOfficer(ctx context.Context, officerID uuid.UUID, amount int, remarks string, queryID *uuid.UUID) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, models.ErrInvalidAmount
	}

	var txn *models.CreditTransaction
	err := retryer.WithRetry(ctx, s.logger, s.retry, "debit_officer", func() error {
		return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			now := time.Now().UTC()

			var before, after int
			err := tx.QueryRow(ctx, debitOfficerSQL, officerID, amount, now).Scan(&before, &after)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.ErrOfficerNotFound
				}
				return mapToCustomError(err)
			}

			t := &models.CreditTransaction{
				ID:        uuid.New(),
				OfficerID: officerID,
				Action:    models.CreditActionDeduction,
				Credits:   -(before - after),
				Remarks:   remarks,
				QueryID:   queryID,
				CreatedAt: now,
			}
			if _, err := tx.Exec(ctx, insertTransactionSQL,
				t.ID, t.OfficerID, t.Action, t.Credits, t.Remarks, t.QueryID, t.CreatedAt,
			); err != nil {
				return mapToCustomError(err)
			}

			txn = t
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to debit officer: %w", err)
	}

	s.logger.Info("Officer debited",
		zap.String("officer_id", officerID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.Int("credits", txn.Credits),
	)
	return txn, nil
}

// CreditOfficer atomically credits an officer and records the transaction
func (s *PostgresStore) CreditOfficer(ctx context.Context, officerID uuid.UUID, amount int, action models.CreditAction, remarks string) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, models.ErrInvalidAmount
	}

	var txn *models.CreditTransaction
	err := retryer.WithRetry(ctx, s.logger, s.retry, "credit_officer", func() error {
		return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			now := time.Now().UTC()

			result, err := tx.Exec(ctx, creditOfficerSQL, officerID, amount, action.GrowsLifetimeTotal(), now)
			if err != nil {
				return mapToCustomError(err)
			}
			if result.RowsAffected() == 0 {
				return models.ErrOfficerNotFound
			}

			t := &models.CreditTransaction{
				ID:        uuid.New(),
				OfficerID: officerID,
				Action:    action,
				Credits:   amount,
				Remarks:   remarks,
				CreatedAt: now,
			}
			if _, err := tx.Exec(ctx, insertTransactionSQL,
				t.ID, t.OfficerID, t.Action, t.Credits, t.Remarks, t.QueryID, t.CreatedAt,
			); err != nil {
				return mapToCustomError(err)
			}

			txn = t
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit officer: %w", err)
	}

	s.logger.Info("Officer credited",
		zap.String("officer_id", officerID.String()),
		zap.String("action", string(action)),
		zap.Int("credits", amount),
	)
	return txn, nil
}

// nullableJSON maps an empty payload to SQL NULL
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
