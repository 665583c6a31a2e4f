package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/logging"
	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

// Ledger moves credits in and out of officer balances. Every movement is
// applied together with its CreditTransaction row.
type Ledger struct {
	store  store.LedgerStore
	logger *zap.Logger
}

// NewLedger creates a new credit ledger
func NewLedger(s store.LedgerStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: s, logger: logger}
}

// Debit removes amount credits from the officer, floored at zero, and
// records a Deduction. It never rejects for an insufficient balance; callers
// gate on the balance beforehand. queryID links the row to its lookup.
func (l *Ledger) Debit(ctx context.Context, officerID uuid.UUID, amount int, reason string, queryID *uuid.UUID) (*models.CreditTransaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: debit amount %d is negative", models.ErrInvalidAmount, amount)
	}

	txn, err := l.store.DebitOfficer(ctx, officerID, amount, reason, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to debit officer %s: %w", officerID, err)
	}

	logging.FromContext(ctx, l.logger).Info("Credits debited",
		zap.String("officer_id", officerID.String()),
		zap.Int("requested", amount),
		zap.Int("delta", txn.Credits),
		zap.String("transaction_id", txn.ID.String()))

	return txn, nil
}

// Credit adds amount credits for a Renewal, Top-up or Refund.
// Renewal and Top-up also grow the officer's lifetime total.
func (l *Ledger) Credit(ctx context.Context, officerID uuid.UUID, amount int, action models.CreditAction, remarks string) (*models.CreditTransaction, error) {
	if !action.IsValid() || action == models.CreditActionDeduction {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidCreditAction, action)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %d", models.ErrInvalidAmount, amount)
	}

	txn, err := l.store.CreditOfficer(ctx, officerID, amount, action, remarks)
	if err != nil {
		return nil, fmt.Errorf("failed to credit officer %s: %w", officerID, err)
	}

	logging.FromContext(ctx, l.logger).Info("Credits added",
		zap.String("officer_id", officerID.String()),
		zap.String("action", string(action)),
		zap.Int("amount", amount),
		zap.String("transaction_id", txn.ID.String()))

	return txn, nil
}
