package querylog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/logging"
	"github.com/sentinel-ops/lookup-broker/internal/models"
	"github.com/sentinel-ops/lookup-broker/internal/store"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// Logger writes the lookup audit trail. Entries are written once with their
// final status and never updated.
type Logger struct {
	store  store.QueryLogStore
	logger *zap.Logger
}

// NewLogger creates a new query logger
func NewLogger(s store.QueryLogStore, logger *zap.Logger) *Logger {
	return &Logger{store: s, logger: logger}
}

// Record persists entry, assigning an id and timestamp when missing
func (l *Logger) Record(ctx context.Context, entry *models.QueryLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := l.store.InsertQueryLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to record query log %s: %w", entry.ID, err)
	}

	logging.FromContext(ctx, l.logger).Debug("Query log recorded",
		zap.String("query_id", entry.ID.String()),
		zap.String("officer_id", entry.OfficerID.String()),
		zap.String("status", string(entry.Status)))
	return nil
}

// History returns a page of an officer's log entries, newest first
func (l *Logger) History(ctx context.Context, req *models.QueryHistoryRequest) (*models.QueryHistoryResponse, error) {
	if req.Limit <= 0 {
		req.Limit = DefaultHistoryLimit
	}
	if req.Limit > MaxHistoryLimit {
		req.Limit = MaxHistoryLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	entries, total, err := l.store.ListQueryLogs(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}
	if entries == nil {
		entries = []models.QueryLogEntry{}
	}

	return &models.QueryHistoryResponse{
		Entries: entries,
		Total:   total,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}, nil
}
