package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestPublishLookupCompleted(t *testing.T) {
	conn := &capturePublisher{}
	p := NewNATSPublisher(conn, "lookup.completed", zap.NewNop())

	queryID := uuid.New()
	event := &LookupCompleted{
		QueryID:        &queryID,
		OfficerID:      uuid.New(),
		ServiceID:      uuid.New(),
		ServiceName:    "PAN Verification",
		Category:       "Identity",
		Status:         "Success",
		CreditsCharged: 3,
		CorrelationID:  "corr-9",
		OccurredAt:     time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishLookupCompleted(context.Background(), event))

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "lookup.completed", msg.Subject)
	assert.Equal(t, "corr-9", msg.Header.Get("X-Correlation-ID"))

	var decoded LookupCompleted
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.NotNil(t, decoded.QueryID)
	assert.Equal(t, queryID, *decoded.QueryID)
	assert.Equal(t, 3, decoded.CreditsCharged)
}

func TestPublishLookupCompletedWithoutQueryID(t *testing.T) {
	conn := &capturePublisher{}
	p := NewNATSPublisher(conn, "lookup.completed", zap.NewNop())

	require.NoError(t, p.PublishLookupCompleted(context.Background(), &LookupCompleted{
		OfficerID: uuid.New(),
		Status:    "Failed",
	}))

	require.Len(t, conn.msgs, 1)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(conn.msgs[0].Data, &raw))
	assert.NotContains(t, raw, "query_id")
	assert.Equal(t, "Failed", raw["status"])
}

func TestPublishLookupCompletedError(t *testing.T) {
	p := NewNATSPublisher(&capturePublisher{err: errors.New("no responders")}, "lookup.completed", zap.NewNop())

	err := p.PublishLookupCompleted(context.Background(), &LookupCompleted{})
	assert.ErrorContains(t, err, "lookup.completed")
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	conn := &capturePublisher{}
	p := NewNATSPublisher(conn, "lookup.completed", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.PublishLookupCompleted(ctx, &LookupCompleted{}), context.Canceled)
	assert.Empty(t, conn.msgs)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishLookupCompleted(context.Background(), &LookupCompleted{}))
}
