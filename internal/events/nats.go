package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Connect establishes a connection to the NATS server.
func Connect(natsAddress string, logger *zap.Logger) (*nats.Conn, error) {
	logger.Info("Attempting to connect to NATS server", zap.String("address", natsAddress))

	nc, err := nats.Connect(
		natsAddress,
		nats.Name("lookup-broker"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second*2),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	)
	if err != nil {
		logger.Error("Failed to connect to NATS", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsAddress, err)
	}

	logger.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

// msgPublisher is the subset of *nats.Conn used for publishing
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes lookup events as JSON on a fixed subject
type NATSPublisher struct {
	conn    msgPublisher
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher creates a publisher on conn. Pass a *nats.Conn.
func NewNATSPublisher(conn msgPublisher, subject string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *NATSPublisher) PublishLookupCompleted(ctx context.Context, event *LookupCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lookup event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if event.CorrelationID != "" {
		msg.Header.Set("X-Correlation-ID", event.CorrelationID)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish lookup event on %s: %w", p.subject, err)
	}

	fields := []zap.Field{zap.String("subject", p.subject)}
	if event.QueryID != nil {
		fields = append(fields, zap.String("query_id", event.QueryID.String()))
	}
	p.logger.Debug("Lookup event published", fields...)
	return nil
}
