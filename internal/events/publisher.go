// Package events publishes market lifecycle events to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/evetabi/opportunity/internal/domain"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher forwards every MarketEvent to `<prefix>.<event type>`. It
// implements service.Broadcaster. Publish failures are logged and dropped.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// Connect dials url and returns a publisher plus the connection so the
// caller can drain it on shutdown.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("opportunity-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	return NewPublisher(nc, prefix, logger), nc, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(t domain.EventType) string {
	return p.prefix + "." + string(t)
}

// BroadcastMarketUpdate publishes evt as JSON.
func (p *Publisher) BroadcastMarketUpdate(evt domain.MarketEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("events: marshal failed", "type", evt.Type, "err", err)
		return
	}
	subject := p.Subject(evt.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("events: publish failed", "subject", subject, "err", err)
	}
}
