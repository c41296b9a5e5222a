// Package events publishes incident lifecycle events to NATS. Subjects are
// "<prefix>.created", "<prefix>.status" and "<prefix>.deleted".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"prohori/internal/config"
	"prohori/internal/domain"
	"prohori/pkg/e"
)

type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func Connect(cfg config.NatsConfig, logger *slog.Logger) (*NatsPublisher, error) {
	const op = "events.Connect"

	conn, err := nats.Connect(cfg.URL,
		nats.Name("prohori"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrStorageUnavailable)
	}
	logger.Info("connected to nats", slog.String("url", conn.ConnectedUrl()))

	return NewNatsPublisher(conn, cfg.SubjectPrefix, logger), nil
}

func NewNatsPublisher(conn *nats.Conn, prefix string, logger *slog.Logger) *NatsPublisher {
	if prefix == "" {
		prefix = "incidents"
	}
	return &NatsPublisher{conn: conn, prefix: prefix, logger: logger}
}

func (p *NatsPublisher) Publish(ctx context.Context, ev domain.IncidentEvent) error {
	const op = "events.NatsPublisher.Publish"

	if err := ctx.Err(); err != nil {
		return e.FromContext(ctx, op)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.conn.Publish(Subject(p.prefix, ev.Type), b); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, e.ErrStorageUnavailable)
	}
	return nil
}

// Ping reports whether the connection is currently up.
func (p *NatsPublisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("events.NatsPublisher.Ping: %s: %w", p.conn.Status(), e.ErrStorageUnavailable)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain failed", slog.Any("error", err))
		p.conn.Close()
	}
}

func Subject(prefix string, t domain.EventType) string {
	return prefix + "." + string(t)
}

// Noop drops every event. Used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.IncidentEvent) error { return nil }
