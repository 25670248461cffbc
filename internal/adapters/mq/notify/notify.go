// Package notify announces finalized results to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// DefaultSubjectPrefix is used when none is configured.
const DefaultSubjectPrefix = "matchday.results"

// ErrNotConnected is returned when publishing on a closed connection.
var ErrNotConnected = errors.New("notify: not connected")

// Publisher announces a finalized result.
type Publisher interface {
	Publish(ctx context.Context, res model.GameResult) error
	Close() error
}

// Noop drops every notification.
type Noop struct{}

func (Noop) Publish(context.Context, model.GameResult) error { return nil }
func (Noop) Close() error                                    { return nil }

// NATSPublisher publishes results as JSON on <prefix>.<game>.<manager>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger logger.Logger
}

// Connect dials url and returns a publisher. An empty prefix uses
// DefaultSubjectPrefix.
func Connect(url, prefix string) (*NATSPublisher, error) {
	log := logger.Get().Named("notify")
	nc, err := nats.Connect(url,
		nats.Name("matchday"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, "."), logger: log}, nil
}

// Subject returns the subject a result is published on.
func (p *NATSPublisher) Subject(gameID, managerID string) string {
	return p.prefix + "." + token(gameID) + "." + token(managerID)
}

// Publish sends res. It does not wait for delivery.
func (p *NATSPublisher) Publish(ctx context.Context, res model.GameResult) error {
	if p.nc == nil || p.nc.IsClosed() {
		metrics.RecordNotificationError()
		return ErrNotConnected
	}
	b, err := json.Marshal(res)
	if err != nil {
		metrics.RecordNotificationError()
		return fmt.Errorf("encode result: %w", err)
	}
	if err := p.nc.Publish(p.Subject(res.GameID, res.ManagerID), b); err != nil {
		metrics.RecordNotificationError()
		return fmt.Errorf("publish result: %w", err)
	}
	metrics.RecordNotificationPublished()
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}

// token makes s safe as a single subject token.
func token(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}
