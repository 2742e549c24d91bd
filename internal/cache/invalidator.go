package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// IInvalidator signals that cached renderings of the given views are stale.
type IInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// CompositeInvalidator fans an invalidation out to every registered invalidator.
type CompositeInvalidator struct {
	invalidators []IInvalidator
}

func NewCompositeInvalidator(invalidators ...IInvalidator) *CompositeInvalidator {
	c := &CompositeInvalidator{}
	for _, inv := range invalidators {
		c.Add(inv)
	}
	return c
}

// Add registers inv. nil is ignored.
func (c *CompositeInvalidator) Add(inv IInvalidator) {
	if inv != nil {
		c.invalidators = append(c.invalidators, inv)
	}
}

// Invalidate calls every invalidator, even after a failure, and joins the errors.
func (c *CompositeInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	var allErrors []string
	for _, inv := range c.invalidators {
		if err := inv.Invalidate(ctx, keys...); err != nil {
			allErrors = append(allErrors, err.Error())
		}
	}
	if len(allErrors) > 0 {
		return fmt.Errorf("composite invalidation failed: [ %s ]", strings.Join(allErrors, "; "))
	}
	return nil
}

// InvalidationEvent is the message published on the invalidation subject.
type InvalidationEvent struct {
	Keys []string  `json:"keys"`
	At   time.Time `json:"at"`
}

// NatsInvalidator broadcasts invalidations so other renderers (SSR frontends,
// CDN purgers) can drop their own copies.
type NatsInvalidator struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// ConnectNats dials the NATS server with the logging handlers the services share.
func ConnectNats(url string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(5 * time.Second),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}

func NewNatsInvalidator(nc *nats.Conn, subject string, logger *zap.Logger) *NatsInvalidator {
	return &NatsInvalidator{nc: nc, subject: subject, logger: logger}
}

func (n *NatsInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	data, err := json.Marshal(InvalidationEvent{Keys: keys, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish NATS message for %s: %w", n.subject, err)
	}
	n.logger.Debug("Published invalidation", zap.String("subject", n.subject), zap.Strings("keys", keys))
	return nil
}
