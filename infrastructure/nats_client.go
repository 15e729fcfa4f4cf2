package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by stream operations before Connect succeeds
var ErrNotConnected = errors.New("not connected to NATS JetStream")

// MessagePublisher publishes raw payloads on a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSOption tunes a NATSClient
type NATSOption func(*NATSClient)

// WithReconnect sets how often and how long apart reconnects are attempted
func WithReconnect(attempts int, wait time.Duration) NATSOption {
	return func(c *NATSClient) {
		c.maxReconnects = attempts
		c.reconnectWait = wait
	}
}

// WithStreamMaxAge bounds how long ledger events stay in the stream
func WithStreamMaxAge(d time.Duration) NATSOption {
	return func(c *NATSClient) { c.streamMaxAge = d }
}

// NATSClient publishes ledger events to JetStream
type NATSClient struct {
	servers       string
	maxReconnects int
	reconnectWait time.Duration
	streamMaxAge  time.Duration

	mu sync.RWMutex
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewNATSClient creates an unconnected client for a comma separated server list
func NewNATSClient(servers string, opts ...NATSOption) *NATSClient {
	c := &NATSClient{
		servers:       servers,
		maxReconnects: 10,
		reconnectWait: 2 * time.Second,
		streamMaxAge:  7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the servers. A deadline on ctx bounds the dial.
func (c *NATSClient) Connect(ctx context.Context) error {
	logger := log.WithField("servers", c.servers)
	opts := []nats.Option{
		nats.Name("dndbot"),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.nc, c.js = nc, js
	c.mu.Unlock()

	logger.Info("Connected to NATS")
	return nil
}

func (c *NATSClient) jetStream() (nats.JetStreamContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// Close drains pending publishes and closes the connection
func (c *NATSClient) Close() error {
	c.mu.Lock()
	nc := c.nc
	c.nc, c.js = nil, nil
	c.mu.Unlock()

	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// IsConnected reports whether the connection is currently up
func (c *NATSClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

// EnsureStream creates the stream, or adds subjects an existing stream lacks
func (c *NATSClient) EnsureStream(name string, subjects []string) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}
	logger := log.WithFields(log.Fields{"stream": name, "subjects": subjects})

	info, err := js.StreamInfo(name)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:        name,
			Description: "Economy ledger events",
			Subjects:    subjects,
			Retention:   nats.LimitsPolicy,
			Storage:     nats.FileStorage,
			MaxAge:      c.streamMaxAge,
			Replicas:    1,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
		logger.Info("Created JetStream stream")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stream %s: %w", name, err)
	}

	cfg := info.Config
	missing := false
	for _, s := range subjects {
		if !slices.Contains(cfg.Subjects, s) {
			cfg.Subjects = append(cfg.Subjects, s)
			missing = true
		}
	}
	if !missing {
		return nil
	}
	if _, err := js.UpdateStream(&cfg); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", name, err)
	}
	logger.Info("Updated JetStream stream subjects")
	return nil
}

// Publish waits for the JetStream acknowledgement of one message
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	js, err := c.jetStream()
	if err != nil {
		return err
	}
	ack, err := js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"subject":  subject,
		"stream":   ack.Stream,
		"sequence": ack.Sequence,
	}).Debug("Published message to NATS")
	return nil
}
