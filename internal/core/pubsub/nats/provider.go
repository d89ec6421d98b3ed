// Package nats bridges brokers on several nodes over NATS core subjects.
package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
)

const DefaultSubjectPrefix = "switchboard.events"

// Bridge implements pubsub.Bridge using plain NATS publish/subscribe. Each
// topic maps to one subject so NATS keeps per-publisher order per topic.
type Bridge struct {
	url         string
	prefix      string
	natsConnect natsConnectFunc // injectable for testing

	mu     sync.Mutex
	nc     natsConnection
	logger *slog.Logger
}

// Compile-time checks
var (
	_ pubsub.Bridge      = (*Bridge)(nil)
	_ pubsub.Connectable = (*Bridge)(nil)
)

// NewBridge creates a NATS bridge. Connect must be called before use.
func NewBridge(url, subjectPrefix string) *Bridge {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &Bridge{
		url:         url,
		prefix:      subjectPrefix,
		natsConnect: defaultNatsConnect,
		logger:      slog.Default().With("component", "broker-bridge", "backend", "nats"),
	}
}

// Connect establishes the NATS connection.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc != nil {
		return nil
	}

	nc, err := b.natsConnect(b.url, nats.Name("switchboard"), nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", b.url, err)
	}
	b.nc = nc

	b.logger.Info("Connected to NATS", "url", b.url)
	return nil
}

func (b *Bridge) conn() (natsConnection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return b.nc, nil
}

// Subject returns the NATS subject carrying topic.
func (b *Bridge) Subject(topic string) string {
	return b.prefix + "." + base64.RawURLEncoding.EncodeToString([]byte(topic))
}

// Publish sends ev to every node subscribed to the prefix.
func (b *Bridge) Publish(ctx context.Context, ev pubsub.Event) error {
	nc, err := b.conn()
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := nc.Publish(b.Subject(ev.Topic), data); err != nil {
		pubsub.BridgeErrors.WithLabelValues("nats").Inc()
		return fmt.Errorf("failed to publish to %s: %w", ev.Topic, err)
	}
	return nil
}

// Run subscribes to every topic subject and delivers decoded events until ctx is done.
func (b *Bridge) Run(ctx context.Context, deliver func(pubsub.Event)) error {
	nc, err := b.conn()
	if err != nil {
		return err
	}

	sub, err := nc.Subscribe(b.prefix+".*", func(msg *nats.Msg) {
		var ev pubsub.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			pubsub.BridgeErrors.WithLabelValues("nats").Inc()
			b.logger.Warn("Dropping undecodable bridge message", "subject", msg.Subject, "error", err)
			return
		}
		deliver(ev)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s.*: %w", b.prefix, err)
	}
	if err := nc.Flush(); err != nil {
		b.logger.Warn("Failed to flush NATS subscription", "error", err)
	}

	<-ctx.Done()
	return sub.Unsubscribe()
}

// Close closes the NATS connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc != nil {
		b.logger.Info("Closing NATS connection...")
		b.nc.Close()
		b.nc = nil
	}
	return nil
}
