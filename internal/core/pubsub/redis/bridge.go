// Package redis bridges brokers on several nodes over Redis pub/sub channels.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/syntrixbase/switchboard/internal/core/pubsub"
)

const DefaultChannelPrefix = "switchboard:events:"

// Options configures the Redis connection.
type Options struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	ChannelPrefix string
}

// Bridge implements pubsub.Bridge using Redis PUBLISH/PSUBSCRIBE.
type Bridge struct {
	opts      Options
	newClient func(*redis.Options) client // injectable for testing

	mu     sync.Mutex
	client client
	logger *slog.Logger
}

// Compile-time checks
var (
	_ pubsub.Bridge      = (*Bridge)(nil)
	_ pubsub.Connectable = (*Bridge)(nil)
)

func NewBridge(opts Options) *Bridge {
	if opts.ChannelPrefix == "" {
		opts.ChannelPrefix = DefaultChannelPrefix
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	return &Bridge{
		opts:      opts,
		newClient: newGoRedisClient,
		logger:    slog.Default().With("component", "broker-bridge", "backend", "redis"),
	}
}

// Connect creates the client and verifies the server is reachable.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return nil
	}

	c := b.newClient(&redis.Options{
		Addr:     b.opts.Addr,
		Password: b.opts.Password,
		DB:       b.opts.DB,
		PoolSize: b.opts.PoolSize,
	})
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", b.opts.Addr, err)
	}
	b.client = c

	b.logger.Info("Connected to Redis", "addr", b.opts.Addr)
	return nil
}

func (b *Bridge) conn() (client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil, fmt.Errorf("redis not connected, call Connect first")
	}
	return b.client, nil
}

// Channel returns the Redis channel carrying topic.
func (b *Bridge) Channel(topic string) string {
	return b.opts.ChannelPrefix + topic
}

func (b *Bridge) Publish(ctx context.Context, ev pubsub.Event) error {
	c, err := b.conn()
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := c.Publish(ctx, b.Channel(ev.Topic), data); err != nil {
		pubsub.BridgeErrors.WithLabelValues("redis").Inc()
		return fmt.Errorf("failed to publish to %s: %w", ev.Topic, err)
	}
	return nil
}

// Run pattern-subscribes to every topic channel and delivers decoded events
// until ctx is done or the subscription channel closes.
func (b *Bridge) Run(ctx context.Context, deliver func(pubsub.Event)) error {
	c, err := b.conn()
	if err != nil {
		return err
	}

	msgs, closeFn, err := c.PSubscribe(ctx, b.opts.ChannelPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s*: %w", b.opts.ChannelPrefix, err)
	}
	defer closeFn()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev pubsub.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				pubsub.BridgeErrors.WithLabelValues("redis").Inc()
				b.logger.Warn("Dropping undecodable bridge message", "channel", msg.Channel, "error", err)
				continue
			}
			deliver(ev)
		}
	}
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	b.logger.Info("Closing Redis connection...")
	err := b.client.Close()
	b.client = nil
	return err
}
