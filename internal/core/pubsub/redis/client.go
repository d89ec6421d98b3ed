package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// client is the subset of go-redis used by the bridge (injectable for testing).
type client interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, channel string, data []byte) error
	PSubscribe(ctx context.Context, pattern string) (<-chan *redis.Message, func() error, error)
	Close() error
}

type goRedisClient struct {
	rdb *redis.Client
}

func newGoRedisClient(opts *redis.Options) client {
	return &goRedisClient{rdb: redis.NewClient(opts)}
}

func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *goRedisClient) Publish(ctx context.Context, channel string, data []byte) error {
	return c.rdb.Publish(ctx, channel, data).Err()
}

func (c *goRedisClient) PSubscribe(ctx context.Context, pattern string) (<-chan *redis.Message, func() error, error) {
	ps := c.rdb.PSubscribe(ctx, pattern)
	// Wait for the subscription confirmation so publishes after return are seen.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	return ps.Channel(), ps.Close, nil
}

func (c *goRedisClient) Close() error {
	return c.rdb.Close()
}
