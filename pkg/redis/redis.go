// Package redis wraps the go-redis client used for cross-instance state.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client
type Client struct {
	client *redis.Client
}

// NewClient connects to url. Both redis:// URLs and bare host:port
// addresses are accepted.
func NewClient(url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis: empty url")
	}

	var opts *redis.Options
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}
	opts.DialTimeout = 5 * time.Second

	return &Client{client: redis.NewClient(opts)}, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetNX stores value only if key does not exist
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// Get returns the value at key, or redis.Nil when missing
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// Del removes keys
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// Eval runs a script
func (c *Client) Eval(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	return script.Run(ctx, c.client, keys, args...).Result()
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.client.Close()
}

// IsNil reports whether err is the missing-key sentinel
func IsNil(err error) bool {
	return err == redis.Nil
}
