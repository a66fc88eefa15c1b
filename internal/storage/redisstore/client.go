package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func New(addr string) *Client {
	return &Client{
		Client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

// PingContext lets the client take part in readiness checks.
func (c *Client) PingContext(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
