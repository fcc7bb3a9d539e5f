package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

// Options configures the Redis client.
type Options struct {
	Addr         string
	PingAttempts uint
	PingTimeout  time.Duration
}

// New creates a new Redis client and waits until it answers PING.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.PingAttempts == 0 {
		opts.PingAttempts = 5
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
	})

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
		return struct{}{}, client.Ping(pingCtx).Err()
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(opts.PingAttempts))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
