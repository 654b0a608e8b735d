package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ClientName tags portal connections in CLIENT LIST.
	ClientName  = "hr-portal"
	pingTimeout = 5 * time.Second
)

// New dials the Redis that holds sessions, refresh locks, cached lookups and
// the asynq queues, and fails when it does not answer a PING in time.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		ClientName: ClientName,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis at %s: %w", addr, err)
	}
	return client, nil
}
