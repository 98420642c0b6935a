package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/swim-scheduler-api/pkg/config"
)

const connectTimeout = 5 * time.Second

// NewRedis returns a client for the shared wizard store after a successful ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", Addr(cfg), err)
	}
	return client, nil
}

// Addr renders host:port.
func Addr(cfg config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Probe returns a readiness check for the client.
func Probe(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return nil
		}
		return client.Ping(ctx).Err()
	}
}
