package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aarangop/note-rags-web-ui/internal/config"
)

// NewRedis connects to Redis, which holds sessions, drafts and the auto-save
// status channels. The first ping is retried like the MariaDB one.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := pingWithBackoff("redis", ping); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
