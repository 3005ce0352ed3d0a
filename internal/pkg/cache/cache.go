package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
)

// NewClient connects to the Redis/Dragonfly server used for usage counters
// and shared rate limiting. A failed ping is logged, not fatal: the client
// reconnects on its own once the server is reachable.
func NewClient(ctx context.Context, cfg config.Cache, log logrus.FieldLogger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		log.Warnf("Could not connect to cache at %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("Successfully connected to cache: %s", pong)
	}
	return client
}

// Ping checks the cache connection.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	return client.Ping(ctx).Err()
}
