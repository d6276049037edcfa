// Package redis provides the Redis connection used by the gateway's rate
// limiter. The gateway holds no durable state of its own; Redis is optional
// and its absence only disables rate limiting.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jusscott/risk-assessment-app-sub002/internal/config"
)

const connectTimeout = 5 * time.Second

// NewClient connects to Redis using the provided configuration and verifies
// connectivity with a ping. Callers treat a returned error as "run without
// rate limiting" rather than fatal.
func NewClient(cfg *config.RedisConfig, log *logrus.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConn
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.WithFields(logrus.Fields{
		"db":        cfg.DB,
		"pool_size": cfg.PoolSize,
	}).Info("Connected to Redis")

	return client, nil
}
