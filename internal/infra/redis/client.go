package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/pkg/logger"
)

// Client wraps redis.Client with connect retries and logging.
type Client struct {
	client *redis.Client
	logger *logger.Logger
}

// New connects to Redis, retrying the initial ping with exponential backoff
// up to cfg.MaxRetries times.
func New(ctx context.Context, cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	rdb := redis.NewClient(options(cfg))
	log = log.With("component", "redis")

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		lastErr = rdb.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			log.Info("redis connected", "addr", cfg.Addr(), "db", cfg.DB, "tls", cfg.TLSEnabled)
			return &Client{client: rdb, logger: log}, nil
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := backoff(cfg, attempt)
		log.Warn("redis ping failed, retrying",
			"attempt", attempt+1,
			"backoff", wait,
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// NewFromClient wraps an existing go-redis client. Used by tests.
func NewFromClient(rdb *redis.Client, log *logger.Logger) *Client {
	return &Client{client: rdb, logger: log}
}

func options(cfg *config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryDelay,
		MaxRetryBackoff: cfg.MaxRetryDelay,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in, rejected in production
			MinVersion:         tls.VersionTLS12,
		}
	}
	return opts
}

func backoff(cfg *config.RedisConfig, attempt int) time.Duration {
	d := cfg.MinRetryDelay << attempt
	if d <= 0 || d > cfg.MaxRetryDelay {
		d = cfg.MaxRetryDelay
	}
	return d
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	return c.client.Close()
}

// Ping checks if Redis is available.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// PoolStats returns connection pool statistics.
func (c *Client) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
