package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/event-admin/internal/config"
	"github.com/spec-kit/event-admin/internal/revocation"
)

// Redis wraps the go-redis client backing the revocation store.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client when an address is configured. It does not dial:
// the revocation store owns connection attempts and their backoff.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not provided; token revocation disabled")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		// Retries are the revocation store's job; a hung command must fail fast.
		MaxRetries: -1,
	})
	return &Redis{Client: client}
}

// RevocationClient returns the client as seen by the revocation store, or nil
// when Redis is not configured.
func (r *Redis) RevocationClient() revocation.Client {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
