// Package registry persists session records for the control API and
// for post-mortem inspection. The registry never drives behavior: a
// failing registry degrades to log noise, not to a dead client.
package registry

import (
	"context"

	"peercam/internal/core/ports"
	"peercam/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory creates the configured session registry, falling back to the
// in-memory one when Redis is unreachable.
type Factory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	log         *zap.SugaredLogger
}

func NewFactory(cfg *config.Config, log *zap.SugaredLogger) (*Factory, error) {
	factory := &Factory{
		useRedis: cfg.Registry.Backend == "redis",
		cfg:      cfg,
		log:      log,
	}

	if factory.useRedis {
		client, err := NewRedisClient(
			cfg.Registry.Redis.Address,
			cfg.Registry.Redis.Password,
			cfg.Registry.Redis.DB,
			cfg.Registry.Redis.PoolSize,
			log,
		)
		if err != nil {
			log.Warnw("failed to connect to Redis, falling back to memory registry", "error", err)
			factory.useRedis = false
		} else {
			factory.redisClient = client
		}
	}

	if factory.useRedis {
		log.Info("using Redis session registry")
	} else {
		log.Info("using memory session registry")
	}
	return factory, nil
}

func (f *Factory) CreateSessionRegistry() ports.SessionRegistry {
	if f.useRedis && f.redisClient != nil {
		return NewRedisRegistry(f.redisClient, f.cfg.Registry.SessionTTL)
	}
	return NewMemoryRegistry()
}

func (f *Factory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}

// HealthCheck pings Redis when it backs the registry; the memory
// registry is always healthy.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
