package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "peercam:session:"
const activeSessionsKey = "peercam:sessions:active"

// NewRedisClient dials Redis with connection pooling and verifies the
// connection before anything depends on it.
func NewRedisClient(address, password string, db, poolSize int, log *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log != nil {
		log.Infow("connected to Redis", "address", address, "db", db, "pool_size", poolSize)
	}
	return client, nil
}

type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) ports.SessionRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) sessionKey(id domain.SessionID) string {
	return sessionKeyPrefix + string(id)
}

func (r *RedisRegistry) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, r.sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, activeSessionsKey, string(session.ID)).Err(); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisRegistry) UpdateState(ctx context.Context, id domain.SessionID, state domain.SessionState) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	session.State = state
	session.LastSeen = time.Now()
	return r.Save(ctx, session)
}

func (r *RedisRegistry) Delete(ctx context.Context, id domain.SessionID) error {
	removed, err := r.client.Del(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	if err := r.client.SRem(ctx, activeSessionsKey, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}
	if removed == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *RedisRegistry) ListActive(ctx context.Context) ([]*domain.Session, error) {
	ids, err := r.client.SMembers(ctx, activeSessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var active []*domain.Session
	for _, id := range ids {
		session, err := r.GetByID(ctx, domain.SessionID(id))
		if err == domain.ErrSessionNotFound {
			// Expired entry still in the index.
			r.client.SRem(ctx, activeSessionsKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if session.State != domain.SessionClosed {
			active = append(active, session)
		}
	}
	return active, nil
}
