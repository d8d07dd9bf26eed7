package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	pendingKeyPrefix = "authstate:"
)

// RedisStore persists sessions and pending login attempts in Redis. Records
// survive process restarts and are shared across horizontally scaled
// instances; Redis key expiry garbage-collects them.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies connectivity
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying Redis client for components sharing the
// connection, such as the rate limiter store
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// SaveSession stores a session record with the given TTL
func (s *RedisStore) SaveSession(ctx context.Context, token string, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+token, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession retrieves a session record; ErrNotFound if missing or expired
func (s *RedisStore) GetSession(ctx context.Context, token string) (Record, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal session record: %w", err)
	}

	return rec, nil
}

// DeleteSession removes a session record; deleting an absent session is not
// an error
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SavePendingAuth stores per-login-attempt state with a short TTL
func (s *RedisStore) SavePendingAuth(ctx context.Context, id string, pending PendingAuth, ttl time.Duration) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending auth: %w", err)
	}

	if err := s.client.Set(ctx, pendingKeyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pending auth: %w", err)
	}

	return nil
}

// ConsumePendingAuth atomically reads and deletes the pending state. GETDEL
// guarantees a second consume of the same attempt returns ErrNotFound even
// under concurrent callbacks.
func (s *RedisStore) ConsumePendingAuth(ctx context.Context, id string) (PendingAuth, error) {
	data, err := s.client.GetDel(ctx, pendingKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return PendingAuth{}, ErrNotFound
	}
	if err != nil {
		return PendingAuth{}, fmt.Errorf("failed to consume pending auth: %w", err)
	}

	var pending PendingAuth
	if err := json.Unmarshal(data, &pending); err != nil {
		return PendingAuth{}, fmt.Errorf("failed to unmarshal pending auth: %w", err)
	}

	return pending, nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
