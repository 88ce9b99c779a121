package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "convflow:state:"

// RedisStore is the fast cache tier backed by Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. The prefix defaults to
// "convflow:state:" when empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr, password string, db int) (redis.UniversalClient, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) Put(ctx context.Context, state *SessionState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	err = r.client.Set(ctx, r.key(state.SessionID), payload, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache session state: %w", err)
	}

	return nil
}

// Fetch returns (nil, nil) on a clean miss so the repository can fall back
// without treating it as an operational failure.
func (r *RedisStore) Fetch(ctx context.Context, sessionID string) (*SessionState, error) {
	payload, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cached session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached session state: %w", err)
	}

	return &state, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	err := r.client.Del(ctx, r.key(sessionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete cached session state: %w", err)
	}

	return nil
}

// SessionIDs scans the keyspace for state entries. Used only by the
// reconciliation job, never on the request path.
func (r *RedisStore) SessionIDs(ctx context.Context) ([]string, error) {
	var (
		sessionIDs []string
		cursor     uint64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", err)
		}

		for _, key := range keys {
			sessionIDs = append(sessionIDs, key[len(r.prefix):])
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return sessionIDs, nil
}
