package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// commitScript stores ARGV[1] only when it is above the current value.
var commitScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur or tonumber(ARGV[1]) > tonumber(cur) then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// RedisStore implements Store using Redis so the watermark survives restarts.
// Leases are still serialized per process only; two processes signing for the
// same wallet can be handed the same nonce.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis store and checks the connection
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Committed(ctx context.Context, key string) (uint64, bool, error) {
	n, err := s.client.Get(ctx, s.key(key)).Uint64()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read nonce: %w", err)
	}
	return n, true, nil
}

func (s *RedisStore) Commit(ctx context.Context, key string, nonce uint64) error {
	if err := commitScript.Run(ctx, s.client, []string{s.key(key)}, nonce).Err(); err != nil {
		return fmt.Errorf("failed to commit nonce: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset nonce: %w", err)
	}
	return nil
}

func (s *RedisStore) key(account string) string {
	return s.prefix + "nonce:" + account
}
