package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the challenge store with Redis for multi-instance
// deployments. Expiry rides on the key TTL; consumption uses a Lua
// script so compare-and-delete is atomic across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A ttl of zero selects
// DefaultTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "fieldpass:challenge:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(subjectID string) string {
	return s.prefix + subjectID
}

func (s *RedisStore) Put(ctx context.Context, subjectID, value string) error {
	// SET overwrites any prior challenge: last writer wins.
	if err := s.client.Set(ctx, s.key(subjectID), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis challenge: put failed: %w", err)
	}
	return nil
}

var consumeScript = redis.NewScript(`
	local v = redis.call('GET', KEYS[1])
	if v == false then
		return 0
	end
	if v ~= ARGV[1] then
		return 0
	end
	redis.call('DEL', KEYS[1])
	return 1
`)

func (s *RedisStore) Consume(ctx context.Context, subjectID, presented string) (bool, error) {
	result, err := consumeScript.Run(ctx, s.client, []string{s.key(subjectID)}, presented).Result()
	if err != nil {
		return false, fmt.Errorf("redis challenge: consume failed: %w", err)
	}
	n, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("redis challenge: unexpected result type")
	}
	return n == 1, nil
}
