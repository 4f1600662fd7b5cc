package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailureStore tracks verification failures per worker inside a rolling
// window. The emitter raises an alert when the count crosses the
// configured threshold.
type FailureStore interface {
	// RecordFailure increments the failure count for the worker and
	// returns the new count. ttl bounds how long the counter lives.
	RecordFailure(ctx context.Context, workerID string, ttl time.Duration) (int, error)

	// ClearFailures resets the counter, typically after a successful
	// verification.
	ClearFailures(ctx context.Context, workerID string) error
}

type failureWindow struct {
	count     int
	expiresAt time.Time
}

// MemoryFailureStore is the single-instance FailureStore.
type MemoryFailureStore struct {
	mu      sync.Mutex
	windows map[string]failureWindow
	now     func() time.Time
}

func NewMemoryFailureStore() *MemoryFailureStore {
	return &MemoryFailureStore{
		windows: make(map[string]failureWindow),
		now:     time.Now,
	}
}

func (s *MemoryFailureStore) RecordFailure(ctx context.Context, workerID string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[workerID]
	if !ok || now.After(w.expiresAt) {
		w = failureWindow{count: 0, expiresAt: now.Add(ttl)}
	}
	w.count++
	s.windows[workerID] = w
	return w.count, nil
}

func (s *MemoryFailureStore) ClearFailures(ctx context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, workerID)
	return nil
}

// RedisFailureStore is the distributed FailureStore. The increment and
// expiry run in one Lua script so concurrent failures from several
// scanners count correctly.
type RedisFailureStore struct {
	client *redis.Client
	prefix string
}

func NewRedisFailureStore(client *redis.Client, prefix string) *RedisFailureStore {
	if prefix == "" {
		prefix = "fieldpass:failures:"
	}
	return &RedisFailureStore{client: client, prefix: prefix}
}

var recordScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

func (s *RedisFailureStore) RecordFailure(ctx context.Context, workerID string, ttl time.Duration) (int, error) {
	result, err := recordScript.Run(ctx, s.client, []string{s.prefix + workerID}, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis failures: record failed: %w", err)
	}
	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("redis failures: unexpected result type")
	}
	return int(count), nil
}

func (s *RedisFailureStore) ClearFailures(ctx context.Context, workerID string) error {
	if err := s.client.Del(ctx, s.prefix+workerID).Err(); err != nil {
		return fmt.Errorf("redis failures: clear failed: %w", err)
	}
	return nil
}
