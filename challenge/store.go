// Package challenge implements the short-lived, single-use challenge
// store anchoring the public-key verification ceremony.
//
// A challenge is keyed by subject (worker id), valid for one attempt
// within a bounded TTL, and overwritten by any later issue for the same
// subject: only the most recently issued challenge is ever valid.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL bounds how long an issued challenge stays consumable.
const DefaultTTL = 60 * time.Second

// Store records at most one outstanding challenge per subject.
//
// Consume must be atomic per subject (test-and-delete): two concurrent
// consumes of the same challenge may not both succeed.
type Store interface {
	// Put records value as the only outstanding challenge for the
	// subject, overwriting any prior unconsumed one.
	Put(ctx context.Context, subjectID, value string) error

	// Consume atomically validates and removes the subject's challenge.
	// It reports false when the challenge is missing, mismatched, or
	// expired; expired entries are deleted on the failure path.
	Consume(ctx context.Context, subjectID, presented string) (bool, error)
}

// Issue generates a fresh challenge with 256 bits of entropy, records
// it in the store, and returns it base64url-encoded.
func Issue(ctx context.Context, s Store, subjectID string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("challenge: entropy source failed: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(b)
	if err := s.Put(ctx, subjectID, value); err != nil {
		return "", err
	}
	return value, nil
}

type entry struct {
	value    string
	issuedAt time.Time
}

// MemoryStore is the single-instance implementation. Use RedisStore for
// multi-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates an in-memory store. A ttl of zero selects
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func (s *MemoryStore) Put(ctx context.Context, subjectID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subjectID] = entry{value: value, issuedAt: s.now()}
	return nil
}

func (s *MemoryStore) Consume(ctx context.Context, subjectID, presented string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[subjectID]
	if !ok {
		return false, nil
	}
	if s.now().Sub(e.issuedAt) > s.ttl {
		delete(s.entries, subjectID)
		return false, nil
	}
	if e.value != presented {
		return false, nil
	}
	delete(s.entries, subjectID)
	return true, nil
}

// StartSweeper evicts expired entries in the background until Close is
// called. Optional: Consume already deletes expired entries lazily.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if now.Sub(e.issuedAt) > s.ttl {
			delete(s.entries, k)
		}
	}
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}
