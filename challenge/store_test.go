package challenge

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestIssueAndConsume(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	value, err := Issue(ctx, store, "worker-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(value) < 40 {
		t.Errorf("challenge too short for 256 bits of entropy: %d chars", len(value))
	}

	ok, err := store.Consume(ctx, "worker-1", value)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !ok {
		t.Error("expected first consume to succeed")
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	value, _ := Issue(ctx, store, "worker-1")

	ok, _ := store.Consume(ctx, "worker-1", value)
	if !ok {
		t.Fatal("first consume should succeed")
	}
	ok, _ = store.Consume(ctx, "worker-1", value)
	if ok {
		t.Error("second consume of the same challenge should fail")
	}
}

func TestIssueOverwritesPriorChallenge(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	first, _ := Issue(ctx, store, "worker-1")
	second, _ := Issue(ctx, store, "worker-1")

	if ok, _ := store.Consume(ctx, "worker-1", first); ok {
		t.Error("superseded challenge should be invalid")
	}
	// The failed consume of the stale value must not destroy the live one.
	if ok, _ := store.Consume(ctx, "worker-1", second); !ok {
		t.Error("most recently issued challenge should be valid")
	}
}

func TestConsumeMismatch(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	if _, err := Issue(ctx, store, "worker-1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if ok, _ := store.Consume(ctx, "worker-1", "not-the-challenge"); ok {
		t.Error("mismatched value should not consume")
	}
	if ok, _ := store.Consume(ctx, "worker-2", "anything"); ok {
		t.Error("unknown subject should not consume")
	}
}

func TestConsumeExpiredNeverResurrects(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	value, _ := Issue(ctx, store, "worker-1")

	store.now = func() time.Time { return now.Add(2 * time.Minute) }

	if ok, _ := store.Consume(ctx, "worker-1", value); ok {
		t.Fatal("expired challenge should be rejected")
	}
	// The expired entry was deleted on the failure path; a retry within
	// a fresh window still fails.
	store.now = func() time.Time { return now }
	if ok, _ := store.Consume(ctx, "worker-1", value); ok {
		t.Error("expired challenge must not come back")
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	value, _ := Issue(ctx, store, "worker-1")

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := store.Consume(ctx, "worker-1", value)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful consume, got %d", wins)
	}
}

func TestSweeperEvictsExpired(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	if _, err := Issue(ctx, store, "worker-1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	store.sweep()

	store.mu.Lock()
	n := len(store.entries)
	store.mu.Unlock()
	if n != 0 {
		t.Errorf("expected sweep to evict expired entries, %d left", n)
	}
}
