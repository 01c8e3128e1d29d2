package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(cfg Config) (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(cfg, withClock(clock.Now), WithSweepInterval(time.Hour))
	return m, clock
}

func TestAllow_BurstThenRefuse(t *testing.T) {
	m, _ := newTestLimiter(Config{Capacity: 60, RefillPerSec: 1})
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		ok, err := m.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !ok {
			t.Fatalf("call %d refused, want admitted", i+1)
		}
	}

	// 61st call with no elapsed time must be refused.
	ok, err := m.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if ok {
		t.Fatal("61st call admitted, want refused")
	}
}

func TestAllow_RefillRestoresTokens(t *testing.T) {
	m, clock := newTestLimiter(Config{Capacity: 2, RefillPerSec: 1})
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ok, _ := m.Allow(ctx, "k"); !ok {
			t.Fatalf("call %d refused, want admitted", i+1)
		}
	}
	if ok, _ := m.Allow(ctx, "k"); ok {
		t.Fatal("drained bucket admitted, want refused")
	}

	clock.Advance(1 * time.Second)
	if ok, _ := m.Allow(ctx, "k"); !ok {
		t.Fatal("refused after 1s refill, want admitted")
	}
	if ok, _ := m.Allow(ctx, "k"); ok {
		t.Fatal("admitted beyond refilled tokens, want refused")
	}
}

func TestAllow_TokensNeverExceedCapacity(t *testing.T) {
	m, clock := newTestLimiter(Config{Capacity: 5, RefillPerSec: 10})
	defer m.Close()

	ctx := context.Background()
	if ok, _ := m.Allow(ctx, "k"); !ok {
		t.Fatal("first call refused")
	}

	// Long idle period must cap the bucket at capacity, not accumulate.
	clock.Advance(time.Hour)
	if got := m.Tokens("k"); got != 5 {
		t.Fatalf("Tokens() = %v, want capped at 5", got)
	}
}

func TestAllow_TokensNeverNegative(t *testing.T) {
	m, _ := newTestLimiter(Config{Capacity: 3, RefillPerSec: 1})
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		m.Allow(ctx, "k")
	}
	if got := m.Tokens("k"); got < 0 {
		t.Fatalf("Tokens() = %v, want >= 0", got)
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	m, _ := newTestLimiter(Config{Capacity: 1, RefillPerSec: 1})
	defer m.Close()

	ctx := context.Background()
	if ok, _ := m.Allow(ctx, "a"); !ok {
		t.Fatal("key a refused")
	}
	if ok, _ := m.Allow(ctx, "a"); ok {
		t.Fatal("key a admitted past capacity")
	}

	// Key b has its own full bucket.
	if ok, _ := m.Allow(ctx, "b"); !ok {
		t.Fatal("key b refused, want independent bucket")
	}
}

func TestAllow_RefusalDoesNotResetRefillProgress(t *testing.T) {
	m, clock := newTestLimiter(Config{Capacity: 1, RefillPerSec: 1})
	defer m.Close()

	ctx := context.Background()
	m.Allow(ctx, "k") // drain

	// Half a second of refill: 0.5 tokens, still refused.
	clock.Advance(500 * time.Millisecond)
	if ok, _ := m.Allow(ctx, "k"); ok {
		t.Fatal("admitted at 0.5 tokens, want refused")
	}

	// The refused call must not have discarded the partial refill.
	clock.Advance(500 * time.Millisecond)
	if ok, _ := m.Allow(ctx, "k"); !ok {
		t.Fatal("refused after full second of refill, want admitted")
	}
}

func TestEvictIdle(t *testing.T) {
	m, clock := newTestLimiter(Config{Capacity: 10, RefillPerSec: 1})
	defer m.Close()

	ctx := context.Background()
	m.Allow(ctx, "old")
	clock.Advance(11 * time.Minute)
	m.Allow(ctx, "fresh")

	m.evictIdle()

	if got := m.Len(); got != 1 {
		t.Fatalf("Len() after sweep = %d, want 1", got)
	}

	// Evicted key starts over at full capacity.
	if got := m.Tokens("old"); got != 10 {
		t.Fatalf("Tokens(old) after eviction = %v, want 10", got)
	}
}

func TestAllow_ConcurrentSameKey(t *testing.T) {
	m := NewMemory(Config{Capacity: 100, RefillPerSec: 0.0001}, WithSweepInterval(time.Hour))
	defer m.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := m.Allow(ctx, "shared")
			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// No lost updates: exactly capacity admissions (refill is negligible).
	if admitted != 100 {
		t.Fatalf("admitted = %d, want exactly 100", admitted)
	}
}

func TestClose_Idempotent(t *testing.T) {
	m, _ := newTestLimiter(Config{})
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
