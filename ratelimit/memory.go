package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory implements Limiter with an in-process bucket map.
//
// Buckets are created lazily at full capacity on first sight of a key.
// All bucket reads and writes happen under one mutex so that two
// simultaneous requests for the same key cannot both consume the last
// token. Idle buckets are swept periodically to bound memory growth.
type Memory struct {
	config Config

	mu      sync.Mutex
	buckets map[string]*bucket

	sweepEvery time.Duration
	idleAfter  time.Duration
	done       chan struct{}
	closeOnce  sync.Once

	now func() time.Time // injectable clock for tests
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

var _ Limiter = (*Memory)(nil)

// MemoryOption configures the Memory limiter.
type MemoryOption func(*Memory)

// WithSweepInterval sets how often idle buckets are evicted.
// Default: 5 minutes.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) { m.sweepEvery = d }
}

// WithIdleTTL sets how long a bucket may go unused before eviction.
// Default: 10 minutes. An evicted key starts over at full capacity,
// which is indistinguishable from a fully refilled bucket.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.idleAfter = d }
}

// withClock overrides the time source. Tests only.
func withClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-process limiter and starts its sweep goroutine.
// Call Close to stop the sweeper.
func NewMemory(cfg Config, opts ...MemoryOption) *Memory {
	cfg.applyDefaults()
	m := &Memory{
		config:     cfg,
		buckets:    make(map[string]*bucket),
		sweepEvery: 5 * time.Minute,
		idleAfter:  10 * time.Minute,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}

	go m.sweep()
	return m
}

// Allow consumes one token from key's bucket if at least one is available.
// A refused request still refills the bucket for the elapsed time; the
// token count stays at its sub-1 value.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: m.config.Capacity}
		m.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens += elapsed * m.config.RefillPerSec
		if b.tokens > m.config.Capacity {
			b.tokens = m.config.Capacity
		}
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Tokens returns the current token count for key after refill, or the full
// capacity if the key has never been seen.
func (m *Memory) Tokens(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		return m.config.Capacity
	}
	tokens := b.tokens + m.now().Sub(b.lastSeen).Seconds()*m.config.RefillPerSec
	if tokens > m.config.Capacity {
		tokens = m.config.Capacity
	}
	return tokens
}

// Len returns the number of tracked buckets.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.done:
			return
		}
	}
}

func (m *Memory) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleAfter)
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

// Close stops the sweep goroutine. Idempotent.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}
