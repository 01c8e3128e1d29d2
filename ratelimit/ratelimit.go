// Package ratelimit provides per-key token-bucket admission control for the
// gate. Two backends are available: an in-process Memory limiter and a
// Redis-backed limiter for multi-replica deployments.
package ratelimit

import "context"

// Limiter decides whether a request identified by key is admitted.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes one token from key's bucket if available.
	// The boolean is authoritative only when the error is nil; on error the
	// caller decides its own policy (the gin middleware admits, since a
	// broken limiter store should not take down authentication).
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds the token-bucket parameters shared by all backends.
type Config struct {
	// Capacity is the maximum number of tokens a bucket holds.
	// Default: 60.
	Capacity float64

	// RefillPerSec is the steady-state refill rate.
	// Default: 1 token per second.
	RefillPerSec float64
}

func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 60
	}
	if c.RefillPerSec <= 0 {
		c.RefillPerSec = 1
	}
}
