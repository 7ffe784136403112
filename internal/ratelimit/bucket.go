// Package ratelimit implements the per-user limits applied to dispatching
// and to completion calls.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket. It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	refillRate float64 // tokens per second
	last       time.Time
	now        func() time.Time
}

// newBucket returns a full bucket holding burst tokens and refilling
// refillRate tokens per second.
func newBucket(burst, refillRate float64, now func() time.Time) *Bucket {
	return &Bucket{
		tokens:     burst,
		max:        burst,
		refillRate: refillRate,
		last:       now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (b *Bucket) refill() {
	now := b.now()
	b.tokens = min(b.max, b.tokens+now.Sub(b.last).Seconds()*b.refillRate)
	b.last = now
}

// Allow consumes one token when available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// check reports whether a token is available without consuming it.
func (b *Bucket) check() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens >= 1
}

// Available returns the current token count.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

// Full reports whether the bucket has refilled completely, meaning the key
// has been idle long enough to be forgotten.
func (b *Bucket) Full() bool {
	return b.Available() >= b.max
}
