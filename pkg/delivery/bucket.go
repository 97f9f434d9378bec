// Package delivery serializes and paces outbound messages to a
// rate-limited chat platform: a per-destination token bucket, an
// ordered single-flight queue with backoff, a typing-indicator helper
// and a pacing policy for live streamed edits.
package delivery

import (
	"context"
	"sync"
	"time"
)

// minWait floors the sleep between bucket rechecks so an empty bucket
// never busy-loops.
const minWait = 10 * time.Millisecond

// bucket is a lazily refilled token bucket. Tokens only decrease on a
// successful take and only grow in proportion to elapsed time; there
// is no background refill timer.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Pacer hands out send permissions per destination. Buckets are
// created full on first use for a destination and live until process
// exit.
type Pacer struct {
	capacity     float64
	refillPerSec float64
	now          func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewPacer creates a Pacer whose buckets hold capacity tokens and
// refill at refillPerSec. Both must be positive; the defaults are
// tuned below the platform's burst and sustained limits.
func NewPacer(capacity, refillPerSec float64) *Pacer {
	if capacity <= 0 {
		capacity = 5
	}
	if refillPerSec <= 0 {
		refillPerSec = 1
	}
	return &Pacer{
		capacity:     capacity,
		refillPerSec: refillPerSec,
		now:          time.Now,
		buckets:      make(map[string]*bucket),
	}
}

// Take blocks until the destination's bucket has a whole token, then
// debits one. It returns early only if ctx is cancelled. Callers must
// tolerate unbounded (typically sub-second) delay here.
func (p *Pacer) Take(ctx context.Context, destID string) error {
	for {
		wait, ok := p.tryTake(destID)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryTake refills and debits under the lock. When the bucket is short
// it returns the time needed for one whole token, floored to avoid
// busy-looping.
func (p *Pacer) tryTake(destID string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	b, ok := p.buckets[destID]
	if !ok {
		b = &bucket{tokens: p.capacity, lastRefill: now}
		p.buckets[destID] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * p.refillPerSec
		if b.tokens > p.capacity {
			b.tokens = p.capacity
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	need := (1 - b.tokens) / p.refillPerSec
	wait := time.Duration(need*float64(time.Second)) + time.Millisecond
	if wait < minWait {
		wait = minWait
	}
	return wait, false
}

// tokens reports the current token count for a destination after a
// refill, for inspection in tests.
func (p *Pacer) tokensFor(destID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[destID]
	if !ok {
		return p.capacity
	}
	elapsed := p.now().Sub(b.lastRefill).Seconds()
	t := b.tokens + elapsed*p.refillPerSec
	if t > p.capacity {
		t = p.capacity
	}
	return t
}
