// Package store defines the small storage contracts the governance core
// needs from a shared key/value store, and provides Redis and in-memory
// implementations. Only the Redis implementation is safe across
// processes; the in-memory one backs tests and single-process runs.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get when a key has no live value.
var ErrNotFound = errors.New("store: not found")

// KV is a string key/value tier with per-key expiry.
type KV interface {
	// Get returns the value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Set writes key with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
}

// Message is one notification delivered on a Bus pattern subscription.
type Message struct {
	Channel string
	Payload string
}

// Bus is a publish/subscribe channel used for cache invalidation
// notifications across processes.
type Bus interface {
	// Publish sends payload on channel. Best effort; delivery to every
	// subscriber is not guaranteed.
	Publish(ctx context.Context, channel, payload string) error
	// PSubscribe subscribes to a glob pattern of channels. The returned
	// channel closes when ctx is cancelled.
	PSubscribe(ctx context.Context, pattern string) (<-chan Message, error)
}

// SlotStore tracks per-key sets of opaque members with a shared lease
// TTL, used for concurrency slot accounting.
type SlotStore interface {
	// AddBounded adds member to the set at key iff the set currently
	// holds fewer than limit members, refreshing the set's lease TTL.
	// It reports whether the member was admitted. The check and the add
	// must be atomic with respect to other AddBounded calls.
	AddBounded(ctx context.Context, key, member string, limit int64, ttl time.Duration) (bool, error)
	// Remove deletes member from the set at key. Removing an absent
	// member is a no-op.
	Remove(ctx context.Context, key, member string) error
	// Count returns the current size of the set at key.
	Count(ctx context.Context, key string) (int64, error)
}
