package store

import (
	"context"
	"path"
	"sync"
	"time"
)

// Memory implements KV, Bus and SlotStore in process memory. It honors
// the same expiry semantics as the Redis implementation but is only
// coherent within a single process.
type Memory struct {
	mu      sync.Mutex
	kv      map[string]memoryEntry
	sets    map[string]memorySet
	subs    map[int]*memorySub
	nextSub int
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

type memorySub struct {
	pattern string
	ch      chan Message
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:   make(map[string]memoryEntry),
		sets: make(map[string]memorySet),
		subs: make(map[int]*memorySub),
	}
}

// Get returns the value for key, or ErrNotFound if absent or expired.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.kv, key)
		return "", ErrNotFound
	}
	return e.value, nil
}

// Set writes key with a TTL.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.kv[key] = e
	return nil
}

// Del removes keys.
func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

// Publish delivers payload to every live subscription whose pattern
// matches channel. Delivery is fire and forget: a subscriber with a
// full buffer misses the message, same as Redis pub/sub.
func (m *Memory) Publish(ctx context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{Channel: channel, Payload: payload}
	for _, s := range m.subs {
		if ok, _ := path.Match(s.pattern, channel); ok {
			select {
			case s.ch <- msg:
			default:
			}
		}
	}
	return nil
}

// PSubscribe subscribes to a glob pattern. The returned channel closes
// when ctx is cancelled.
func (m *Memory) PSubscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	sub := &memorySub{pattern: pattern, ch: make(chan Message, 16)}
	m.subs[id] = sub
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		close(sub.ch)
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

// AddBounded adds member iff the set holds fewer than limit members.
func (m *Memory) AddBounded(ctx context.Context, key, member string, limit int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.liveSet(key)
	if int64(len(s.members)) >= limit {
		return false, nil
	}
	s.members[member] = struct{}{}
	s.expiresAt = time.Now().Add(ttl)
	m.sets[key] = s
	return true, nil
}

// Remove deletes member from the set at key.
func (m *Memory) Remove(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.liveSet(key)
	delete(s.members, member)
	m.sets[key] = s
	return nil
}

// Count returns the size of the set at key.
func (m *Memory) Count(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.liveSet(key).members)), nil
}

// liveSet returns the set at key, discarding it first if its lease has
// expired. Caller holds the lock.
func (m *Memory) liveSet(key string) memorySet {
	s, ok := m.sets[key]
	if !ok || (!s.expiresAt.IsZero() && time.Now().After(s.expiresAt)) {
		s = memorySet{members: make(map[string]struct{})}
		m.sets[key] = s
	}
	return s
}
