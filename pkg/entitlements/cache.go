// Package entitlements resolves tenant plans and caps through a
// two-tier read-through cache with push and TTL based invalidation.
package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/murmur-ai/murmur/pkg/models"
	"github.com/murmur-ai/murmur/pkg/store"
)

// ErrTenantNotFound is returned by Store implementations when a tenant
// has no entitlement row.
var ErrTenantNotFound = errors.New("entitlements: tenant not found")

// ErrSubscriptionClosed is returned by Run when the invalidation bus
// closes its channel while the context is still live. Push
// invalidation has stopped; reads stay correct only up to the TTL.
var ErrSubscriptionClosed = errors.New("entitlements: invalidation subscription closed")

// Store is the owning persistence layer beneath both cache tiers.
type Store interface {
	Lookup(ctx context.Context, tenantID string) (models.Entitlement, error)
}

const (
	keyPrefix     = "entitlement:"
	channelPrefix = "entitlement:changed:"
)

// entry is the cached snapshot shape, shared by the local map and the
// JSON payload in the distributed tier.
type entry struct {
	Entitlement models.Entitlement `json:"entitlement"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// Cache is a two-tier entitlement cache: a process-local map over a
// distributed KV, with the Store as source of truth beneath both.
// Get never fails; on any store or cache error it degrades to the
// basic plan's caps.
type Cache struct {
	store Store
	kv    store.KV
	bus   store.Bus
	ttl   time.Duration
	log   *zap.Logger

	mu    sync.Mutex
	local map[string]entry
}

// New creates a Cache. A nil logger disables logging.
func New(st Store, kv store.KV, bus store.Bus, ttl time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{
		store: st,
		kv:    kv,
		bus:   bus,
		ttl:   ttl,
		log:   log,
		local: make(map[string]entry),
	}
}

// Get resolves the entitlement for a tenant: local tier, then
// distributed tier, then the owning store. Cache writes on the way out
// are best effort; a failed write never fails the read.
func (c *Cache) Get(ctx context.Context, tenantID string) models.Entitlement {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.local[tenantID]; ok && e.ExpiresAt.After(now) {
		c.mu.Unlock()
		return e.Entitlement
	}
	c.mu.Unlock()

	key := keyPrefix + tenantID
	if raw, err := c.kv.Get(ctx, key); err == nil {
		var e entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr == nil && e.ExpiresAt.After(now) {
			c.mu.Lock()
			c.local[tenantID] = e
			c.mu.Unlock()
			return e.Entitlement
		}
		// Stale or unreadable payload; drop it so the next reader
		// goes to the store.
		if delErr := c.kv.Del(ctx, key); delErr != nil {
			c.log.Warn("entitlement cache cleanup failed",
				zap.String("tenant", tenantID), zap.Error(delErr))
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		c.log.Warn("entitlement cache read failed",
			zap.String("tenant", tenantID), zap.Error(err))
	}

	ent, err := c.store.Lookup(ctx, tenantID)
	switch {
	case errors.Is(err, ErrTenantNotFound):
		// Unknown tenants get the basic tier; cache it like any other
		// snapshot so repeated lookups stay cheap.
		ent = models.DefaultEntitlement(tenantID)
	case err != nil:
		c.log.Warn("entitlement store unavailable, serving default caps",
			zap.String("tenant", tenantID), zap.Error(err))
		return models.DefaultEntitlement(tenantID)
	}

	e := entry{Entitlement: ent, ExpiresAt: now.Add(c.ttl)}
	if payload, jsonErr := json.Marshal(e); jsonErr == nil {
		if setErr := c.kv.Set(ctx, key, string(payload), c.ttl); setErr != nil {
			c.log.Warn("entitlement cache write failed",
				zap.String("tenant", tenantID), zap.Error(setErr))
		}
	}
	c.mu.Lock()
	c.local[tenantID] = e
	c.mu.Unlock()

	return ent
}

// Invalidate removes the tenant's snapshot from both tiers. It is
// idempotent and safe to call for tenants that were never cached.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) {
	c.mu.Lock()
	delete(c.local, tenantID)
	c.mu.Unlock()

	if err := c.kv.Del(ctx, keyPrefix+tenantID); err != nil {
		c.log.Warn("entitlement invalidation incomplete",
			zap.String("tenant", tenantID), zap.Error(err))
	}
}

// Run subscribes to entitlement change notifications and invalidates
// the named tenant on each one. It blocks until ctx is cancelled.
// Invalidation is always per-tenant; a lost notification is bounded by
// the cache TTL, never repaired with a global flush.
func (c *Cache) Run(ctx context.Context) error {
	ch, err := c.bus.PSubscribe(ctx, channelPrefix+"*")
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return ErrSubscriptionClosed
			}
			tenantID := strings.TrimPrefix(msg.Channel, channelPrefix)
			if tenantID == "" || tenantID == msg.Channel {
				continue
			}
			c.Invalidate(ctx, tenantID)
		}
	}
}

// PublishChange notifies every subscribed process that a tenant's
// entitlement changed. Billing-side code calls this after persisting a
// plan change.
func PublishChange(ctx context.Context, bus store.Bus, tenantID string) error {
	return bus.Publish(ctx, channelPrefix+tenantID, "")
}
